package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// scriptBackend drives a canned Handle script per file path, letting
// each test describe exactly the dependency shape it wants without a
// real compiler.
type scriptBackend struct {
	scripts map[string]func(ctx context.Context, h backend.Handle) error
}

func (s *scriptBackend) Compile(ctx context.Context, file types.File, h backend.Handle, opts backend.Options) error {
	return s.scripts[file.Path](ctx, h)
}

func (s *scriptBackend) InternalPackages() []string { return nil }

func names(symbols []types.Symbol) []string {
	var out []string
	for _, s := range symbols {
		out = append(out, s.Name)
	}
	return out
}

func TestRunTwoIndependentFiles(t *testing.T) {
	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"a.src": func(ctx context.Context, h backend.Handle) error {
			h.ModuleAvailable("A", []byte("a"))
			return nil
		},
		"b.src": func(ctx context.Context, h backend.Handle) error {
			h.ModuleAvailable("B", []byte("b"))
			return nil
		},
	}}

	var mu sync.Mutex
	var done []string
	opts := Options{OnFileDone: func(f types.File) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, f.Path)
	}}

	mods, err := Run(context.Background(), []types.File{types.NewFile("a.src"), types.NewFile("b.src")}, be, opts)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, names(mods))
	assert.ElementsMatch(t, []string{"a.src", "b.src"}, done)
}

func TestRunLinearDependencyCapOne(t *testing.T) {
	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"A.src": func(ctx context.Context, h backend.Handle) error {
			h.ModuleAvailable("A", nil)
			return nil
		},
		"B.src": func(ctx context.Context, h backend.Handle) error {
			found := h.Wait(types.SymbolModule, "A", "B")
			require.True(t, found)
			h.ModuleAvailable("B", nil)
			return nil
		},
	}}

	mods, err := Run(context.Background(), []types.File{types.NewFile("A.src"), types.NewFile("B.src")}, be, Options{Concurrency: 1})
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "A", mods[0].Name)
	assert.Equal(t, "B", mods[1].Name)
}

func TestRunLinearDependencyCapTwoSuspendsThenReleases(t *testing.T) {
	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"A.src": func(ctx context.Context, h backend.Handle) error {
			h.ModuleAvailable("A", nil)
			return nil
		},
		"B.src": func(ctx context.Context, h backend.Handle) error {
			found := h.Wait(types.SymbolModule, "A", "B")
			require.True(t, found)
			h.ModuleAvailable("B", nil)
			return nil
		},
	}}

	// B enqueued first so it spawns first; A spawns in the same admission
	// pass, and B suspends if its wait reaches the coordinator before A's
	// module does.
	mods, err := Run(context.Background(), []types.File{types.NewFile("B.src"), types.NewFile("A.src")}, be, Options{Concurrency: 2})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, names(mods))
}

func TestRunTrueCycleDeadlocks(t *testing.T) {
	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"X.src": func(ctx context.Context, h backend.Handle) error {
			h.Wait(types.SymbolModule, "Y", "X")
			return nil
		},
		"Y.src": func(ctx context.Context, h backend.Handle) error {
			h.Wait(types.SymbolModule, "X", "Y")
			return nil
		},
	}}

	_, err := Run(context.Background(), []types.File{types.NewFile("X.src"), types.NewFile("Y.src")}, be, Options{Concurrency: 2})
	require.Error(t, err)
}

func TestRunMissingSymbolStallsToError(t *testing.T) {
	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"M.src": func(ctx context.Context, h backend.Handle) error {
			found := h.Wait(types.SymbolModule, "NeverDefined", "M")
			if !found {
				return backendUndefinedSymbolError("NeverDefined")
			}
			return nil
		},
	}}

	_, err := Run(context.Background(), []types.File{types.NewFile("M.src")}, be, Options{Concurrency: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NeverDefined")
}

func TestRunLongCompilationFiresOnce(t *testing.T) {
	var calls int
	var mu sync.Mutex

	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"slow.src": func(ctx context.Context, h backend.Handle) error {
			time.Sleep(30 * time.Millisecond)
			h.ModuleAvailable("Slow", nil)
			return nil
		},
	}}

	opts := Options{
		LongCompilationThreshold: 5 * time.Millisecond,
		OnLongCompilation: func(f types.File) {
			mu.Lock()
			defer mu.Unlock()
			calls++
		},
	}

	mods, err := Run(context.Background(), []types.File{types.NewFile("slow.src")}, be, opts)
	require.NoError(t, err)
	assert.Len(t, mods, 1)
	assert.Equal(t, 1, calls)
}

func TestRunBackendCrashKillsPeersAndReportsFailure(t *testing.T) {
	var mu sync.Mutex
	var peerDone bool

	be := &scriptBackend{scripts: map[string]func(context.Context, backend.Handle) error{
		"crash.src": func(ctx context.Context, h backend.Handle) error {
			return backendUndefinedSymbolError("boom")
		},
		"peer.src": func(ctx context.Context, h backend.Handle) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}

	opts := Options{OnFileDone: func(f types.File) {
		mu.Lock()
		defer mu.Unlock()
		peerDone = true
	}}

	_, err := Run(context.Background(), []types.File{types.NewFile("crash.src"), types.NewFile("peer.src")}, be, opts)
	require.Error(t, err)
	assert.False(t, peerDone, "on_file_done must not fire for a file that never cleanly exits")
}

// backendUndefinedSymbolError stands in for the back-end's own
// undefined-symbol error, which it would raise naturally once a
// waiting call returns not-found.
func backendUndefinedSymbolError(symbol string) error {
	return &backend.Failure{Kind: "undefined-symbol", Reason: undefinedSymbolErr{symbol}}
}

type undefinedSymbolErr struct{ symbol string }

func (e undefinedSymbolErr) Error() string { return "undefined symbol: " + e.symbol }
