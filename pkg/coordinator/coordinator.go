// Package coordinator is the public entry point: two functions, Files
// and FilesToPath, that compile a batch of files against a
// caller-supplied backend.Backend and return the modules produced.
// Everything else — the wait-graph, the scheduler, the event loop — is
// an implementation detail of internal/coordinator.
package coordinator

import (
	"context"
	"time"

	"github.com/vantalang/coordinator/internal/coordinator"
	"github.com/vantalang/coordinator/internal/metrics"
	"github.com/vantalang/coordinator/internal/warnings"
	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// Options configures a batch run. The zero value is usable.
type Options struct {
	// Concurrency overrides the computed cap C (default
	// max(runtime.NumCPU(), 2)).
	Concurrency int

	// LongCompilationThreshold is how long a worker may run before
	// OnLongCompilation fires. Default 5s.
	LongCompilationThreshold time.Duration

	// WarningsAsErrors, if true, consults WarningsRegistry once after a
	// successful batch and fails it if any warnings were reported.
	WarningsAsErrors bool
	WarningsRegistry warnings.Registry

	// Metrics, if set, receives live Prometheus updates for the
	// duration of the run.
	Metrics *metrics.Collector

	// OnFileDone fires once per successfully compiled file.
	OnFileDone func(types.File)
	// OnLongCompilation fires at most once per worker that runs past
	// LongCompilationThreshold.
	OnLongCompilation func(types.File)
	// OnModuleCompiled fires inline, while the coordinator holds the
	// emitting worker waiting for its ack; it should be fast.
	OnModuleCompiled func(types.File, types.Symbol, []byte)
}

func (o Options) toInternal(dest string, writeArtifacts bool) coordinator.Options {
	return coordinator.Options{
		Concurrency:              o.Concurrency,
		LongCompilationThreshold: o.LongCompilationThreshold,
		Dest:                     dest,
		WriteArtifacts:           writeArtifacts,
		WarningsAsErrors:         o.WarningsAsErrors,
		WarningsRegistry:         o.WarningsRegistry,
		Metrics:                  o.Metrics,
		OnFileDone:               o.OnFileDone,
		OnLongCompilation:        o.OnLongCompilation,
		OnModuleCompiled:         o.OnModuleCompiled,
	}
}

// Files compiles the given files against be and returns the ordered
// list of modules successfully compiled. dest, if non-empty, is
// passed through to the backend as annotation only — the backend
// decides whether and where to write artifacts.
func Files(ctx context.Context, files []types.File, be backend.Backend, dest string, opts Options) ([]types.Symbol, error) {
	return coordinator.Run(ctx, files, be, opts.toInternal(dest, false))
}

// FilesToPath compiles the given files against be, instructing the
// backend to write bytecode artifacts under path.
func FilesToPath(ctx context.Context, files []types.File, path string, be backend.Backend, opts Options) ([]types.Symbol, error) {
	return coordinator.Run(ctx, files, be, opts.toInternal(path, true))
}
