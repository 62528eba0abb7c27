package waitgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantalang/coordinator/internal/mailbox"
	"github.com/vantalang/coordinator/pkg/types"
)

func strp(s string) *string { return &s }

func TestSuspendAndReleaseMatching(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)

	require.NoError(t, g.Suspend(1, reply, types.SymbolModule, "A", nil))
	assert.Equal(t, 1, g.Len())

	released := g.ReleaseMatching("A", types.SymbolModule)
	require.Len(t, released, 1)
	assert.Equal(t, types.WorkerID(1), released[0].Worker)
	assert.Equal(t, 0, g.Len())
}

func TestSuspendDuplicateIsInvariantViolation(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)
	require.NoError(t, g.Suspend(1, reply, types.SymbolModule, "A", nil))
	err := g.Suspend(1, reply, types.SymbolStruct, "B", nil)
	assert.ErrorIs(t, err, ErrAlreadyWaiting)
}

func TestStructDefinitionDoesNotSatisfyModuleWait(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)
	require.NoError(t, g.Suspend(1, reply, types.SymbolModule, "A", nil))

	released := g.ReleaseMatching("A", types.SymbolStruct)
	assert.Empty(t, released, "a struct definition must not release a module-kind wait")
	assert.Equal(t, 1, g.Len())

	released = g.ReleaseMatching("A", types.SymbolModule)
	assert.Len(t, released, 1)
}

func TestModuleDefinitionSatisfiesStructWait(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)
	require.NoError(t, g.Suspend(1, reply, types.SymbolStruct, "A", nil))

	released := g.ReleaseMatching("A", types.SymbolModule)
	assert.Len(t, released, 1)
}

func TestRemoveIsIdempotent(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)
	require.NoError(t, g.Suspend(1, reply, types.SymbolModule, "A", nil))

	g.Remove(1)
	assert.Equal(t, 0, g.Len())

	assert.NotPanics(t, func() { g.Remove(1) })
}

func TestNoDefinerEntriesFindsUndefinedSymbol(t *testing.T) {
	g := New()
	replyA := make(chan mailbox.Verdict, 1)
	replyB := make(chan mailbox.Verdict, 1)

	// A waits on X, which nobody defines.
	require.NoError(t, g.Suspend(1, replyA, types.SymbolModule, "X", strp("A")))
	// B waits on A, which worker 1 is defining.
	require.NoError(t, g.Suspend(2, replyB, types.SymbolModule, "A", strp("B")))

	r := g.NoDefinerEntries()
	require.Len(t, r, 1)
	assert.Equal(t, types.WorkerID(1), r[0].Worker)
}

func TestIsCyclicClosedDetectsTrueCycle(t *testing.T) {
	g := New()
	replyX := make(chan mailbox.Verdict, 1)
	replyY := make(chan mailbox.Verdict, 1)

	// X waits on Y (which X's sibling worker is defining) while defining X.
	require.NoError(t, g.Suspend(1, replyX, types.SymbolModule, "Y", strp("X")))
	require.NoError(t, g.Suspend(2, replyY, types.SymbolModule, "X", strp("Y")))

	assert.Empty(t, g.NoDefinerEntries())
	assert.True(t, g.IsCyclicClosed())
}

func TestIsCyclicClosedFalseWhenEmpty(t *testing.T) {
	g := New()
	assert.False(t, g.IsCyclicClosed())
}

func TestReleaseMatchingKeepsUnsatisfiedEntries(t *testing.T) {
	g := New()
	replyStruct := make(chan mailbox.Verdict, 1)
	replyModule := make(chan mailbox.Verdict, 1)

	require.NoError(t, g.Suspend(1, replyStruct, types.SymbolStruct, "A", nil))
	require.NoError(t, g.Suspend(2, replyModule, types.SymbolModule, "A", nil))

	released := g.ReleaseMatching("A", types.SymbolStruct)
	require.Len(t, released, 1)
	assert.Equal(t, types.WorkerID(1), released[0].Worker)
	assert.Equal(t, 1, g.Len())
}

func TestEntriesSnapshot(t *testing.T) {
	g := New()
	reply := make(chan mailbox.Verdict, 1)
	require.NoError(t, g.Suspend(1, reply, types.SymbolModule, "A", nil))
	require.NoError(t, g.Suspend(2, reply, types.SymbolModule, "B", nil))

	entries := g.Entries()
	assert.Len(t, entries, 2)
}
