// Package waitgraph is the coordinator's pure data model for suspended
// workers: what each one is waiting on, what it is itself in the middle
// of defining, and the handle needed to wake it back up.
//
// Graph is not safe for concurrent use. All mutation of coordinator
// state is reserved to the single event-loop goroutine, so there is
// deliberately no internal locking here — this graph has exactly one
// caller.
package waitgraph

import (
	"errors"

	"github.com/vantalang/coordinator/internal/mailbox"
	"github.com/vantalang/coordinator/pkg/types"
)

// ErrAlreadyWaiting is returned by Suspend when the given worker already
// has an entry in the graph — an invariant violation, since a worker can
// only ever be suspended on one symbol at a time.
var ErrAlreadyWaiting = errors.New("waitgraph: worker already suspended")

// Entry is one suspended worker's bookkeeping record.
type Entry struct {
	Worker    types.WorkerID
	Reply     chan mailbox.Verdict
	Kind      types.SymbolKind // what strength of definition unblocks it
	WaitingOn string           // symbol name it is blocked on
	Defining  *string          // symbol name this worker is itself defining, if any
}

// Graph is the set of currently suspended workers, indexed both by
// WorkerID (for removal and release-by-worker) and by the symbol each
// entry waits on (for release-by-symbol). Every mutating method keeps
// the two indices strictly in sync.
type Graph struct {
	byWorker map[types.WorkerID]*Entry
	byWait   map[string][]*Entry // symbol name -> entries waiting on it
}

// New returns an empty wait graph.
func New() *Graph {
	return &Graph{
		byWorker: make(map[types.WorkerID]*Entry),
		byWait:   make(map[string][]*Entry),
	}
}

// Len reports the number of suspended workers currently tracked.
func (g *Graph) Len() int {
	return len(g.byWorker)
}

// Suspend inserts a new wait entry for id. It is an error to suspend a
// worker that already has an entry.
func (g *Graph) Suspend(id types.WorkerID, reply chan mailbox.Verdict, kind types.SymbolKind, on string, defining *string) error {
	if _, exists := g.byWorker[id]; exists {
		return ErrAlreadyWaiting
	}

	e := &Entry{
		Worker:    id,
		Reply:     reply,
		Kind:      kind,
		WaitingOn: on,
		Defining:  defining,
	}
	g.byWorker[id] = e
	g.byWait[on] = append(g.byWait[on], e)
	return nil
}

// ReleaseMatching pops every entry waiting on symbol whose wait kind is
// satisfied by a definition of kind definitionKind, returning each
// released worker's reply channel so the caller can answer it.
func (g *Graph) ReleaseMatching(symbol string, definitionKind types.SymbolKind) []ReleasedEntry {
	entries := g.byWait[symbol]
	if len(entries) == 0 {
		return nil
	}

	var released []ReleasedEntry
	var kept []*Entry
	for _, e := range entries {
		if definitionKind.Satisfies(e.Kind) {
			released = append(released, ReleasedEntry{Worker: e.Worker, Reply: e.Reply})
			delete(g.byWorker, e.Worker)
		} else {
			kept = append(kept, e)
		}
	}

	if len(kept) == 0 {
		delete(g.byWait, symbol)
	} else {
		g.byWait[symbol] = kept
	}
	return released
}

// ReleasedEntry is a suspended worker that is ready to be woken, paired
// with the reply channel the coordinator must answer.
type ReleasedEntry struct {
	Worker types.WorkerID
	Reply  chan mailbox.Verdict
}

// Remove drops any entry for id. It is idempotent, since a worker may
// complete (or be force-killed) with a stale wait entry still present —
// e.g. when the back-end recovered from its own exception around a
// waiting call and kept running without ever consuming the reply.
func (g *Graph) Remove(id types.WorkerID) {
	e, exists := g.byWorker[id]
	if !exists {
		return
	}
	delete(g.byWorker, id)

	entries := g.byWait[e.WaitingOn]
	for i, other := range entries {
		if other.Worker == id {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(g.byWait, e.WaitingOn)
	} else {
		g.byWait[e.WaitingOn] = entries
	}
}

// NoDefinerEntries returns every entry whose WaitingOn symbol is not the
// Defining symbol of any other entry currently in the graph. These are
// safe to release with NotFound: no other suspended worker in the batch
// will ever produce the symbol, so there is nothing left to wait for.
func (g *Graph) NoDefinerEntries() []ReleasedEntry {
	defining := make(map[string]types.WorkerID, len(g.byWorker))
	for _, e := range g.byWorker {
		if e.Defining != nil {
			defining[*e.Defining] = e.Worker
		}
	}

	var result []ReleasedEntry
	for _, e := range g.byWorker {
		if definer, ok := defining[e.WaitingOn]; !ok || definer == e.Worker {
			result = append(result, ReleasedEntry{Worker: e.Worker, Reply: e.Reply})
		}
	}
	return result
}

// IsCyclicClosed reports whether the graph is non-empty and every entry
// in it is waiting on a symbol some other entry is defining — i.e.
// NoDefinerEntries is empty. No forward progress is possible from this
// state: it is a deadlock.
func (g *Graph) IsCyclicClosed() bool {
	return len(g.byWorker) > 0 && len(g.NoDefinerEntries()) == 0
}

// Entries returns a snapshot of every currently suspended entry, used by
// diagnostics to list participating files when a deadlock fires.
func (g *Graph) Entries() []*Entry {
	out := make([]*Entry, 0, len(g.byWorker))
	for _, e := range g.byWorker {
		out = append(out, e)
	}
	return out
}
