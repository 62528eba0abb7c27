// Package coordinator is the single-threaded event loop that drives a
// batch of files to completion: it owns the wait-graph, the scheduler,
// and the result log, and is the only goroutine in the process that
// ever mutates any of them.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/vantalang/coordinator/internal/diag"
	"github.com/vantalang/coordinator/internal/mailbox"
	"github.com/vantalang/coordinator/internal/metrics"
	"github.com/vantalang/coordinator/internal/scheduler"
	"github.com/vantalang/coordinator/internal/warnings"
	"github.com/vantalang/coordinator/internal/worker"
	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

var log = slog.Default()

// DefaultLongCompilationThreshold is used when Options leaves the field
// at its zero value.
const DefaultLongCompilationThreshold = 5000 * time.Millisecond

// Options configures one batch run. The zero value is usable: it picks
// a concurrency cap from the host's hardware parallelism, a 5s
// long-compilation threshold, no artifact directory, and a no-op
// warnings registry.
type Options struct {
	Concurrency              int
	LongCompilationThreshold time.Duration
	Dest                     string
	WriteArtifacts           bool

	WarningsAsErrors bool
	WarningsRegistry warnings.Registry

	Metrics *metrics.Collector

	OnFileDone        func(types.File)
	OnLongCompilation func(types.File)
	OnModuleCompiled  func(types.File, types.Symbol, []byte)
}

func (o Options) cap() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	if n := runtime.NumCPU(); n > 2 {
		return n
	}
	return 2
}

func (o Options) threshold() time.Duration {
	if o.LongCompilationThreshold > 0 {
		return o.LongCompilationThreshold
	}
	return DefaultLongCompilationThreshold
}

func (o Options) registry() warnings.Registry {
	if o.WarningsRegistry != nil {
		return o.WarningsRegistry
	}
	return warnings.None{}
}

// haltSignal carries a fatal worker failure out of the event dispatcher
// and up to Run, which owns printing the diagnostic and killing peers.
type haltSignal struct {
	file    types.File
	failure *backend.Failure
}

// coordinator holds the live state of one batch run.
type coordinator struct {
	be   backend.Backend
	opts Options

	sched *scheduler.Scheduler
	log   *resultLog
	mbox  chan mailbox.Event

	nextWorker types.WorkerID
	spawnedAt  map[types.WorkerID]time.Time
}

// Run drives files to completion against be and returns the ordered
// list of successfully compiled modules, or an error on fatal worker
// failure, deadlock, or a tripped warnings-as-errors check.
func Run(ctx context.Context, files []types.File, be backend.Backend, opts Options) ([]types.Symbol, error) {
	c := &coordinator{
		be:        be,
		opts:      opts,
		sched:     scheduler.New(opts.cap()),
		log:       newResultLog(),
		mbox:      make(chan mailbox.Event),
		spawnedAt: make(map[types.WorkerID]time.Time),
	}
	c.sched.Enqueue(files...)

	c.admit(ctx)
	for !c.sched.Done() {
		ev := <-c.mbox
		if halt := c.handle(ev); halt != nil {
			return nil, c.fatal(halt)
		}

		if c.sched.Stalled() {
			if c.resolveStall() {
				return nil, c.deadlock()
			}
		}

		c.admit(ctx)
		c.reportStats()
	}

	return c.finish()
}

// admit spawns as many pending files as the scheduler's admission rule
// allows. Releases are always processed (in handle) before admit runs,
// so a resumed worker never loses its slot to a newly spawned one.
func (c *coordinator) admit(ctx context.Context) {
	for c.sched.CanAdmit() {
		f, ok := c.sched.NextPending()
		if !ok {
			break
		}
		c.spawn(ctx, f)
	}
}

func (c *coordinator) spawn(ctx context.Context, f types.File) {
	id := c.nextWorker
	c.nextWorker++

	wctx, cancel := context.WithCancel(ctx)
	w := worker.New(id, f, c.be, backend.Options{Dest: c.opts.Dest, WriteArtifacts: c.opts.WriteArtifacts}, c.mbox)

	timer := time.AfterFunc(c.opts.threshold(), func() {
		c.mbox <- mailbox.Event{Kind: mailbox.LongTimeout, Worker: id, File: f}
	})

	c.sched.AddRunning(&scheduler.Record{Worker: id, File: f, Cancel: cancel, Timer: timer})
	c.spawnedAt[id] = time.Now()

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordSpawn()
	}
	log.Debug("spawned worker", "worker_id", id, "file", f.Path)

	go w.Run(wctx)
}

// handle dispatches exactly one mailbox event and returns non-nil only
// when the batch must abort on a fatal worker failure.
func (c *coordinator) handle(ev mailbox.Event) *haltSignal {
	switch ev.Kind {
	case mailbox.StructAvailable:
		c.log.Record(types.SymbolStruct, ev.Symbol.Name)
		c.release(ev.Symbol.Name, types.SymbolStruct)

	case mailbox.ModuleAvailable:
		if cb := c.opts.OnModuleCompiled; cb != nil {
			cb(ev.File, ev.Symbol, ev.Bytecode)
		}
		c.log.Record(types.SymbolModule, ev.Symbol.Name)
		c.release(ev.Symbol.Name, types.SymbolModule)
		close(ev.Ack)
		if rec, ok := c.sched.Get(ev.Worker); ok && rec.Timer != nil {
			rec.Timer.Stop()
		}

	case mailbox.Waiting:
		if c.log.Satisfies(ev.WaitKind, ev.On) {
			ev.Reply <- mailbox.Found
			return nil
		}
		if err := c.sched.Wait.Suspend(ev.Worker, ev.Reply, ev.WaitKind, ev.On, ev.Defining); err != nil {
			log.Error("wait-graph invariant violation", "worker_id", ev.Worker, "error", err)
		}

	case mailbox.LongTimeout:
		if _, ok := c.sched.Get(ev.Worker); !ok {
			// Worker already terminated; this timer fired after the
			// fact and must be drained rather than acted on.
			return nil
		}
		if c.opts.Metrics != nil {
			c.opts.Metrics.RecordLongCompilation()
		}
		if cb := c.opts.OnLongCompilation; cb != nil {
			cb(ev.File)
		}

	case mailbox.WorkerExited:
		rec := c.sched.RemoveRunning(ev.Worker)
		if rec != nil && rec.Timer != nil {
			rec.Timer.Stop()
		}
		c.sched.Wait.Remove(ev.Worker)
		startedAt, hadStart := c.spawnedAt[ev.Worker]
		delete(c.spawnedAt, ev.Worker)

		if ev.Failure != nil {
			if c.opts.Metrics != nil {
				c.opts.Metrics.RecordFailed()
			}
			return &haltSignal{file: ev.File, failure: ev.Failure}
		}

		if c.opts.Metrics != nil {
			latency := 0.0
			if hadStart {
				latency = time.Since(startedAt).Seconds()
			}
			c.opts.Metrics.RecordCompleted(latency)
		}
		if cb := c.opts.OnFileDone; cb != nil {
			cb(ev.File)
		}
	}
	return nil
}

// release answers every wait-graph entry that a fresh definition of
// symbol unblocks.
func (c *coordinator) release(symbol string, definitionKind types.SymbolKind) {
	for _, r := range c.sched.Wait.ReleaseMatching(symbol, definitionKind) {
		r.Reply <- mailbox.Found
	}
}

// resolveStall attempts to release every suspended worker that has no
// possible definer left in the batch. It returns true if nothing could
// be released — the stall is an unresolvable deadlock.
func (c *coordinator) resolveStall() bool {
	released := c.sched.Wait.NoDefinerEntries()
	if len(released) == 0 {
		return true
	}
	for _, r := range released {
		c.sched.Wait.Remove(r.Worker)
		r.Reply <- mailbox.NotFound
	}
	return false
}

// fatal prints the diagnostic for a fatal worker failure, kills every
// other running worker, and returns the error Run surfaces to the
// caller.
func (c *coordinator) fatal(h *haltSignal) error {
	fmt.Fprint(os.Stderr, diag.CompileError(h.file, h.failure))
	c.killAll()
	return fmt.Errorf("compilation failed: %s: %w", h.file.Path, h.failure)
}

// deadlock prints the deadlock diagnostic for every still-suspended
// worker, kills them all, and returns the batch's terminal error.
func (c *coordinator) deadlock() error {
	var entries []diag.DeadlockEntry
	for _, e := range c.sched.Wait.Entries() {
		// Every wait-graph entry belongs to a worker still in the
		// running set — entries are only ever created for workers the
		// scheduler is tracking, and killAll hasn't run yet.
		if rec, ok := c.sched.Get(e.Worker); ok {
			entries = append(entries, diag.DeadlockEntry{File: rec.File, Symbol: e.WaitingOn})
		}
	}

	fmt.Fprint(os.Stderr, diag.Deadlock(entries))
	c.killAll()
	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordDeadlock()
	}
	return errors.New("deadlock detected")
}

// killAll forcibly cancels every running worker's context. The
// coordinator makes no attempt at graceful shutdown here: the batch is
// already failing.
func (c *coordinator) killAll() {
	for _, rec := range c.sched.AllRunning() {
		if rec.Cancel != nil {
			rec.Cancel()
		}
		if rec.Timer != nil {
			rec.Timer.Stop()
		}
	}
}

// finish runs the post-batch warnings-as-errors check and returns the
// module projection of the result log.
func (c *coordinator) finish() ([]types.Symbol, error) {
	modules := c.log.Modules()

	if c.opts.WarningsAsErrors {
		if ws := c.opts.registry().Warnings(); len(ws) > 0 {
			fmt.Fprint(os.Stderr, diag.WarningsAsErrors(ws))
			return modules, fmt.Errorf("warnings-as-errors: %d warning(s) reported", len(ws))
		}
	}

	return modules, nil
}

func (c *coordinator) reportStats() {
	if c.opts.Metrics == nil {
		return
	}
	c.opts.Metrics.UpdateSchedulerStats(c.sched.PendingCount(), c.sched.RunningCount(), c.sched.Wait.Len())
}
