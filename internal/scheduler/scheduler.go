// Package scheduler owns the pending-file queue and the running-worker
// set, and implements the admission rule that keeps the number of
// actively-running (non-suspended) workers under the concurrency cap.
//
// Like waitgraph, Scheduler is not safe for concurrent use: it is
// mutated only from the coordinator's single event-loop goroutine.
package scheduler

import (
	"context"
	"time"

	"github.com/vantalang/coordinator/internal/waitgraph"
	"github.com/vantalang/coordinator/pkg/types"
)

// Record is the coordinator's bookkeeping for one running worker.
type Record struct {
	Worker types.WorkerID
	File   types.File
	Cancel context.CancelFunc
	Timer  *time.Timer
}

// Scheduler tracks pending files, running workers, and the wait graph
// those workers may be suspended in.
type Scheduler struct {
	pending []types.File
	running map[types.WorkerID]*Record

	// Wait is the graph of currently suspended workers. It is exported
	// because the coordinator's event handlers mutate it directly in
	// response to struct/module availability and waiting events — the
	// scheduler's own job is admission and bookkeeping, not answering
	// dependency questions.
	Wait *waitgraph.Graph

	cap int
}

// New returns a Scheduler with concurrency cap c.
func New(c int) *Scheduler {
	return &Scheduler{
		running: make(map[types.WorkerID]*Record),
		Wait:    waitgraph.New(),
		cap:     c,
	}
}

// Enqueue appends files to the pending queue, preserving order.
func (s *Scheduler) Enqueue(files ...types.File) {
	s.pending = append(s.pending, files...)
}

// Active returns the number of running workers that are not currently
// suspended — the only count the concurrency cap applies to: suspended
// workers hold no scheduler slot because they consume no CPU, but they
// still occupy the running set because they must eventually be reaped.
func (s *Scheduler) Active() int {
	return len(s.running) - s.Wait.Len()
}

// CanAdmit reports whether another pending file may be started right now.
func (s *Scheduler) CanAdmit() bool {
	return len(s.pending) > 0 && s.Active() < s.cap
}

// NextPending pops and returns the next pending file in FIFO order.
func (s *Scheduler) NextPending() (types.File, bool) {
	if len(s.pending) == 0 {
		return types.File{}, false
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	return f, true
}

// AddRunning registers a newly spawned worker.
func (s *Scheduler) AddRunning(rec *Record) {
	s.running[rec.Worker] = rec
}

// Get returns the record for a running worker, if any.
func (s *Scheduler) Get(id types.WorkerID) (*Record, bool) {
	rec, ok := s.running[id]
	return rec, ok
}

// RemoveRunning drops a worker from the running set (it has exited or
// been killed) and returns its record, if it had one.
func (s *Scheduler) RemoveRunning(id types.WorkerID) *Record {
	rec, ok := s.running[id]
	if !ok {
		return nil
	}
	delete(s.running, id)
	return rec
}

// PendingCount reports how many files have not yet started.
func (s *Scheduler) PendingCount() int {
	return len(s.pending)
}

// RunningCount reports how many workers (suspended or not) are currently
// tracked.
func (s *Scheduler) RunningCount() int {
	return len(s.running)
}

// AllRunning returns a snapshot of every currently running record,
// including suspended ones — used when the coordinator needs to kill
// every worker on fatal failure or deadlock.
func (s *Scheduler) AllRunning() []*Record {
	out := make([]*Record, 0, len(s.running))
	for _, rec := range s.running {
		out = append(out, rec)
	}
	return out
}

// Done reports whether the batch has finished successfully: nothing
// pending and no worker still running.
func (s *Scheduler) Done() bool {
	return len(s.pending) == 0 && len(s.running) == 0
}

// Stalled reports whether every running worker is suspended and there is
// nothing left to schedule in their place — the trigger for stall
// resolution.
func (s *Scheduler) Stalled() bool {
	return len(s.pending) == 0 && len(s.running) > 0 && s.Wait.Len() == len(s.running)
}
