// Package worker runs exactly one file through a compiler back-end.
//
// A Worker is one-shot, not drawn from a fixed pool: the coordinator
// launches one goroutine per File and that goroutine's only job is to
// drive Backend.Compile to completion (or failure), reporting every
// message the back-end emits along the way on the coordinator's single
// mailbox (internal/mailbox). A fixed-size pool doesn't fit here because
// the number of workers actually running CPU-bound work varies as
// workers suspend and resume; the admission rule that decides how many
// one-shot workers are in flight lives in the scheduler, not in a pool
// size fixed at startup.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/vantalang/coordinator/internal/mailbox"
	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// Worker drives a single file through a Backend, implementing
// backend.Handle so the back-end can report progress and block on
// dependencies without knowing anything about the coordinator's
// internals.
type Worker struct {
	id      types.WorkerID
	file    types.File
	be      backend.Backend
	opts    backend.Options
	mailbox chan mailbox.Event

	// ctx is consulted by every blocking Handle method so that a forced
	// kill actually unblocks a worker parked on a reply or ack channel,
	// rather than leaking it forever — the coordinator makes no attempt
	// at graceful shutdown once it decides to kill. It defaults to
	// context.Background() so calling Handle methods directly in a test,
	// without going through Run, behaves like a plain blocking call.
	ctx context.Context
}

// New returns a Worker for file. mbox is the coordinator's single
// mailbox channel; the worker only ever sends on it.
func New(id types.WorkerID, file types.File, be backend.Backend, opts backend.Options, mbox chan mailbox.Event) *Worker {
	return &Worker{id: id, file: file, be: be, opts: opts, mailbox: mbox, ctx: context.Background()}
}

// Run compiles the worker's file to completion and reports exactly one
// terminal WorkerExited event. A panic inside the back-end is recovered
// and reported as a Failure rather than propagated, so one file's bug
// never takes down the coordinator or its peers.
func (w *Worker) Run(ctx context.Context) {
	w.ctx = ctx
	var exitFailure *backend.Failure

	func() {
		defer func() {
			if r := recover(); r != nil {
				exitFailure = &backend.Failure{
					Kind:   "panic",
					Reason: fmt.Errorf("panic: %v", r),
					Stack:  captureStack(w.be.InternalPackages()),
				}
			}
		}()

		if err := w.be.Compile(ctx, w.file, w, w.opts); err != nil {
			exitFailure = asFailure(err, w.be.InternalPackages())
		}
	}()

	select {
	case w.mailbox <- mailbox.Event{Kind: mailbox.WorkerExited, Worker: w.id, File: w.file, Failure: exitFailure}:
	case <-w.ctx.Done():
	}
}

// Wait implements backend.Handle.
func (w *Worker) Wait(waitKind types.SymbolKind, on string, defining string) bool {
	reply := make(chan mailbox.Verdict, 1)

	var definingPtr *string
	if defining != "" {
		definingPtr = &defining
	}

	ev := mailbox.Event{
		Kind:     mailbox.Waiting,
		Worker:   w.id,
		File:     w.file,
		WaitKind: waitKind,
		On:       on,
		Defining: definingPtr,
		Reply:    reply,
	}

	select {
	case w.mailbox <- ev:
	case <-w.ctx.Done():
		return false
	}

	select {
	case v := <-reply:
		return v == mailbox.Found
	case <-w.ctx.Done():
		return false
	}
}

// StructAvailable implements backend.Handle.
func (w *Worker) StructAvailable(name string) {
	ev := mailbox.Event{
		Kind:   mailbox.StructAvailable,
		Worker: w.id,
		File:   w.file,
		Symbol: types.Symbol{Name: name, Kind: types.SymbolStruct},
	}
	select {
	case w.mailbox <- ev:
	case <-w.ctx.Done():
	}
}

// ModuleAvailable implements backend.Handle. It blocks until the
// coordinator acknowledges the symbol has been logged.
func (w *Worker) ModuleAvailable(name string, bytecode []byte) {
	ack := make(chan struct{})
	ev := mailbox.Event{
		Kind:     mailbox.ModuleAvailable,
		Worker:   w.id,
		File:     w.file,
		Symbol:   types.Symbol{Name: name, Kind: types.SymbolModule},
		Bytecode: bytecode,
		Ack:      ack,
	}

	select {
	case w.mailbox <- ev:
	case <-w.ctx.Done():
		return
	}

	select {
	case <-ack:
	case <-w.ctx.Done():
	}
}

// asFailure normalizes any error returned by a Backend into a
// *backend.Failure, pruning its stack if it is already one and wrapping
// it with an "unclassified" kind and a freshly captured stack otherwise.
func asFailure(err error, internalPkgs []string) *backend.Failure {
	if f, ok := err.(*backend.Failure); ok {
		i := 0
		for i < len(f.Stack) && isInternal(f.Stack[i].Package, internalPkgs) {
			i++
		}
		f.Stack = f.Stack[i:]
		return f
	}
	return &backend.Failure{
		Kind:   "unclassified",
		Reason: err,
		Stack:  captureStack(internalPkgs),
	}
}

// captureStack walks the calling goroutine's stack and strips leading
// frames belonging to packages the back-end considers internal, keeping
// non-internal frames in order.
func captureStack(internalPkgs []string) []backend.Frame {
	const maxFrames = 32
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []backend.Frame
	pruning := true
	for {
		f, more := frames.Next()
		pkg := packageOf(f.Function)
		if pruning && isInternal(pkg, internalPkgs) {
			if !more {
				break
			}
			continue
		}
		pruning = false
		out = append(out, backend.Frame{Package: pkg, Function: f.Function, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

func packageOf(function string) string {
	if idx := strings.LastIndex(function, "/"); idx >= 0 {
		rest := function[idx+1:]
		if dot := strings.Index(rest, "."); dot >= 0 {
			return function[:idx+1] + rest[:dot]
		}
		return function
	}
	if dot := strings.Index(function, "."); dot >= 0 {
		return function[:dot]
	}
	return function
}

func isInternal(pkg string, internalPkgs []string) bool {
	for _, p := range internalPkgs {
		if pkg == p {
			return true
		}
	}
	return false
}
