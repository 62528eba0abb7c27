// Package backend defines the contract between the coordinator and the
// compiler back-end it drives. The back-end — the thing that actually
// turns a file into bytecode — is treated as an external collaborator,
// reached through an explicit context parameter plumbed through its
// public API rather than any ambient or task-local lookup. Handle is
// that parameter.
package backend

import (
	"context"

	"github.com/vantalang/coordinator/pkg/types"
)

// Handle is how a Backend talks back to the coordinator while it is
// compiling a single file. Every method may block: Wait blocks until the
// coordinator has an answer, and ModuleAvailable blocks until the
// coordinator has durably logged the symbol — a back-pressure guarantee
// that prevents a second worker from being released against a module
// before the first is fully registered.
type Handle interface {
	// Wait reports the symbol `on` as a dependency, blocking until the
	// coordinator either finds a matching definition (found=true) or
	// determines no other file in the batch will ever produce one
	// (found=false). `defining`, if non-empty, names the symbol this
	// worker is itself in the middle of defining — the coordinator uses
	// it purely for deadlock analysis.
	Wait(waitKind types.SymbolKind, on string, defining string) (found bool)

	// StructAvailable reports that this file has finished declaring the
	// shape of a struct-like symbol. It does not wait for an
	// acknowledgement from the coordinator.
	StructAvailable(name string)

	// ModuleAvailable reports that this file has finished compiling a
	// full module, handing the coordinator its bytecode. It blocks until
	// the coordinator has logged the symbol.
	ModuleAvailable(name string, bytecode []byte)
}

// Frame is one pruned stack frame attached to a Failure, innermost first.
type Frame struct {
	Package  string
	Function string
	Line     int
}

// Failure is what a Backend returns (wrapped, via Compile's error) when
// a file fails to compile for a reason other than an undefined symbol.
// Kind is a short classification the back-end assigns the error (e.g.
// "syntax", "type", "panic") used only for diagnostics.
type Failure struct {
	Kind   string
	Reason error
	Stack  []Frame
}

func (f *Failure) Error() string {
	return f.Reason.Error()
}

func (f *Failure) Unwrap() error {
	return f.Reason
}

// Options carries the subset of coordinator options a Backend needs to
// know about: whether (and where) to persist artifacts. The coordinator
// never interprets Dest itself — it is annotation-only when WriteArtifacts
// is false (the `files` entry point) and the authoritative output
// directory when it is true (the `files_to_path` entry point).
type Options struct {
	Dest           string
	WriteArtifacts bool
}

// Backend turns one File into zero or more symbol definitions, reported
// through Handle as they become available, and returns nil on success or
// a *Failure (or any other error, treated as an unclassified failure) on
// abnormal termination. Compile must not retain h beyond its own return.
type Backend interface {
	Compile(ctx context.Context, file types.File, h Handle, opts Options) error

	// InternalPackages lists package paths the back-end considers its
	// own internals, so the coordinator's diagnostic formatter can strip
	// leading frames that belong to the back-end rather than to user
	// code.
	InternalPackages() []string
}
