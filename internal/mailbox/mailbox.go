// Package mailbox defines the single message shape that flows from
// workers and timers into the coordinator's event loop.
//
// The coordinator must never partition its event stream across multiple
// channels, since doing so would break the single point of ordering the
// rest of the design relies on. This package is the tagged union that
// lets one Go channel carry every event kind: struct/module
// availability, suspension requests, long-compilation timeouts, and
// worker exits.
package mailbox

import (
	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// Kind discriminates the populated fields of an Event.
type Kind int

const (
	StructAvailable Kind = iota
	ModuleAvailable
	Waiting
	LongTimeout
	WorkerExited
)

// Verdict is the coordinator's reply to a Waiting event.
type Verdict int

const (
	NotFound Verdict = iota
	Found
)

// Event is the tagged union delivered on the coordinator's mailbox
// channel. Only the fields relevant to Kind are populated; the rest are
// zero.
type Event struct {
	Kind   Kind
	Worker types.WorkerID
	File   types.File

	// StructAvailable / ModuleAvailable
	Symbol   types.Symbol
	Bytecode []byte
	Ack      chan struct{} // non-nil only for ModuleAvailable; closed once the coordinator has logged the symbol

	// Waiting
	WaitKind types.SymbolKind
	On       string
	Defining *string
	Reply    chan Verdict

	// WorkerExited
	Failure *backend.Failure // nil means a clean shutdown(file)
}
