// Package demo is a small, declarative stand-in for the compiler
// back-end the coordinator treats as an external collaborator. It lets
// tests and the cmd/vantac CLI describe a batch's dependency shape
// directly — which symbols each file declares, which it references, how
// long it takes, and how it fails — without a real parser.
//
// The simulated compile delay and random failure rate sleep a random
// duration and fail a fixed percentage of the time, the same shape a
// real compiler's timing looks like under load, so the coordinator's
// suspend/release/timeout paths get exercised under realistic timing
// rather than only deterministic one.
package demo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// Reference describes one symbol a file needs before it can finish
// compiling.
type Reference struct {
	Symbol string
	Kind   types.SymbolKind
}

// Declaration describes one symbol a file introduces.
type Declaration struct {
	Symbol string
	Kind   types.SymbolKind
}

// FileSpec is one file's script: what it declares, what it references
// (in order), and how it behaves while doing so.
type FileSpec struct {
	Declares   []Declaration
	References []Reference

	// Delay simulates compile time. If zero, a random delay below the
	// owning Backend's jitterMax is used instead (none if jitterMax is 0).
	Delay time.Duration

	// Err, if non-nil, is returned after References are resolved and
	// before Declares are emitted — simulating a back-end exception
	// mid-compilation.
	Err error

	// Panic simulates an unrecovered back-end bug instead of a normal
	// error return.
	Panic bool
}

func (s FileSpec) definingSymbol() string {
	if len(s.Declares) == 0 {
		return ""
	}
	return s.Declares[0].Symbol
}

// Backend is a backend.Backend driven entirely by a fixed table of
// FileSpecs, one per file path.
type Backend struct {
	specs     map[string]FileSpec
	jitterMax time.Duration
	failRate  int // percent chance of a random, undeclared failure

	mu sync.Mutex
}

// New returns a Backend for the given specs, keyed by File.Path.
// jitterMax bounds the random delay applied to files whose FileSpec
// leaves Delay at zero; failRate is the percent chance (0-100) that an
// otherwise-successful file randomly fails.
func New(specs map[string]FileSpec, jitterMax time.Duration, failRate int) *Backend {
	return &Backend{specs: specs, jitterMax: jitterMax, failRate: failRate}
}

// InternalPackages implements backend.Backend.
func (b *Backend) InternalPackages() []string {
	return []string{"github.com/vantalang/coordinator/internal/demo"}
}

// Compile implements backend.Backend.
func (b *Backend) Compile(ctx context.Context, file types.File, h backend.Handle, opts backend.Options) error {
	spec, ok := b.specs[file.Path]
	if !ok {
		return fmt.Errorf("demo: no spec registered for file %s", file.Path)
	}

	delay := spec.Delay
	if delay == 0 && b.jitterMax > 0 {
		delay = time.Duration(rand.Int63n(int64(b.jitterMax)))
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	for _, ref := range spec.References {
		if !h.Wait(ref.Kind, ref.Symbol, spec.definingSymbol()) {
			return fmt.Errorf("undefined symbol: %s", ref.Symbol)
		}
	}

	if spec.Panic {
		panic(fmt.Sprintf("demo backend panic compiling %s", file.Path))
	}
	if spec.Err != nil {
		return spec.Err
	}
	if b.failRate > 0 && rand.Intn(100) < b.failRate {
		return errors.New("simulated compilation failure")
	}

	for _, decl := range spec.Declares {
		bytecode := []byte(decl.Symbol)
		switch decl.Kind {
		case types.SymbolStruct:
			h.StructAvailable(decl.Symbol)
		case types.SymbolModule:
			h.ModuleAvailable(decl.Symbol, bytecode)
			if opts.WriteArtifacts {
				if err := b.writeArtifact(opts.Dest, decl.Symbol, decl.Kind, bytecode); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
