// Package types defines the core domain model shared by the coordinator,
// its workers, and any compiler back-end that plugs into it: files,
// symbols, and the small set of value types that cross the worker/
// coordinator boundary.
package types

import "path/filepath"

// File identifies a single compilation unit by its source path. Equality
// is by the path text, so two Files built from the same path string
// compare equal regardless of where they were constructed; different
// spellings of the same on-disk file do not.
type File struct {
	// Path is the path as given to the coordinator (may be relative).
	Path string
}

// NewFile wraps path as given by the caller. Equality and hashing both
// use this original string, so two Files constructed from the same path
// text compare equal; Abs is available separately for callers that need
// a canonical on-disk location.
func NewFile(path string) File {
	return File{Path: path}
}

// Abs returns the absolute form of the file's path, used when the
// back-end needs a canonical on-disk location.
func (f File) Abs() (string, error) {
	return filepath.Abs(f.Path)
}

func (f File) String() string {
	return f.Path
}

// SymbolKind distinguishes the two strengths of compile-time declaration
// the coordinator tracks. A module definition satisfies both a
// module-kind and a struct-kind wait; a struct definition only satisfies
// struct-kind waits.
type SymbolKind int

const (
	// SymbolStruct is a lighter declaration — the shape of a
	// user-defined composite — that does not require full compilation
	// of its defining file to be usable by name.
	SymbolStruct SymbolKind = iota
	// SymbolModule is a full module definition.
	SymbolModule
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolModule:
		return "module"
	case SymbolStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a definition of kind k unblocks a wait that
// requires waitKind. A module definition satisfies both wait kinds; a
// struct definition only satisfies a struct wait.
func (k SymbolKind) Satisfies(waitKind SymbolKind) bool {
	if k == SymbolModule {
		return true
	}
	return waitKind == SymbolStruct
}

// Symbol is an opaque identifier for a compile-time entity introduced by
// some file — a module or a struct-like shape — that other files may
// reference by name before that file has finished (or even started)
// compiling.
type Symbol struct {
	Name string
	Kind SymbolKind
}

func (s Symbol) String() string {
	return s.Kind.String() + " " + s.Name
}

// WorkerID is a unique, stable handle for a running worker, used as the
// key across every table the coordinator maintains.
type WorkerID uint64

// ResultEntry is one append-only record in the coordinator's result log:
// a symbol paired with the strength of the definition that produced it.
type ResultEntry struct {
	Kind   SymbolKind
	Symbol Symbol
}
