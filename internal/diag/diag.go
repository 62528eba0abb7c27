// Package diag formats the free-form diagnostics the coordinator prints
// itself: a single failed file's pruned error, the summary table that
// accompanies a deadlock, and the warnings-as-errors notice.
package diag

import (
	"fmt"
	"strings"

	"github.com/vantalang/coordinator/pkg/backend"
	"github.com/vantalang/coordinator/pkg/types"
)

// CompileError renders the header and pruned stack for one failed file:
//
//	== Compilation error on file <relpath> ==
//	<formatted exception>
func CompileError(file types.File, f *backend.Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== Compilation error on file %s ==\n", file.Path)
	if f == nil {
		b.WriteString("(no failure detail recorded)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%s: %v\n", f.Kind, f.Reason)
	for _, fr := range f.Stack {
		fmt.Fprintf(&b, "\tat %s (%s:%d)\n", fr.Function, fr.Package, fr.Line)
	}
	return b.String()
}

// DeadlockEntry names one worker that was killed because it could not
// make progress: the file it was compiling and the symbol it was
// waiting on.
type DeadlockEntry struct {
	File   types.File
	Symbol string
}

// DeadlockFile renders the synthetic compilation error for a single
// deadlocked file: "deadlocked waiting on module <symbol>".
func DeadlockFile(e DeadlockEntry) string {
	return fmt.Sprintf("== Compilation error on file %s ==\ndeadlocked waiting on module %s\n", e.File.Path, e.Symbol)
}

// Deadlock renders the full diagnostic: one synthetic error per entry,
// followed by a "file => symbol" summary table right-aligned on the
// longest file path.
func Deadlock(entries []DeadlockEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(DeadlockFile(e))
	}

	b.WriteString("\ndeadlock detected among the following files:\n")
	width := 0
	for _, e := range entries {
		if len(e.File.Path) > width {
			width = len(e.File.Path)
		}
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "  %*s => %s\n", width, e.File.Path, e.Symbol)
	}
	return b.String()
}

// WarningsAsErrors renders the single-line notice printed when the
// post-batch warnings check trips.
func WarningsAsErrors(warnings []string) string {
	return fmt.Sprintf("warnings-as-errors: %d warning(s) reported, failing build\n", len(warnings))
}
