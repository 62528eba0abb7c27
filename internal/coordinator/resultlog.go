package coordinator

import "github.com/vantalang/coordinator/pkg/types"

// resultLog is the append-only ledger of every symbol the batch has
// defined so far. It is consulted to answer waiting events immediately
// when the symbol is already defined, and its module-only projection in
// append order is the public return value of a successful batch.
type resultLog struct {
	entries []types.ResultEntry
	best    map[string]types.SymbolKind // strongest kind seen per symbol name
}

func newResultLog() *resultLog {
	return &resultLog{best: make(map[string]types.SymbolKind)}
}

// Record appends a {kind, symbol} entry. Entries are unique by
// (kind, name): a struct declaration later promoted to a full module
// produces two distinct entries, both kept in order.
func (r *resultLog) Record(kind types.SymbolKind, name string) {
	for _, e := range r.entries {
		if e.Kind == kind && e.Symbol.Name == name {
			return
		}
	}
	r.entries = append(r.entries, types.ResultEntry{
		Kind:   kind,
		Symbol: types.Symbol{Name: name, Kind: kind},
	})
	if cur, ok := r.best[name]; !ok || (cur != types.SymbolModule && kind == types.SymbolModule) {
		r.best[name] = kind
	}
}

// Satisfies reports whether the log already contains a definition of
// name strong enough to unblock a wait of the given kind.
func (r *resultLog) Satisfies(waitKind types.SymbolKind, name string) bool {
	kind, ok := r.best[name]
	if !ok {
		return false
	}
	return kind.Satisfies(waitKind)
}

// Modules returns every module-kind symbol in the order it was
// recorded — the projection returned to the caller on success.
func (r *resultLog) Modules() []types.Symbol {
	var out []types.Symbol
	for _, e := range r.entries {
		if e.Kind == types.SymbolModule {
			out = append(out, e.Symbol)
		}
	}
	return out
}
