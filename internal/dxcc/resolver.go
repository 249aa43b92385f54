package dxcc

import (
	"strings"

	"github.com/user00265/hamtools/internal/cty"
)

// Resolved is the DXCC information for one callsign. It is a copy of the
// matched entity with the entry's overrides applied; it never aliases the
// table.
type Resolved struct {
	cty.Entity   `yaml:",inline"`
	MatchedToken string `json:"matched" yaml:"matched"` // raw token that won the match
	Exact        bool   `json:"exact" yaml:"exact"`     // true when the token was an exact-callsign entry
}

// aliases rewrites canonical prefixes of entities that cty.dat lists
// separately but which belong to a DXCC entity.
var aliases = map[string]string{
	"*TA1":  "TA", // Turkey (European part)
	"*4U1V": "OE", // 4U1VIC is in OE
	"*GM/s": "GM", // Shetland Islands
	"*IG10": "I",  // African Italy
	"*IT9":  "I",  // Sicily
	"*JW/b": "JW", // Bear Island
}

// CanonicalPrefix applies the alias rewrite to a canonical prefix.
// Prefixes without a rewrite rule are returned unchanged.
func CanonicalPrefix(prefix string) string {
	if !strings.HasPrefix(prefix, "*") {
		return prefix
	}
	if to, ok := aliases[prefix]; ok {
		return to
	}
	return prefix
}

// Resolver finds the DXCC entity of a callsign. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	table *cty.Table
}

// NewResolver returns a resolver over table.
func NewResolver(table *cty.Table) *Resolver {
	return &Resolver{table: table}
}

// Table returns the table the resolver scans.
func (r *Resolver) Table() *cty.Table {
	return r.table
}

// Resolve returns the entity whose entry best matches callsign.
//
// Every entry is scored: an exact-callsign entry scores its key length when
// it equals the callsign, a prefix entry scores its key length when the
// callsign starts with it. The highest score wins. On equal scores an exact
// entry beats a prefix entry, otherwise the earlier entry in table order
// wins.
func (r *Resolver) Resolve(callsign string) (Resolved, error) {
	call := strings.ToUpper(strings.TrimSpace(callsign))

	var (
		best       cty.TestEntry
		bestEntity cty.Entity
		bestLen    int
	)
	for entity, entry := range r.table.AllEntries() {
		n := matchLength(call, entry)
		if n == 0 {
			continue
		}
		if n > bestLen || (n == bestLen && entry.Exact && !best.Exact) {
			best, bestEntity, bestLen = entry, entity, n
		}
	}
	if bestLen == 0 {
		return Resolved{}, &NoMatchError{Callsign: call}
	}

	out := Resolved{
		Entity:       best.Apply(bestEntity),
		MatchedToken: best.Raw,
		Exact:        best.Exact,
	}
	out.Prefix = CanonicalPrefix(out.Prefix)
	return out, nil
}

func matchLength(call string, entry cty.TestEntry) int {
	if entry.Exact {
		if call == entry.Key {
			return len(entry.Key)
		}
		return 0
	}
	if strings.HasPrefix(call, entry.Key) {
		return len(entry.Key)
	}
	return 0
}
