// Package pango resolves pango lineage aliases and turns lineage queries
// into LIKE patterns over full lineage names.
package pango

import (
	"sort"
	"strings"
)

// Alias maps a short lineage prefix to the full dotted name it stands for,
// e.g. BA -> B.1.1.529.
type Alias struct {
	Alias    string `db:"alias" yaml:"alias" json:"alias"`
	FullName string `db:"full_name" yaml:"full_name" json:"fullName"`
}

// AliasResolver is immutable after construction and safe for concurrent use.
type AliasResolver struct {
	toFull map[string]string
	// sorted by descending full name length, for Abbreviate
	byFull []Alias
}

func NewAliasResolver(aliases []Alias) *AliasResolver {
	r := &AliasResolver{toFull: make(map[string]string, len(aliases))}
	for _, a := range aliases {
		alias := strings.ToUpper(strings.TrimSpace(a.Alias))
		full := strings.ToUpper(strings.TrimSpace(a.FullName))
		if alias == "" || full == "" {
			continue
		}
		r.toFull[alias] = full
		r.byFull = append(r.byFull, Alias{Alias: alias, FullName: full})
	}
	sort.SliceStable(r.byFull, func(i, j int) bool {
		return len(r.byFull[i].FullName) > len(r.byFull[j].FullName)
	})
	return r
}

// All lists the aliases ordered by alias name.
func (r *AliasResolver) All() []Alias {
	if r == nil {
		return []Alias{}
	}
	out := make([]Alias, len(r.byFull))
	copy(out, r.byFull)
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

func (r *AliasResolver) Len() int {
	return len(r.toFull)
}

// Resolve replaces the first dot-separated segment of lineage with its full
// name when that segment is a known alias. Only one hop is taken, so a
// cyclic alias table can't loop. Unknown segments are returned as typed.
func (r *AliasResolver) Resolve(lineage string) string {
	lineage = strings.ToUpper(lineage)
	head, rest, hasRest := strings.Cut(lineage, ".")
	full, ok := r.toFull[head]
	if !ok {
		return lineage
	}
	if !hasRest {
		return full
	}
	return full + "." + rest
}

// Abbreviate is the inverse direction: it rewrites a full name to use the
// alias with the longest matching full-name prefix.
func (r *AliasResolver) Abbreviate(fullName string) string {
	fullName = strings.ToUpper(fullName)
	for _, a := range r.byFull {
		if fullName == a.FullName {
			return a.Alias
		}
		if rest, ok := strings.CutPrefix(fullName, a.FullName+"."); ok {
			return a.Alias + "." + rest
		}
	}
	return fullName
}
