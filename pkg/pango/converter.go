package pango

import "strings"

// Converter turns lineage queries into LIKE patterns against full lineage names.
type Converter struct {
	resolver *AliasResolver
}

func NewConverter(resolver *AliasResolver) *Converter {
	return &Converter{resolver: resolver}
}

// ConvertToPatterns returns the exact pattern for the resolved lineage and,
// with includeSublineages, a second pattern for its dotted descendants.
// Results OR together.
func (c *Converter) ConvertToPatterns(lineage string, includeSublineages bool) []string {
	full := EscapeLike(c.resolver.Resolve(strings.TrimSpace(lineage)))
	if !includeSublineages {
		return []string{full}
	}
	return []string{full, full + ".%"}
}

// Compile is ConvertToPatterns followed by CompileLike.
func (c *Converter) Compile(lineage string, includeSublineages bool) []Like {
	patterns := c.ConvertToPatterns(lineage, includeSublineages)
	out := make([]Like, len(patterns))
	for i, p := range patterns {
		out[i] = CompileLike(p)
	}
	return out
}
