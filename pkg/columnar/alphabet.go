// Package columnar holds per-position compressed sequence columns and
// per-shard insertion lists, and the scans that turn them into sample sets
// and frequency tables.
package columnar

// Alphabet names the symbols that never count as a mutation on their own.
// Sentinels are the same for every position of a store.
type Alphabet struct {
	Name    string
	Unknown byte
	Gap     byte
}

var (
	Nucleotide = Alphabet{Name: "nucleotide", Unknown: 'N', Gap: '-'}
	AminoAcid  = Alphabet{Name: "amino acid", Unknown: 'X', Gap: '-'}
)

// IsSentinel reports whether c is the unknown or the gap symbol.
func (a Alphabet) IsSentinel(c byte) bool {
	return c == a.Unknown || c == a.Gap
}

// Mutation selects a residue at a 1-based position. To == 0 means any
// residue that differs from the reference and is not a sentinel.
type Mutation struct {
	Position int
	To       byte
}

func (m Mutation) IsWildcard() bool {
	return m.To == 0
}
