package columnar

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/compress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MutationStore is the columnar store of one sequence: the nucleotide
// genome or the amino acids of one gene. Column p holds the symbol of
// every sample at position p, compressed. It is read-only once built.
type MutationStore struct {
	name        string
	alphabet    Alphabet
	reference   []byte
	columns     map[int][]byte
	sampleCount int
	codec       *compress.Codec
}

// NewMutationStore takes ownership of columns.
func NewMutationStore(name string, alphabet Alphabet, reference string, sampleCount int,
	codec *compress.Codec, columns map[int][]byte) *MutationStore {
	return &MutationStore{
		name:        name,
		alphabet:    alphabet,
		reference:   []byte(reference),
		columns:     columns,
		sampleCount: sampleCount,
		codec:       codec,
	}
}

func (s *MutationStore) Name() string       { return s.name }
func (s *MutationStore) Alphabet() Alphabet { return s.alphabet }
func (s *MutationStore) SampleCount() int   { return s.sampleCount }
func (s *MutationStore) Length() int        { return len(s.reference) }

// ReferenceAt returns the reference symbol at a 1-based position, or 0.
func (s *MutationStore) ReferenceAt(position int) byte {
	if position < 1 || position > len(s.reference) {
		return 0
	}
	return s.reference[position-1]
}

// Positions lists the stored columns in ascending order.
func (s *MutationStore) Positions() []int {
	out := make([]int, 0, len(s.columns))
	for p := range s.columns {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func (s *MutationStore) universe() *roaring.Bitmap {
	b := roaring.New()
	b.AddRange(0, uint64(s.sampleCount))
	return b
}

// column returns the decompressed column, going through cache when given.
// Missing, out of range and corrupt columns all come back as nil.
func (s *MutationStore) column(position int, cache *ColumnCache) []byte {
	if cache != nil {
		if col, ok := cache.get(s, position); ok {
			return col
		}
	}
	col := s.decode(position)
	if cache != nil {
		cache.put(s, position, col)
	}
	return col
}

func (s *MutationStore) decode(position int) []byte {
	if position < 1 || position > len(s.reference) {
		return nil
	}
	packed, ok := s.columns[position]
	if !ok {
		return nil
	}
	col, err := s.codec.Decompress(packed)
	if err == nil && len(col) != s.sampleCount {
		err = fmt.Errorf("column has %d symbols, want %d", len(col), s.sampleCount)
	}
	if err != nil {
		logger.Warn("Skipping corrupt column",
			zap.String("store", s.name),
			zap.Int("position", position),
			zap.Error(err),
		)
		return nil
	}
	return col
}

// predicate builds the per-symbol test for m.
func (s *MutationStore) predicate(m Mutation) func(c byte) bool {
	if !m.IsWildcard() {
		to := m.To
		return func(c byte) bool { return c == to }
	}
	ref := s.ReferenceAt(m.Position)
	alphabet := s.alphabet
	return func(c byte) bool { return c != ref && !alphabet.IsSentinel(c) }
}

// MatchSingle scans the whole column of m.Position.
func (s *MutationStore) MatchSingle(m Mutation, cache *ColumnCache) *roaring.Bitmap {
	out := roaring.New()
	col := s.column(m.Position, cache)
	if col == nil {
		return out
	}
	match := s.predicate(m)
	for id, c := range col {
		if match(c) {
			out.Add(uint32(id))
		}
	}
	return out
}

// matchWithin re-checks only the candidates.
func (s *MutationStore) matchWithin(m Mutation, candidates *roaring.Bitmap, cache *ColumnCache) *roaring.Bitmap {
	out := roaring.New()
	col := s.column(m.Position, cache)
	if col == nil {
		return out
	}
	match := s.predicate(m)
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) < len(col) && match(col[id]) {
			out.Add(id)
		}
	}
	return out
}

// IntersectProgressive returns the samples carrying every mutation. An
// empty list matches every sample.
func (s *MutationStore) IntersectProgressive(mutations []Mutation, cache *ColumnCache) *roaring.Bitmap {
	preds := make([]Predicate, len(mutations))
	for i, m := range mutations {
		preds[i] = Predicate{Store: s, Mutation: m}
	}
	if len(preds) == 0 {
		return s.universe()
	}
	return Narrow(nil, preds, cache)
}

// Predicate binds a mutation to the store it is looked up in, so nucleotide
// and amino acid mutations can share one narrowing chain.
type Predicate struct {
	Store    *MutationStore
	Mutation Mutation
}

// Narrow applies preds in order. With nil candidates the first predicate
// scans its whole column; every later one only looks at the samples still
// in the running. It stops as soon as nothing is left. The result does not
// depend on the order of preds, only the work done does.
func Narrow(candidates *roaring.Bitmap, preds []Predicate, cache *ColumnCache) *roaring.Bitmap {
	if len(preds) == 0 {
		if candidates == nil {
			return roaring.New()
		}
		return candidates.Clone()
	}

	rest := preds
	if candidates == nil {
		candidates = preds[0].Store.MatchSingle(preds[0].Mutation, cache)
		rest = preds[1:]
	}
	for _, p := range rest {
		if candidates.IsEmpty() {
			return roaring.New()
		}
		candidates = p.Store.matchWithin(p.Mutation, candidates, cache)
	}
	return candidates
}

// MutationCount is one non-reference residue at one position within a subset.
type MutationCount struct {
	Position   int
	Residue    byte
	Count      int
	Proportion float64
}

// CountMutations counts, at every position, each residue that differs from
// the reference and is not a sentinel, among the samples of subset.
// Proportion is Count / |subset|. Positions are scanned in parallel.
func (s *MutationStore) CountMutations(ctx context.Context, subset *roaring.Bitmap) ([]MutationCount, error) {
	total := int(subset.GetCardinality())
	if total == 0 {
		return nil, nil
	}
	ids := subset.ToArray()
	positions := s.Positions()
	perPosition := make([][]MutationCount, len(positions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, pos := range positions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perPosition[i] = s.countAt(pos, ids, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []MutationCount
	for _, counts := range perPosition {
		out = append(out, counts...)
	}
	return out, nil
}

func (s *MutationStore) countAt(pos int, ids []uint32, total int) []MutationCount {
	col := s.decode(pos)
	if col == nil {
		return nil
	}
	ref := s.ReferenceAt(pos)
	var counts [256]int
	for _, id := range ids {
		if int(id) < len(col) {
			counts[col[id]]++
		}
	}

	var out []MutationCount
	for c, n := range counts {
		sym := byte(c)
		if n == 0 || sym == ref || s.alphabet.IsSentinel(sym) {
			continue
		}
		out = append(out, MutationCount{
			Position:   pos,
			Residue:    sym,
			Count:      n,
			Proportion: float64(n) / float64(total),
		})
	}
	return out
}
