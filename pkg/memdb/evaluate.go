package memdb

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"github.com/nasasaki/LAPIS/pkg/query"
)

// Evaluate returns the samples matching expr. Every node is evaluated;
// the result only ever contains IDs below SampleCount. cache may be nil.
func (s *Snapshot) Evaluate(expr query.Expr, cache *columnar.ColumnCache) (*roaring.Bitmap, error) {
	switch e := expr.(type) {
	case query.Conjunction:
		left, right, err := s.evaluatePair(e.Left, e.Right, cache)
		if err != nil {
			return nil, err
		}
		left.And(right)
		return left, nil

	case query.Disjunction:
		left, right, err := s.evaluatePair(e.Left, e.Right, cache)
		if err != nil {
			return nil, err
		}
		left.Or(right)
		return left, nil

	case query.Negation:
		inner, err := s.Evaluate(e.Expr, cache)
		if err != nil {
			return nil, err
		}
		inner.Flip(0, uint64(s.SampleCount))
		return inner, nil

	case query.PangoLineageQuery:
		patterns := s.Lineages.Compile(e.Lineage, e.IncludeSublineages)
		return s.Metadata.Strings[ColPangoLineageFull].Where(func(v string) bool {
			return v != "" && pango.MatchAny(patterns, strings.ToUpper(v))
		}), nil

	case query.NextstrainCladeQuery:
		return s.equalFold(ColNextstrainClade, e.Clade), nil

	case query.GisaidCladeQuery:
		return s.equalFold(ColGisaidClade, e.Clade), nil

	case query.NucleotideMutationQuery:
		return s.NucMutations.MatchSingle(columnar.Mutation{Position: e.Position, To: e.Base}, cache), nil

	case query.AminoAcidMutationQuery:
		store, err := s.Gene(e.Gene)
		if err != nil {
			return nil, err
		}
		return store.MatchSingle(columnar.Mutation{Position: e.Position, To: e.Residue}, cache), nil

	default:
		return nil, fmt.Errorf("evaluate: unsupported expression %T", expr)
	}
}

func (s *Snapshot) evaluatePair(a, b query.Expr, cache *columnar.ColumnCache) (*roaring.Bitmap, *roaring.Bitmap, error) {
	left, err := s.Evaluate(a, cache)
	if err != nil {
		return nil, nil, err
	}
	right, err := s.Evaluate(b, cache)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (s *Snapshot) equalFold(column, value string) *roaring.Bitmap {
	return s.Metadata.Strings[column].Where(func(v string) bool {
		return v != "" && strings.EqualFold(v, value)
	})
}

// Filter parses and evaluates a variant query in one step.
func (s *Snapshot) Filter(variantQuery string) (*roaring.Bitmap, error) {
	expr, err := query.Parse(variantQuery)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(expr, columnar.NewColumnCache())
}
