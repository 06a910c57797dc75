// Package memdb holds the in-memory database: an immutable, versioned
// snapshot of every column, the loader that builds one from the backing
// store, the manager that publishes new snapshots, and the variant query
// evaluator.
package memdb

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/pango"
)

var ErrUnknownGene = errors.New("unknown gene")

// Snapshot is never modified after Load returns it. Readers may hold on to
// it for as long as they need; a newer snapshot replaces it as a whole.
type Snapshot struct {
	DataVersion int64
	SampleCount int
	Metadata    *Metadata

	NucMutations  *columnar.MutationStore
	AAMutations   map[string]*columnar.MutationStore
	NucInsertions *columnar.InsertionStore
	AAInsertions  map[string]*columnar.InsertionStore

	Aliases  *pango.AliasResolver
	Lineages *pango.Converter
}

// Universe is a fresh bitmap of every sample ID.
func (s *Snapshot) Universe() *roaring.Bitmap {
	b := roaring.New()
	b.AddRange(0, uint64(s.SampleCount))
	return b
}

// Gene looks up the amino acid store of a gene, ignoring case.
func (s *Snapshot) Gene(name string) (*columnar.MutationStore, error) {
	store, ok := s.AAMutations[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGene, name)
	}
	return store, nil
}

func (s *Snapshot) GeneInsertions(name string) (*columnar.InsertionStore, error) {
	store, ok := s.AAInsertions[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGene, name)
	}
	return store, nil
}

// Genes lists the gene names in order.
func (s *Snapshot) Genes() []string {
	out := make([]string, 0, len(s.AAMutations))
	for g := range s.AAMutations {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
