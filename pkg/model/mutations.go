package model

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/memdb"
)

type MutationEntry struct {
	Mutation   string  `json:"mutation"`
	Proportion float64 `json:"proportion"`
	Count      int     `json:"count"`
}

type InsertionEntry struct {
	Insertion string `json:"insertion"`
	Count     int    `json:"count"`
}

const insertionPrefix = "ins_"

// CountMutations reports every mutation found in at least minProportion of
// the matching samples, by descending proportion. Nucleotide mutations read
// A23403G, amino acid ones S:D614G.
func (s *SampleService) CountMutations(ctx context.Context, f SampleFilter, st params.SequenceType, minProportion float64) ([]MutationEntry, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, err
	}
	if ids.IsEmpty() {
		return []MutationEntry{}, nil
	}

	var out []MutationEntry
	collect := func(store *columnar.MutationStore, prefix string) error {
		counts, err := store.CountMutations(ctx, ids)
		if err != nil {
			return err
		}
		for _, c := range counts {
			if c.Proportion < minProportion {
				continue
			}
			out = append(out, MutationEntry{
				Mutation:   fmt.Sprintf("%s%c%d%c", prefix, store.ReferenceAt(c.Position), c.Position, c.Residue),
				Proportion: c.Proportion,
				Count:      c.Count,
			})
		}
		return nil
	}

	switch st {
	case params.SequenceNuc:
		if err := collect(snap.NucMutations, ""); err != nil {
			return nil, err
		}
	case params.SequenceAA:
		for _, gene := range snap.Genes() {
			if err := collect(snap.AAMutations[gene], gene+":"); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Proportion != out[j].Proportion {
			return out[i].Proportion > out[j].Proportion
		}
		return out[i].Mutation < out[j].Mutation
	})
	if out == nil {
		out = []MutationEntry{}
	}
	return out, nil
}

// CountInsertions counts the insertions of the matching samples, most common
// first. Descriptors read ins_22204:GAGCCAGAA or ins_S:214:EPE.
func (s *SampleService) CountInsertions(ctx context.Context, f SampleFilter, st params.SequenceType) ([]InsertionEntry, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, err
	}
	out := []InsertionEntry{}
	if ids.IsEmpty() {
		return out, nil
	}

	collect := func(store *columnar.InsertionStore, prefix string) error {
		counts, err := store.CountInsertions(ctx, ids)
		if err != nil {
			return err
		}
		for _, c := range counts {
			out = append(out, InsertionEntry{Insertion: prefix + c.Insertion, Count: c.Count})
		}
		return nil
	}

	switch st {
	case params.SequenceNuc:
		if err := collect(snap.NucInsertions, insertionPrefix); err != nil {
			return nil, err
		}
	case params.SequenceAA:
		for _, gene := range snap.Genes() {
			if err := collect(snap.AAInsertions[gene], insertionPrefix+gene+":"); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Insertion < out[j].Insertion
	})
	return out, nil
}

// MatchInsertion returns the matching samples that carry one insertion,
// given as a descriptor with or without the ins_ prefix.
func (s *SampleService) MatchInsertion(ctx context.Context, f SampleFilter, st params.SequenceType, insertion string) ([]uint32, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	store, raw, err := insertionStore(snap, st, insertion)
	if err != nil {
		return nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, err
	}
	if ids.IsEmpty() {
		return []uint32{}, nil
	}
	return store.Match(raw, ids).ToArray(), nil
}

func insertionStore(snap *memdb.Snapshot, st params.SequenceType, descriptor string) (*columnar.InsertionStore, string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(descriptor), insertionPrefix)
	if st == params.SequenceNuc {
		if raw == "" {
			return nil, "", fmt.Errorf("%w: empty insertion", ErrBadParameter)
		}
		return snap.NucInsertions, raw, nil
	}
	gene, rest, ok := strings.Cut(raw, ":")
	if !ok || rest == "" {
		return nil, "", fmt.Errorf("%w: insertion %q has no gene", ErrBadParameter, descriptor)
	}
	store, err := snap.GeneInsertions(gene)
	if err != nil {
		return nil, "", err
	}
	return store, rest, nil
}
