package memdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/compress"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is what a snapshot is built from. *db.LapisDB implements it.
type Source interface {
	CurrentDataVersion(ctx context.Context) (int64, error)
	Aliases(ctx context.Context) ([]pango.Alias, error)
	References(ctx context.Context) (map[string]string, error)
	Metadata(ctx context.Context) ([]db.MetadataRow, error)
	NucColumns(ctx context.Context) (map[int][]byte, error)
	AAColumns(ctx context.Context, gene string) (map[int][]byte, error)
	NucInsertionShards(ctx context.Context) ([]columnar.InsertionShard, error)
	AAInsertionShards(ctx context.Context, gene string) ([]columnar.InsertionShard, error)
}

var _ Source = (*db.LapisDB)(nil)

// Load reads everything from src and builds a complete snapshot. Genes are
// loaded in parallel. Nothing is returned unless every part loaded.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	start := time.Now()

	version, err := src.CurrentDataVersion(ctx)
	if err != nil {
		return nil, err
	}
	aliases, err := src.Aliases(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := src.References(ctx)
	if err != nil {
		return nil, err
	}
	nucRef, ok := refs[""]
	if !ok {
		return nil, fmt.Errorf("load snapshot: no nucleotide reference sequence")
	}
	rows, err := src.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	n := len(rows)
	resolver := pango.NewAliasResolver(aliases)
	snap := &Snapshot{
		DataVersion:  version,
		SampleCount:  n,
		Metadata:     buildMetadata(rows, resolver),
		AAMutations:  make(map[string]*columnar.MutationStore),
		AAInsertions: make(map[string]*columnar.InsertionStore),
		Aliases:      resolver,
		Lineages:     pango.NewConverter(resolver),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for gene, ref := range refs {
		g.Go(func() error {
			mut, ins, err := loadSequence(gctx, src, gene, ref, n)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if gene == "" {
				snap.NucMutations, snap.NucInsertions = mut, ins
			} else {
				key := strings.ToUpper(gene)
				snap.AAMutations[key], snap.AAInsertions[key] = mut, ins
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("Snapshot loaded",
		zap.Int64("data_version", version),
		zap.Int("samples", n),
		zap.Int("genes", len(snap.AAMutations)),
		zap.Int("nuc_length", len(nucRef)),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// loadSequence builds the mutation and insertion store of one sequence,
// gene "" being the nucleotide genome.
func loadSequence(ctx context.Context, src Source, gene, reference string, n int) (*columnar.MutationStore, *columnar.InsertionStore, error) {
	codec, err := compress.NewCodec([]byte(reference))
	if err != nil {
		return nil, nil, err
	}

	var (
		cols   map[int][]byte
		shards []columnar.InsertionShard
	)
	alphabet, name := columnar.Nucleotide, "nuc"
	if gene == "" {
		cols, err = src.NucColumns(ctx)
		if err == nil {
			shards, err = src.NucInsertionShards(ctx)
		}
	} else {
		alphabet, name = columnar.AminoAcid, strings.ToUpper(gene)
		cols, err = src.AAColumns(ctx, gene)
		if err == nil {
			shards, err = src.AAInsertionShards(ctx, gene)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	mut := columnar.NewMutationStore(name, alphabet, strings.ToUpper(reference), n, codec, cols)
	ins := columnar.NewInsertionStore(name, codec, shards)
	return mut, ins, nil
}
