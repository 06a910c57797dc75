package columnar

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/compress"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InsertionShard covers samples StartID .. StartID+SampleCount-1. Its
// decompressed text has one line per sample, the insertions of a sample
// separated by commas, e.g. "22204:GAGCCAGAA,28262:AACA".
type InsertionShard struct {
	StartID     int    `db:"start_id"`
	SampleCount int    `db:"sample_count"`
	Data        []byte `db:"data_compressed"`
}

// InsertionStore holds the insertions of one sequence, sharded by sample ID.
type InsertionStore struct {
	name   string
	shards []InsertionShard
	codec  *compress.Codec
}

func NewInsertionStore(name string, codec *compress.Codec, shards []InsertionShard) *InsertionStore {
	sort.Slice(shards, func(i, j int) bool { return shards[i].StartID < shards[j].StartID })
	return &InsertionStore{name: name, shards: shards, codec: codec}
}

func (s *InsertionStore) Name() string { return s.name }

// InsertionCount is the number of subset samples carrying an insertion.
type InsertionCount struct {
	Insertion string
	Count     int
}

// decodeShard returns one slice of insertions per sample of the shard, or
// nil when the shard is unreadable.
func (s *InsertionStore) decodeShard(i int) [][]string {
	sh := s.shards[i]
	text, err := s.codec.DecompressString(sh.Data)
	var lines []string
	if err == nil {
		lines = strings.Split(text, "\n")
		if len(lines) != sh.SampleCount {
			err = fmt.Errorf("shard has %d lines, want %d", len(lines), sh.SampleCount)
		}
	}
	if err != nil {
		logger.Warn("Skipping corrupt insertion shard",
			zap.String("store", s.name),
			zap.Int("start_id", sh.StartID),
			zap.Error(err),
		)
		return nil
	}

	out := make([][]string, len(lines))
	for j, line := range lines {
		if line == "" {
			continue
		}
		out[j] = strings.Split(line, ",")
	}
	return out
}

// eachInShard calls fn for the subset members falling into shard i.
func eachInShard(subset *roaring.Bitmap, sh InsertionShard, fn func(local int)) {
	it := subset.Iterator()
	it.AdvanceIfNeeded(uint32(sh.StartID))
	end := uint32(sh.StartID + sh.SampleCount)
	for it.HasNext() && it.PeekNext() < end {
		fn(int(it.Next()) - sh.StartID)
	}
}

// CountInsertions counts distinct insertions over the samples of subset.
// A sample listing the same insertion twice counts once. Shards are
// decoded in parallel.
func (s *InsertionStore) CountInsertions(ctx context.Context, subset *roaring.Bitmap) ([]InsertionCount, error) {
	if subset.IsEmpty() {
		return nil, nil
	}

	var mu sync.Mutex
	totals := make(map[string]int)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, sh := range s.shards {
		if !subset.IntersectsWithInterval(uint64(sh.StartID), uint64(sh.StartID+sh.SampleCount)) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows := s.decodeShard(i)
			if rows == nil {
				return nil
			}
			partial := make(map[string]int)
			eachInShard(subset, sh, func(local int) {
				seen := make(map[string]struct{}, len(rows[local]))
				for _, ins := range rows[local] {
					if _, dup := seen[ins]; dup {
						continue
					}
					seen[ins] = struct{}{}
					partial[ins]++
				}
			})
			mu.Lock()
			for k, v := range partial {
				totals[k] += v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]InsertionCount, 0, len(totals))
	for k, v := range totals {
		out = append(out, InsertionCount{Insertion: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Insertion < out[j].Insertion })
	return out, nil
}

// Match returns the samples of candidates (all samples when nil) carrying
// the given insertion. Comparison ignores case.
func (s *InsertionStore) Match(insertion string, candidates *roaring.Bitmap) *roaring.Bitmap {
	insertion = strings.ToUpper(insertion)
	out := roaring.New()
	for i, sh := range s.shards {
		if candidates != nil && !candidates.IntersectsWithInterval(uint64(sh.StartID), uint64(sh.StartID+sh.SampleCount)) {
			continue
		}
		rows := s.decodeShard(i)
		if rows == nil {
			continue
		}
		check := func(local int) {
			for _, ins := range rows[local] {
				if ins == insertion {
					out.Add(uint32(sh.StartID + local))
					return
				}
			}
		}
		if candidates == nil {
			for local := range rows {
				check(local)
			}
			continue
		}
		eachInShard(candidates, sh, check)
	}
	return out
}
