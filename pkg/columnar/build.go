package columnar

import (
	"strings"

	"github.com/nasasaki/LAPIS/pkg/compress"
)

// Transpose turns per-sample aligned sequences into per-position columns,
// compressed. Sequences shorter than length are padded with the unknown
// symbol. Keys are 1-based positions.
func Transpose(codec *compress.Codec, alphabet Alphabet, sequences []string, length int) map[int][]byte {
	columns := make(map[int][]byte, length)
	col := make([]byte, len(sequences))
	for pos := 1; pos <= length; pos++ {
		for id, seq := range sequences {
			if pos <= len(seq) {
				col[id] = upperByte(seq[pos-1])
			} else {
				col[id] = alphabet.Unknown
			}
		}
		columns[pos] = codec.Compress(col)
	}
	return columns
}

// BuildInsertionShards packs per-sample insertion lists into shards of at
// most shardSize samples.
func BuildInsertionShards(codec *compress.Codec, insertions [][]string, shardSize int) []InsertionShard {
	if shardSize <= 0 {
		shardSize = len(insertions)
	}
	var shards []InsertionShard
	for start := 0; start < len(insertions); start += shardSize {
		end := min(start+shardSize, len(insertions))
		lines := make([]string, 0, end-start)
		for _, ins := range insertions[start:end] {
			lines = append(lines, strings.ToUpper(strings.Join(ins, ",")))
		}
		shards = append(shards, InsertionShard{
			StartID:     start,
			SampleCount: end - start,
			Data:        codec.CompressString(strings.Join(lines, "\n")),
		})
	}
	return shards
}

func upperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
