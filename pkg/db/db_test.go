package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDataset = "../../testdata/sample_dataset.yaml"

func openTestDB(t *testing.T) *LapisDB {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "lapis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestEmptyDatabaseHasNoVersion(t *testing.T) {
	l := openTestDB(t)
	_, err := l.CurrentDataVersion(context.Background())
	assert.ErrorIs(t, err, ErrNoDataVersion)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lapis.db")
	for i := 0; i < 2; i++ {
		l, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, l.Close())
	}
}

func TestWriteAndReadDataset(t *testing.T) {
	ctx := context.Background()
	l := openTestDB(t)

	ds, err := LoadFixture(sampleDataset)
	require.NoError(t, err)
	require.NoError(t, l.WriteDataset(ctx, ds, 4))

	v, err := l.CurrentDataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)

	aliases, err := l.Aliases(ctx)
	require.NoError(t, err)
	assert.Len(t, aliases, 2)

	refs, err := l.References(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ATTAAAGGTTTATACCTTCC", refs[""])
	assert.Equal(t, "MFVFLVLLPLV", refs["S"])

	rows, err := l.Metadata(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, 0, rows[0].ID)
	assert.Equal(t, "B.1.1.7", rows[0].PangoLineage)
	require.NotNil(t, rows[0].Age)
	assert.Equal(t, 34, *rows[0].Age)
	assert.Nil(t, rows[1].Age)
	require.NotNil(t, rows[2].Hospitalized)
	assert.True(t, *rows[2].Hospitalized)
	assert.Nil(t, rows[3].Hospitalized)
	assert.Equal(t, "SRR000001", rows[0].SraAccession)
	assert.Equal(t, "A. Muster, B. Beispiel", rows[0].Authors)
	assert.Equal(t, "Lombardy", rows[2].DivisionExposure)
	assert.Empty(t, rows[1].CountryExposure)

	cols, err := l.NucColumns(ctx)
	require.NoError(t, err)
	assert.Len(t, cols, 20)

	codec, err := compress.NewCodec([]byte(refs[""]))
	require.NoError(t, err)
	defer codec.Close()
	col5, err := codec.Decompress(cols[5])
	require.NoError(t, err)
	assert.Equal(t, "GAGNGT", string(col5))

	sCols, err := l.AAColumns(ctx, "S")
	require.NoError(t, err)
	assert.Len(t, sCols, 11)

	shards, err := l.NucInsertionShards(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, 0, shards[0].StartID)
	assert.Equal(t, 4, shards[0].SampleCount)
	assert.Equal(t, 4, shards[1].StartID)
	assert.Equal(t, 2, shards[1].SampleCount)

	store := columnar.NewInsertionStore("nuc", codec, shards)
	assert.Equal(t, []uint32{0, 2}, store.Match("10:AAT", nil).ToArray())

	aaShards, err := l.AAInsertionShards(ctx, "S")
	require.NoError(t, err)
	assert.Len(t, aaShards, 2)
}

func TestWriteDatasetReplaces(t *testing.T) {
	ctx := context.Background()
	l := openTestDB(t)

	ds, err := LoadFixture(sampleDataset)
	require.NoError(t, err)
	require.NoError(t, l.WriteDataset(ctx, ds, 0))

	ds.Samples = ds.Samples[:2]
	ds.Version = 1700000100
	require.NoError(t, l.WriteDataset(ctx, ds, 0))

	rows, err := l.Metadata(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	v, err := l.CurrentDataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000100), v)
}

func TestSetDataVersion(t *testing.T) {
	ctx := context.Background()
	l := openTestDB(t)
	require.NoError(t, l.SetDataVersion(ctx, 5))
	require.NoError(t, l.SetDataVersion(ctx, 7))
	v, err := l.CurrentDataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestParseFixtureRequiresReference(t *testing.T) {
	_, err := ParseFixture([]byte("version: 1\nsamples: []\n"))
	assert.Error(t, err)
}
