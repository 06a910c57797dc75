package memdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"github.com/stretchr/testify/require"
)

const sampleDataset = "../../testdata/sample_dataset.yaml"

// fixtureDB writes the sample dataset into a fresh database.
func fixtureDB(t *testing.T) *db.LapisDB {
	t.Helper()
	l, err := db.Open(filepath.Join(t.TempDir(), "lapis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ds, err := db.LoadFixture(sampleDataset)
	require.NoError(t, err)
	require.NoError(t, l.WriteDataset(context.Background(), ds, 4))
	return l
}

func fixtureSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Load(context.Background(), fixtureDB(t))
	require.NoError(t, err)
	return snap
}

// memSource is an in-memory Source.
type memSource struct {
	version  int64
	aliases  []pango.Alias
	refs     map[string]string
	rows     []db.MetadataRow
	nuc      map[int][]byte
	aa       map[string]map[int][]byte
	nucIns   []columnar.InsertionShard
	aaIns    map[string][]columnar.InsertionShard
	failWith error
}

func (m *memSource) CurrentDataVersion(context.Context) (int64, error) { return m.version, nil }
func (m *memSource) Aliases(context.Context) ([]pango.Alias, error)    { return m.aliases, nil }
func (m *memSource) References(context.Context) (map[string]string, error) {
	return m.refs, nil
}
func (m *memSource) Metadata(context.Context) ([]db.MetadataRow, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.rows, nil
}
func (m *memSource) NucColumns(context.Context) (map[int][]byte, error) { return m.nuc, nil }
func (m *memSource) AAColumns(_ context.Context, gene string) (map[int][]byte, error) {
	return m.aa[gene], nil
}
func (m *memSource) NucInsertionShards(context.Context) ([]columnar.InsertionShard, error) {
	return m.nucIns, nil
}
func (m *memSource) AAInsertionShards(_ context.Context, gene string) ([]columnar.InsertionShard, error) {
	return m.aaIns[gene], nil
}
