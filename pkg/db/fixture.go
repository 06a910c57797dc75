package db

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/compress"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"gopkg.in/yaml.v3"
)

const upsertVersionSQL = `INSERT INTO data_version (dataset, timestamp) VALUES (?, ?)
	ON CONFLICT(dataset) DO UPDATE SET timestamp = excluded.timestamp`

// DefaultShardSize is the number of samples per insertion shard.
const DefaultShardSize = 1000

// Dataset is a complete, small dataset described in YAML. It feeds tests and
// the seed command; real data arrives through the ingestion pipeline.
type Dataset struct {
	Version   int64             `yaml:"version"`
	Reference string            `yaml:"reference"`
	Genes     map[string]string `yaml:"genes"`
	Aliases   []pango.Alias     `yaml:"aliases"`
	Samples   []SampleFixture   `yaml:"samples"`
}

type SampleFixture struct {
	MetadataRow  `yaml:",inline"`
	Sequence     string              `yaml:"sequence"`
	AASequences  map[string]string   `yaml:"aa_sequences"`
	Insertions   []string            `yaml:"insertions"`
	AAInsertions map[string][]string `yaml:"aa_insertions"`
}

func LoadFixture(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

func ParseFixture(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if ds.Reference == "" {
		return nil, fmt.Errorf("parse fixture: reference sequence is required")
	}
	return &ds, nil
}

// WriteDataset replaces the whole content of the database with ds in one
// transaction and bumps the data version. A zero ds.Version uses the
// current unix time.
func (l *LapisDB) WriteDataset(ctx context.Context, ds *Dataset, shardSize int) error {
	version := ds.Version
	if version == 0 {
		version = time.Now().Unix()
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"pango_lineage_alias", "reference_sequence", "sample_metadata",
		"nuc_sequence_columnar", "aa_sequence_columnar",
		"nuc_insertion_columnar", "aa_insertion_columnar",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, a := range ds.Aliases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pango_lineage_alias (alias, full_name) VALUES (?, ?)`, a.Alias, a.FullName); err != nil {
			return fmt.Errorf("insert alias %s: %w", a.Alias, err)
		}
	}

	if err := writeMetadata(ctx, tx, ds.Samples); err != nil {
		return err
	}

	// nucleotide genome
	seqs := make([]string, len(ds.Samples))
	ins := make([][]string, len(ds.Samples))
	for i, s := range ds.Samples {
		seqs[i] = s.Sequence
		ins[i] = s.Insertions
	}
	if err := writeSequence(ctx, tx, "", ds.Reference, columnar.Nucleotide, seqs, ins, shardSize); err != nil {
		return err
	}

	genes := make([]string, 0, len(ds.Genes))
	for g := range ds.Genes {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	for _, gene := range genes {
		for i, s := range ds.Samples {
			seqs[i] = s.AASequences[gene]
			ins[i] = s.AAInsertions[gene]
		}
		if err := writeSequence(ctx, tx, gene, ds.Genes[gene], columnar.AminoAcid, seqs, ins, shardSize); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, upsertVersionSQL, MergedDataset, version); err != nil {
		return fmt.Errorf("write data version: %w", err)
	}

	return tx.Commit()
}

func writeMetadata(ctx context.Context, tx *sqlx.Tx, samples []SampleFixture) error {
	stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO sample_metadata (
		id, strain, genbank_accession, gisaid_epi_isl, sra_accession, date, date_submitted, region, country,
		division, location, region_exposure, country_exposure, division_exposure, host, age, sex, hospitalized,
		died, fully_vaccinated, sampling_strategy, pango_lineage, nextstrain_clade, gisaid_clade,
		submitting_lab, originating_lab, authors
	) VALUES (
		:id, :strain, :genbank_accession, :gisaid_epi_isl, :sra_accession, :date, :date_submitted, :region, :country,
		:division, :location, :region_exposure, :country_exposure, :division_exposure, :host, :age, :sex, :hospitalized,
		:died, :fully_vaccinated, :sampling_strategy, :pango_lineage, :nextstrain_clade, :gisaid_clade,
		:submitting_lab, :originating_lab, :authors
	)`)
	if err != nil {
		return fmt.Errorf("prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range samples {
		row := s.MetadataRow
		row.ID = i
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}
	return nil
}

// writeSequence columnarizes one sequence (gene "" is the genome) with a
// codec primed on its reference.
func writeSequence(ctx context.Context, tx *sqlx.Tx, gene, reference string, alphabet columnar.Alphabet,
	seqs []string, insertions [][]string, shardSize int) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reference_sequence (gene, seq) VALUES (?, ?)`, gene, reference); err != nil {
		return fmt.Errorf("insert reference %q: %w", gene, err)
	}

	codec, err := compress.NewCodec([]byte(reference))
	if err != nil {
		return err
	}
	defer codec.Close()

	cols := columnar.Transpose(codec, alphabet, seqs, len(reference))
	for pos := 1; pos <= len(reference); pos++ {
		if gene == "" {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO nuc_sequence_columnar (position, data_compressed) VALUES (?, ?)`, pos, cols[pos])
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO aa_sequence_columnar (gene, position, data_compressed) VALUES (?, ?, ?)`, gene, pos, cols[pos])
		}
		if err != nil {
			return fmt.Errorf("insert column %q:%d: %w", gene, pos, err)
		}
	}

	if shardSize <= 0 {
		shardSize = DefaultShardSize
	}
	for _, sh := range columnar.BuildInsertionShards(codec, insertions, shardSize) {
		if gene == "" {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO nuc_insertion_columnar (start_id, sample_count, data_compressed) VALUES (?, ?, ?)`,
				sh.StartID, sh.SampleCount, sh.Data)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO aa_insertion_columnar (gene, start_id, sample_count, data_compressed) VALUES (?, ?, ?, ?)`,
				gene, sh.StartID, sh.SampleCount, sh.Data)
		}
		if err != nil {
			return fmt.Errorf("insert insertion shard %q@%d: %w", gene, sh.StartID, err)
		}
	}
	return nil
}

// SetDataVersion bumps the merged version without touching the data.
func (l *LapisDB) SetDataVersion(ctx context.Context, version int64) error {
	_, err := l.db.ExecContext(ctx, upsertVersionSQL, MergedDataset, version)
	if err != nil {
		return fmt.Errorf("write data version: %w", err)
	}
	return nil
}
