package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/pango"
)

// MetadataRow is one row of sample_metadata. Nullable columns are pointers.
type MetadataRow struct {
	ID               int    `db:"id" yaml:"-"`
	Strain           string `db:"strain" yaml:"strain"`
	GenbankAccession string `db:"genbank_accession" yaml:"genbank_accession"`
	GisaidEpiIsl     string `db:"gisaid_epi_isl" yaml:"gisaid_epi_isl"`
	SraAccession     string `db:"sra_accession" yaml:"sra_accession"`
	Date             string `db:"date" yaml:"date"`
	DateSubmitted    string `db:"date_submitted" yaml:"date_submitted"`
	Region           string `db:"region" yaml:"region"`
	Country          string `db:"country" yaml:"country"`
	Division         string `db:"division" yaml:"division"`
	Location         string `db:"location" yaml:"location"`
	RegionExposure   string `db:"region_exposure" yaml:"region_exposure"`
	CountryExposure  string `db:"country_exposure" yaml:"country_exposure"`
	DivisionExposure string `db:"division_exposure" yaml:"division_exposure"`
	Host             string `db:"host" yaml:"host"`
	Age              *int   `db:"age" yaml:"age"`
	Sex              string `db:"sex" yaml:"sex"`
	Hospitalized     *bool  `db:"hospitalized" yaml:"hospitalized"`
	Died             *bool  `db:"died" yaml:"died"`
	FullyVaccinated  *bool  `db:"fully_vaccinated" yaml:"fully_vaccinated"`
	SamplingStrategy string `db:"sampling_strategy" yaml:"sampling_strategy"`
	PangoLineage     string `db:"pango_lineage" yaml:"pango_lineage"`
	NextstrainClade  string `db:"nextstrain_clade" yaml:"nextstrain_clade"`
	GisaidClade      string `db:"gisaid_clade" yaml:"gisaid_clade"`
	SubmittingLab    string `db:"submitting_lab" yaml:"submitting_lab"`
	OriginatingLab   string `db:"originating_lab" yaml:"originating_lab"`
	Authors          string `db:"authors" yaml:"authors"`
}

// CurrentDataVersion reads the version of the merged dataset.
func (l *LapisDB) CurrentDataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := l.db.GetContext(ctx, &v, `SELECT timestamp FROM data_version WHERE dataset = ?`, MergedDataset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoDataVersion
	}
	if err != nil {
		return 0, fmt.Errorf("read data version: %w", err)
	}
	return v, nil
}

func (l *LapisDB) Aliases(ctx context.Context) ([]pango.Alias, error) {
	var out []pango.Alias
	if err := l.db.SelectContext(ctx, &out, `SELECT alias, full_name FROM pango_lineage_alias`); err != nil {
		return nil, fmt.Errorf("read pango aliases: %w", err)
	}
	return out, nil
}

// References returns the reference sequence per gene; the nucleotide genome
// is under "".
func (l *LapisDB) References(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Gene string `db:"gene"`
		Seq  string `db:"seq"`
	}
	if err := l.db.SelectContext(ctx, &rows, `SELECT gene, seq FROM reference_sequence`); err != nil {
		return nil, fmt.Errorf("read reference sequences: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Gene] = r.Seq
	}
	return out, nil
}

// Metadata returns all samples ordered by ID. IDs must be dense from 0.
func (l *LapisDB) Metadata(ctx context.Context) ([]MetadataRow, error) {
	var out []MetadataRow
	if err := l.db.SelectContext(ctx, &out, `SELECT * FROM sample_metadata ORDER BY id`); err != nil {
		return nil, fmt.Errorf("read sample metadata: %w", err)
	}
	for i, r := range out {
		if r.ID != i {
			return nil, fmt.Errorf("read sample metadata: sample ids are not dense (found %d at row %d)", r.ID, i)
		}
	}
	return out, nil
}

type columnRow struct {
	Gene     string `db:"gene"`
	Position int    `db:"position"`
	Data     []byte `db:"data_compressed"`
}

func (l *LapisDB) NucColumns(ctx context.Context) (map[int][]byte, error) {
	var rows []columnRow
	if err := l.db.SelectContext(ctx, &rows, `SELECT position, data_compressed FROM nuc_sequence_columnar`); err != nil {
		return nil, fmt.Errorf("read nucleotide columns: %w", err)
	}
	out := make(map[int][]byte, len(rows))
	for _, r := range rows {
		out[r.Position] = r.Data
	}
	return out, nil
}

// AAColumns returns the columns of one gene.
func (l *LapisDB) AAColumns(ctx context.Context, gene string) (map[int][]byte, error) {
	var rows []columnRow
	err := l.db.SelectContext(ctx, &rows,
		`SELECT gene, position, data_compressed FROM aa_sequence_columnar WHERE gene = ?`, gene)
	if err != nil {
		return nil, fmt.Errorf("read amino acid columns of %s: %w", gene, err)
	}
	out := make(map[int][]byte, len(rows))
	for _, r := range rows {
		out[r.Position] = r.Data
	}
	return out, nil
}

func (l *LapisDB) NucInsertionShards(ctx context.Context) ([]columnar.InsertionShard, error) {
	var out []columnar.InsertionShard
	err := l.db.SelectContext(ctx, &out,
		`SELECT start_id, sample_count, data_compressed FROM nuc_insertion_columnar ORDER BY start_id`)
	if err != nil {
		return nil, fmt.Errorf("read nucleotide insertions: %w", err)
	}
	return out, nil
}

func (l *LapisDB) AAInsertionShards(ctx context.Context, gene string) ([]columnar.InsertionShard, error) {
	var out []columnar.InsertionShard
	err := l.db.SelectContext(ctx, &out,
		`SELECT start_id, sample_count, data_compressed FROM aa_insertion_columnar WHERE gene = ? ORDER BY start_id`, gene)
	if err != nil {
		return nil, fmt.Errorf("read amino acid insertions of %s: %w", gene, err)
	}
	return out, nil
}
