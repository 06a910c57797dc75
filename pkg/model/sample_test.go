package model

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"github.com/nasasaki/LAPIS/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *SampleService {
	t.Helper()
	l, err := db.Open(filepath.Join(t.TempDir(), "lapis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	ds, err := db.LoadFixture("../../testdata/sample_dataset.yaml")
	require.NoError(t, err)
	require.NoError(t, l.WriteDataset(context.Background(), ds, 4))
	return NewSampleService(memdb.NewManager(l))
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestFilterIDs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	nuc5G, err := ParseNucMutations("5G")
	require.NoError(t, err)
	aa, err := ParseAAMutations("S:3L, ORF1a:4F")
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter SampleFilter
		want   []uint32
	}{
		{"everything", SampleFilter{}, []uint32{0, 1, 2, 3, 4, 5}},
		{"variant query", SampleFilter{VariantQuery: "5G"}, []uint32{0, 2, 4}},
		{"nuc list", SampleFilter{NucMutations: nuc5G}, []uint32{0, 2, 4}},
		{"nuc and aa lists", SampleFilter{NucMutations: nuc5G, AAMutations: aa}, []uint32{2}},
		{"country", SampleFilter{Country: "Switzerland"}, []uint32{0, 2, 3}},
		{"country and query", SampleFilter{Country: "Switzerland", VariantQuery: "5G"}, []uint32{0, 2}},
		{"date range", SampleFilter{DateFrom: "2021-01-01", DateTo: "2021-12-31"}, []uint32{0, 2}},
		{"date submitted from", SampleFilter{DateSubmittedFrom: "2022-01-01"}, []uint32{3, 5}},
		{"age from", SampleFilter{AgeFrom: intp(30)}, []uint32{0, 2, 5}},
		{"age range", SampleFilter{AgeFrom: intp(30), AgeTo: intp(60)}, []uint32{0, 2}},
		{"hospitalized", SampleFilter{Hospitalized: boolp(true)}, []uint32{2}},
		{"not vaccinated", SampleFilter{FullyVaccinated: boolp(false)}, []uint32{5}},
		{"lineage", SampleFilter{PangoLineage: "B.1.1.7"}, []uint32{0}},
		{"lineage with sublineages", SampleFilter{PangoLineage: "BA.2*"}, []uint32{3, 4}},
		{"lineage alias dot star", SampleFilter{PangoLineage: "Q.*"}, []uint32{0, 2}},
		{"lineage dot plus", SampleFilter{PangoLineage: "BA.2.+"}, []uint32{3, 4}},
		{"country exposure", SampleFilter{CountryExposure: "Italy"}, []uint32{0, 2}},
		{"division exposure", SampleFilter{DivisionExposure: "Lombardy"}, []uint32{2}},
		{"sra accession", SampleFilter{SraAccession: "SRR000001"}, []uint32{0}},
		{"clade and lab", SampleFilter{NextstrainClade: "21L", SubmittingLab: "Lab B"}, []uint32{4}},
		{"accession", SampleFilter{GisaidEpiIsl: "EPI_ISL_1002"}, []uint32{2}},
		{"no match", SampleFilter{Country: "Atlantis"}, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.FilterIDs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	nuc, err := ParseNucMutations("5G")
	require.NoError(t, err)
	_, err = svc.FilterIDs(ctx, SampleFilter{NucMutations: nuc, VariantQuery: "BA.2"})
	assert.ErrorIs(t, err, ErrConflictingFilter)

	_, err = svc.FilterIDs(ctx, SampleFilter{VariantQuery: "A & (B | "})
	assert.True(t, query.IsMalformed(err))

	aa, err := ParseAAMutations("E:3")
	require.NoError(t, err)
	_, err = svc.FilterIDs(ctx, SampleFilter{AAMutations: aa})
	assert.ErrorIs(t, err, memdb.ErrUnknownGene)
}

func TestParseMutationLists(t *testing.T) {
	nuc, err := ParseNucMutations("23403G, C241T,,28881")
	require.NoError(t, err)
	assert.Equal(t, []query.NucleotideMutationQuery{
		{Position: 23403, Base: 'G'}, {Position: 241, Base: 'T'}, {Position: 28881},
	}, nuc)

	_, err = ParseNucMutations("S:D614G")
	assert.ErrorIs(t, err, ErrBadParameter)
	_, err = ParseAAMutations("23403G")
	assert.ErrorIs(t, err, ErrBadParameter)
	_, err = ParseAAMutations("S:")
	assert.True(t, query.IsMalformed(err))
}

func TestAggregate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rows, err := svc.Aggregate(ctx, SampleFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 6, rows[0].Count)

	rows, err = svc.Aggregate(ctx, SampleFilter{}, []params.AggregationField{params.FieldCountry})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Switzerland", rows[0].Values[params.FieldCountry])
	assert.Equal(t, 3, rows[0].Count)
	assert.Equal(t, "Germany", rows[1].Values[params.FieldCountry])
	assert.Equal(t, 2, rows[1].Count)
	assert.Equal(t, "France", rows[2].Values[params.FieldCountry])

	rows, err = svc.Aggregate(ctx, SampleFilter{VariantQuery: "5G"},
		[]params.AggregationField{params.FieldCountry, params.FieldNextstrainClade})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[params.AggregationField]any{params.FieldCountry: "Switzerland", params.FieldNextstrainClade: "20I"}, rows[0].Values)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, 1, rows[1].Count)

	rows, err = svc.Aggregate(ctx, SampleFilter{}, []params.AggregationField{params.FieldHospitalized})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0].Values[params.FieldHospitalized])
	assert.Equal(t, 4, rows[0].Count)
	assert.Equal(t, false, rows[1].Values[params.FieldHospitalized])
	assert.Equal(t, true, rows[2].Values[params.FieldHospitalized])

	rows, err = svc.Aggregate(ctx, SampleFilter{Country: "Switzerland"}, []params.AggregationField{params.FieldCountryExposure})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Italy", rows[0].Values[params.FieldCountryExposure])
	assert.Equal(t, 2, rows[0].Count)
	assert.Nil(t, rows[1].Values[params.FieldCountryExposure])

	_, err = svc.Aggregate(ctx, SampleFilter{}, []params.AggregationField{"strain"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestDetailsAndListings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Details(ctx, SampleFilter{}, OrderAndLimit{OrderBy: "date"})
	assert.True(t, IsUnsupportedOrdering(err))

	details, err := svc.Details(ctx, SampleFilter{}, OrderAndLimit{OrderBy: "arbitrary", Limit: intp(2)})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "Switzerland/ZH-1/2021", details[0].Strain)
	require.NotNil(t, details[0].Age)
	assert.Equal(t, 34, *details[0].Age)
	assert.Nil(t, details[1].Age)
	assert.Equal(t, "A.1", details[1].PangoLineage)
	assert.Equal(t, "SRR000001", details[0].SraAccession)
	assert.Equal(t, "Italy", details[0].CountryExposure)
	assert.Empty(t, details[1].CountryExposure)

	details, err = svc.Details(ctx, SampleFilter{}, OrderAndLimit{OrderBy: "random", Limit: intp(3)})
	require.NoError(t, err)
	assert.Len(t, details, 3)

	strains, err := svc.Strains(ctx, SampleFilter{VariantQuery: "BA.2*"}, OrderAndLimit{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Switzerland/GE-4/2022", "Germany/BE-5/2022"}, strains)

	epis, err := svc.GisaidEpiIsls(ctx, SampleFilter{}, OrderAndLimit{})
	require.NoError(t, err)
	assert.Len(t, epis, 5)
}

func TestCountMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.CountMutations(ctx, SampleFilter{}, params.SequenceNuc, 0)
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, m := range got {
		names[i] = m.Mutation
		assert.InDelta(t, float64(m.Count)/6, m.Proportion, 1e-12)
		assert.LessOrEqual(t, m.Proportion, 1.0)
	}
	assert.Equal(t, []string{"A5G", "T10C", "A5T", "C20T"}, names)
	assert.Equal(t, 3, got[0].Count)

	got, err = svc.CountMutations(ctx, SampleFilter{}, params.SequenceNuc, 0.3)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.CountMutations(ctx, SampleFilter{}, params.SequenceAA, 0)
	require.NoError(t, err)
	names = names[:0]
	for _, m := range got {
		names = append(names, m.Mutation)
	}
	assert.Equal(t, []string{"ORF1A:L4F", "S:V3L", "S:L8F"}, names)

	got, err = svc.CountMutations(ctx, SampleFilter{Country: "Switzerland"}, params.SequenceNuc, 0)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "A5G", got[0].Mutation)
	assert.InDelta(t, 2.0/3, got[0].Proportion, 1e-12)

	got, err = svc.CountMutations(ctx, SampleFilter{Country: "Atlantis"}, params.SequenceNuc, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCountAndMatchInsertions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.CountInsertions(ctx, SampleFilter{}, params.SequenceNuc)
	require.NoError(t, err)
	assert.Equal(t, []InsertionEntry{{Insertion: "ins_10:AAT", Count: 2}, {Insertion: "ins_15:GG", Count: 2}}, got)

	got, err = svc.CountInsertions(ctx, SampleFilter{}, params.SequenceAA)
	require.NoError(t, err)
	assert.Equal(t, []InsertionEntry{{Insertion: "ins_S:2:EPE", Count: 2}}, got)

	ids, err := svc.MatchInsertion(ctx, SampleFilter{}, params.SequenceNuc, "ins_10:AAT")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2}, ids)

	ids, err = svc.MatchInsertion(ctx, SampleFilter{Country: "Germany"}, params.SequenceAA, "ins_s:2:epe")
	require.NoError(t, err)
	assert.Equal(t, []uint32{4}, ids)

	_, err = svc.MatchInsertion(ctx, SampleFilter{}, params.SequenceAA, "ins_E:2:A")
	assert.ErrorIs(t, err, memdb.ErrUnknownGene)
	_, err = svc.MatchInsertion(ctx, SampleFilter{}, params.SequenceAA, "ins_2")
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestDataVersion(t *testing.T) {
	svc := newTestService(t)
	v, err := svc.DataVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)
}

func TestSplitLineageQuery(t *testing.T) {
	tests := []struct {
		in      string
		lineage string
		withSub bool
	}{
		{"BA.2", "BA.2", false},
		{"BA.2*", "BA.2", true},
		{"BA.2.*", "BA.2", true},
		{"BA.2.+", "BA.2", true},
		{" B.1.1.7 ", "B.1.1.7", false},
	}
	for _, tt := range tests {
		lineage, withSub := splitLineageQuery(tt.in)
		assert.Equal(t, tt.lineage, lineage, tt.in)
		assert.Equal(t, tt.withSub, withSub, tt.in)
	}
}

func TestContributors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.Contributors(ctx, SampleFilter{SubmittingLab: "Lab A"}, OrderAndLimit{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Contributor{
		GenbankAccession: "MW000001",
		SraAccession:     "SRR000001",
		GisaidEpiIsl:     "EPI_ISL_1000",
		Strain:           "Switzerland/ZH-1/2021",
		SubmittingLab:    "Lab A",
		OriginatingLab:   "Hospital A",
		Authors:          "A. Muster, B. Beispiel",
	}, got[0])
	assert.Equal(t, "Switzerland/BE-3/2021", got[1].Strain)
	assert.Equal(t, "C. Curie", got[1].Authors)

	got, err = svc.Contributors(ctx, SampleFilter{}, OrderAndLimit{Limit: intp(1)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.Contributors(ctx, SampleFilter{}, OrderAndLimit{OrderBy: "authors"})
	assert.True(t, IsUnsupportedOrdering(err))
}

func TestAliases(t *testing.T) {
	svc := newTestService(t)
	got, err := svc.Aliases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pango.Alias{
		{Alias: "BA", FullName: "B.1.1.529"},
		{Alias: "Q", FullName: "B.1.1.7"},
	}, got)
}

func TestAtPinsSnapshot(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pinnedSvc := svc.At(&memdb.Snapshot{DataVersion: 7, SampleCount: 2, Metadata: &memdb.Metadata{}})
	v, err := pinnedSvc.DataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	ids, err := pinnedSvc.FilterIDs(ctx, SampleFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, ids)

	// the original service still follows the manager
	v, err = svc.DataVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)
}
