package model

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/pkg/columnar"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/pango"
	"github.com/nasasaki/LAPIS/pkg/query"
)

// SampleFilter selects samples. Empty fields don't filter. Dates are
// inclusive YYYY-MM-DD bounds.
type SampleFilter struct {
	DateFrom          string `json:"dateFrom,omitempty"`
	DateTo            string `json:"dateTo,omitempty"`
	DateSubmittedFrom string `json:"dateSubmittedFrom,omitempty"`
	DateSubmittedTo   string `json:"dateSubmittedTo,omitempty"`
	Region            string `json:"region,omitempty"`
	Country           string `json:"country,omitempty"`
	Division          string `json:"division,omitempty"`
	Location          string `json:"location,omitempty"`
	RegionExposure    string `json:"regionExposure,omitempty"`
	CountryExposure   string `json:"countryExposure,omitempty"`
	DivisionExposure  string `json:"divisionExposure,omitempty"`
	Host              string `json:"host,omitempty"`
	AgeFrom           *int   `json:"ageFrom,omitempty"`
	AgeTo             *int   `json:"ageTo,omitempty"`
	Sex               string `json:"sex,omitempty"`
	Hospitalized      *bool  `json:"hospitalized,omitempty"`
	Died              *bool  `json:"died,omitempty"`
	FullyVaccinated   *bool  `json:"fullyVaccinated,omitempty"`
	SamplingStrategy  string `json:"samplingStrategy,omitempty"`
	PangoLineage      string `json:"pangoLineage,omitempty"`
	NextstrainClade   string `json:"nextstrainClade,omitempty"`
	GisaidClade       string `json:"gisaidClade,omitempty"`
	SubmittingLab     string `json:"submittingLab,omitempty"`
	OriginatingLab    string `json:"originatingLab,omitempty"`
	GenbankAccession  string `json:"genbankAccession,omitempty"`
	GisaidEpiIsl      string `json:"gisaidEpiIsl,omitempty"`
	SraAccession      string `json:"sraAccession,omitempty"`
	Strain            string `json:"strain,omitempty"`

	NucMutations []query.NucleotideMutationQuery `json:"nucMutations,omitempty"`
	AAMutations  []query.AminoAcidMutationQuery  `json:"aaMutations,omitempty"`
	VariantQuery string                          `json:"variantQuery,omitempty"`
}

func (f *SampleFilter) hasMutations() bool {
	return len(f.NucMutations) > 0 || len(f.AAMutations) > 0
}

// Validate rejects filters that can't be evaluated, before any work is done.
func (f *SampleFilter) Validate() error {
	if f.hasMutations() && strings.TrimSpace(f.VariantQuery) != "" {
		return ErrConflictingFilter
	}
	return nil
}

// ParseNucMutations parses a comma separated list such as "23403G,C241T,28881".
func ParseNucMutations(s string) ([]query.NucleotideMutationQuery, error) {
	var out []query.NucleotideMutationQuery
	for _, item := range splitList(s) {
		e, err := query.Parse(item)
		if err != nil {
			return nil, err
		}
		m, ok := e.(query.NucleotideMutationQuery)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a nucleotide mutation", ErrBadParameter, item)
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseAAMutations parses a comma separated list such as "S:D614G,ORF1a:3675-".
func ParseAAMutations(s string) ([]query.AminoAcidMutationQuery, error) {
	var out []query.AminoAcidMutationQuery
	for _, item := range splitList(s) {
		e, err := query.Parse(item)
		if err != nil {
			return nil, err
		}
		m, ok := e.(query.AminoAcidMutationQuery)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an amino acid mutation", ErrBadParameter, item)
		}
		out = append(out, m)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// preFilter applies the mutation lists or the variant query. nil means
// "no sequence filter given".
func preFilter(snap *memdb.Snapshot, f *SampleFilter, cache *columnar.ColumnCache) (*roaring.Bitmap, error) {
	if f.hasMutations() {
		preds := make([]columnar.Predicate, 0, len(f.NucMutations)+len(f.AAMutations))
		for _, m := range f.NucMutations {
			preds = append(preds, columnar.Predicate{
				Store:    snap.NucMutations,
				Mutation: columnar.Mutation{Position: m.Position, To: m.Base},
			})
		}
		for _, m := range f.AAMutations {
			store, err := snap.Gene(m.Gene)
			if err != nil {
				return nil, err
			}
			preds = append(preds, columnar.Predicate{
				Store:    store,
				Mutation: columnar.Mutation{Position: m.Position, To: m.Residue},
			})
		}
		return columnar.Narrow(nil, preds, cache), nil
	}

	if strings.TrimSpace(f.VariantQuery) != "" {
		expr, err := query.Parse(f.VariantQuery)
		if err != nil {
			return nil, err
		}
		return snap.Evaluate(expr, cache)
	}
	return nil, nil
}

// filterIDs is the full filter: sequence predicates first, then metadata.
func filterIDs(snap *memdb.Snapshot, f *SampleFilter) (*roaring.Bitmap, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ids, err := preFilter(snap, f, columnar.NewColumnCache())
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = snap.Universe()
	}

	md := snap.Metadata
	and := func(b *roaring.Bitmap) {
		if !ids.IsEmpty() {
			ids.And(b)
		}
	}
	equal := func(column, v string) {
		if v != "" {
			and(md.Strings[column].Equal(v))
		}
	}
	dateRange := func(column, from, to string) {
		if from == "" && to == "" {
			return
		}
		and(md.Strings[column].Where(func(v string) bool {
			return v != "" && (from == "" || v >= from) && (to == "" || v <= to)
		}))
	}
	boolean := func(column string, v *bool) {
		if v != nil {
			and(md.Bools[column].Is(*v))
		}
	}

	dateRange(memdb.ColDate, f.DateFrom, f.DateTo)
	dateRange(memdb.ColDateSubmitted, f.DateSubmittedFrom, f.DateSubmittedTo)
	equal(memdb.ColRegion, f.Region)
	equal(memdb.ColCountry, f.Country)
	equal(memdb.ColDivision, f.Division)
	equal(memdb.ColLocation, f.Location)
	equal(memdb.ColRegionExposure, f.RegionExposure)
	equal(memdb.ColCountryExposure, f.CountryExposure)
	equal(memdb.ColDivisionExposure, f.DivisionExposure)
	equal(memdb.ColHost, f.Host)
	if f.AgeFrom != nil || f.AgeTo != nil {
		and(md.Ints[memdb.ColAge].Between(f.AgeFrom, f.AgeTo))
	}
	equal(memdb.ColSex, f.Sex)
	boolean(memdb.ColHospitalized, f.Hospitalized)
	boolean(memdb.ColDied, f.Died)
	boolean(memdb.ColFullyVaccinated, f.FullyVaccinated)
	equal(memdb.ColSamplingStrategy, f.SamplingStrategy)
	if f.PangoLineage != "" {
		lineage, withSub := splitLineageQuery(f.PangoLineage)
		patterns := snap.Lineages.Compile(lineage, withSub)
		and(md.Strings[memdb.ColPangoLineageFull].Where(func(v string) bool {
			return v != "" && pango.MatchAny(patterns, v)
		}))
	}
	equal(memdb.ColNextstrainClade, f.NextstrainClade)
	equal(memdb.ColGisaidClade, f.GisaidClade)
	equal(memdb.ColSubmittingLab, f.SubmittingLab)
	equal(memdb.ColOriginatingLab, f.OriginatingLab)
	equal(memdb.ColGenbankAccession, f.GenbankAccession)
	equal(memdb.ColGisaidEpiIsl, f.GisaidEpiIsl)
	equal(memdb.ColSraAccession, f.SraAccession)
	equal(memdb.ColStrain, f.Strain)

	return ids, nil
}

// splitLineageQuery strips the sublineage marker: "BA.2*", "BA.2.*" or "BA.2.+",
// the same markers variant queries accept.
func splitLineageQuery(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, marker := range []string{".*", ".+"} {
		if rest, ok := strings.CutSuffix(s, marker); ok {
			return rest, true
		}
	}
	if rest, ok := strings.CutSuffix(s, "*"); ok {
		return rest, true
	}
	return s, false
}
