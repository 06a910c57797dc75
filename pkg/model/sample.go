package model

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/pango"
)

// SnapshotProvider hands out the current snapshot. *memdb.Manager is one.
type SnapshotProvider interface {
	Get(ctx context.Context) (*memdb.Snapshot, error)
}

// SampleService answers sample queries against whatever snapshot is
// current when the call starts. A call never mixes two snapshots.
type SampleService struct {
	snapshots SnapshotProvider
}

func NewSampleService(p SnapshotProvider) *SampleService {
	return &SampleService{snapshots: p}
}

type pinned struct{ snap *memdb.Snapshot }

func (p pinned) Get(context.Context) (*memdb.Snapshot, error) { return p.snap, nil }

// At returns a service that answers every call from snap, so that several
// calls, and the data version reported with them, agree.
func (s *SampleService) At(snap *memdb.Snapshot) *SampleService {
	return &SampleService{snapshots: pinned{snap}}
}

// OrderAndLimit applies to listings. OrderBy is "", "arbitrary" or "random".
// A nil Limit means no limit.
type OrderAndLimit struct {
	OrderBy string `json:"orderBy,omitempty"`
	Limit   *int   `json:"limit,omitempty"`
}

func (o OrderAndLimit) validate() error {
	switch o.OrderBy {
	case "", params.OrderArbitrary, params.OrderRandom:
		return nil
	default:
		return &UnsupportedOrderingError{OrderBy: o.OrderBy}
	}
}

func (o OrderAndLimit) apply(ids []uint32) []uint32 {
	if o.OrderBy == params.OrderRandom {
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	}
	if o.Limit != nil && *o.Limit >= 0 && *o.Limit < len(ids) {
		ids = ids[:*o.Limit]
	}
	return ids
}

// DataVersion of the snapshot requests are served from.
func (s *SampleService) DataVersion(ctx context.Context) (int64, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return 0, err
	}
	return snap.DataVersion, nil
}

// FilterIDs returns the matching sample IDs in ascending order.
func (s *SampleService) FilterIDs(ctx context.Context, f SampleFilter) ([]uint32, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, err
	}
	return ids.ToArray(), nil
}

// AggregatedRow is one group. Values holds the grouped fields; unknown
// values are nil.
type AggregatedRow struct {
	Values map[params.AggregationField]any
	Count  int
}

// Aggregate groups the matching samples by fields and counts them. Without
// fields it returns a single row with the total. Rows are ordered by
// descending count.
func (s *SampleService) Aggregate(ctx context.Context, f SampleFilter, fields []params.AggregationField) ([]AggregatedRow, error) {
	for _, fld := range fields {
		if !fld.Valid() {
			return nil, &fieldError{field: string(fld)}
		}
	}
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, err
	}
	return aggregate(snap, ids, fields), nil
}

type fieldError struct{ field string }

func (e *fieldError) Error() string { return ErrUnknownField.Error() + ": " + e.field }
func (e *fieldError) Unwrap() error { return ErrUnknownField }

func aggregate(snap *memdb.Snapshot, ids *roaring.Bitmap, fields []params.AggregationField) []AggregatedRow {
	if len(fields) == 0 {
		return []AggregatedRow{{Values: map[params.AggregationField]any{}, Count: int(ids.GetCardinality())}}
	}

	type group struct {
		key   string
		first uint32
		count int
	}
	groups := make(map[string]*group)
	var order []*group

	var kb strings.Builder
	it := ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		kb.Reset()
		for _, fld := range fields {
			kb.WriteString(groupKey(snap.Metadata, fld, id))
			kb.WriteByte(0)
		}
		k := kb.String()
		g, ok := groups[k]
		if !ok {
			g = &group{key: k, first: id}
			groups[k] = g
			order = append(order, g)
		}
		g.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].key < order[j].key
	})

	out := make([]AggregatedRow, len(order))
	for i, g := range order {
		values := make(map[params.AggregationField]any, len(fields))
		for _, fld := range fields {
			values[fld] = fieldValue(snap.Metadata, fld, g.first)
		}
		out[i] = AggregatedRow{Values: values, Count: g.count}
	}
	return out
}

func groupKey(md *memdb.Metadata, fld params.AggregationField, id uint32) string {
	switch fld {
	case params.FieldAge:
		if v, ok := md.Ints[memdb.ColAge].Value(id); ok {
			return strconv.Itoa(v)
		}
		return "\x01"
	case params.FieldHospitalized, params.FieldDied, params.FieldFullyVaccinated:
		return strconv.Itoa(int(md.Bools[string(fld)][id]))
	default:
		return md.Strings[string(fld)].Value(id)
	}
}

func fieldValue(md *memdb.Metadata, fld params.AggregationField, id uint32) any {
	switch fld {
	case params.FieldAge:
		if v, ok := md.Ints[memdb.ColAge].Value(id); ok {
			return v
		}
		return nil
	case params.FieldHospitalized, params.FieldDied, params.FieldFullyVaccinated:
		if b := md.Bools[string(fld)].Value(id); b != nil {
			return *b
		}
		return nil
	default:
		if v := md.Strings[string(fld)].Value(id); v != "" {
			return v
		}
		return nil
	}
}

type SampleDetail struct {
	ID               uint32 `json:"-"`
	GenbankAccession string `json:"genbankAccession,omitempty"`
	GisaidEpiIsl     string `json:"gisaidEpiIsl,omitempty"`
	SraAccession     string `json:"sraAccession,omitempty"`
	Strain           string `json:"strain,omitempty"`
	Date             string `json:"date,omitempty"`
	DateSubmitted    string `json:"dateSubmitted,omitempty"`
	Region           string `json:"region,omitempty"`
	Country          string `json:"country,omitempty"`
	Division         string `json:"division,omitempty"`
	Location         string `json:"location,omitempty"`
	RegionExposure   string `json:"regionExposure,omitempty"`
	CountryExposure  string `json:"countryExposure,omitempty"`
	DivisionExposure string `json:"divisionExposure,omitempty"`
	Host             string `json:"host,omitempty"`
	Age              *int   `json:"age"`
	Sex              string `json:"sex,omitempty"`
	Hospitalized     *bool  `json:"hospitalized"`
	Died             *bool  `json:"died"`
	FullyVaccinated  *bool  `json:"fullyVaccinated"`
	SamplingStrategy string `json:"samplingStrategy,omitempty"`
	PangoLineage     string `json:"pangoLineage,omitempty"`
	NextstrainClade  string `json:"nextstrainClade,omitempty"`
	GisaidClade      string `json:"gisaidClade,omitempty"`
	SubmittingLab    string `json:"submittingLab,omitempty"`
	OriginatingLab   string `json:"originatingLab,omitempty"`
}

// listing filters, checks the ordering and applies order and limit.
func (s *SampleService) listing(ctx context.Context, f SampleFilter, ol OrderAndLimit) (*memdb.Snapshot, []uint32, error) {
	if err := ol.validate(); err != nil {
		return nil, nil, err
	}
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	ids, err := filterIDs(snap, &f)
	if err != nil {
		return nil, nil, err
	}
	return snap, ol.apply(ids.ToArray()), nil
}

func (s *SampleService) Details(ctx context.Context, f SampleFilter, ol OrderAndLimit) ([]SampleDetail, error) {
	snap, ids, err := s.listing(ctx, f, ol)
	if err != nil {
		return nil, err
	}
	md := snap.Metadata
	str := func(col string, id uint32) string { return md.Strings[col].Value(id) }

	out := make([]SampleDetail, len(ids))
	for i, id := range ids {
		d := SampleDetail{
			ID:               id,
			GenbankAccession: str(memdb.ColGenbankAccession, id),
			GisaidEpiIsl:     str(memdb.ColGisaidEpiIsl, id),
			SraAccession:     str(memdb.ColSraAccession, id),
			Strain:           str(memdb.ColStrain, id),
			Date:             str(memdb.ColDate, id),
			DateSubmitted:    str(memdb.ColDateSubmitted, id),
			Region:           str(memdb.ColRegion, id),
			Country:          str(memdb.ColCountry, id),
			Division:         str(memdb.ColDivision, id),
			Location:         str(memdb.ColLocation, id),
			RegionExposure:   str(memdb.ColRegionExposure, id),
			CountryExposure:  str(memdb.ColCountryExposure, id),
			DivisionExposure: str(memdb.ColDivisionExposure, id),
			Host:             str(memdb.ColHost, id),
			Sex:              str(memdb.ColSex, id),
			Hospitalized:     md.Bools[memdb.ColHospitalized].Value(id),
			Died:             md.Bools[memdb.ColDied].Value(id),
			FullyVaccinated:  md.Bools[memdb.ColFullyVaccinated].Value(id),
			SamplingStrategy: str(memdb.ColSamplingStrategy, id),
			PangoLineage:     str(memdb.ColPangoLineage, id),
			NextstrainClade:  str(memdb.ColNextstrainClade, id),
			GisaidClade:      str(memdb.ColGisaidClade, id),
			SubmittingLab:    str(memdb.ColSubmittingLab, id),
			OriginatingLab:   str(memdb.ColOriginatingLab, id),
		}
		if age, ok := md.Ints[memdb.ColAge].Value(id); ok {
			d.Age = &age
		}
		out[i] = d
	}
	return out, nil
}

// Contributor credits the labs and authors behind one sample.
type Contributor struct {
	GenbankAccession string `json:"genbankAccession,omitempty"`
	SraAccession     string `json:"sraAccession,omitempty"`
	GisaidEpiIsl     string `json:"gisaidEpiIsl,omitempty"`
	Strain           string `json:"strain,omitempty"`
	SubmittingLab    string `json:"submittingLab,omitempty"`
	OriginatingLab   string `json:"originatingLab,omitempty"`
	Authors          string `json:"authors,omitempty"`
}

func (s *SampleService) Contributors(ctx context.Context, f SampleFilter, ol OrderAndLimit) ([]Contributor, error) {
	snap, ids, err := s.listing(ctx, f, ol)
	if err != nil {
		return nil, err
	}
	md := snap.Metadata
	str := func(col string, id uint32) string { return md.Strings[col].Value(id) }

	out := make([]Contributor, len(ids))
	for i, id := range ids {
		out[i] = Contributor{
			GenbankAccession: str(memdb.ColGenbankAccession, id),
			SraAccession:     str(memdb.ColSraAccession, id),
			GisaidEpiIsl:     str(memdb.ColGisaidEpiIsl, id),
			Strain:           str(memdb.ColStrain, id),
			SubmittingLab:    str(memdb.ColSubmittingLab, id),
			OriginatingLab:   str(memdb.ColOriginatingLab, id),
			Authors:          str(memdb.ColAuthors, id),
		}
	}
	return out, nil
}

// Aliases lists the pango lineage aliases of the current snapshot.
func (s *SampleService) Aliases(ctx context.Context) ([]pango.Alias, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Aliases.All(), nil
}

// Strains lists the non-empty strain names of the matching samples.
func (s *SampleService) Strains(ctx context.Context, f SampleFilter, ol OrderAndLimit) ([]string, error) {
	return s.column(ctx, f, ol, memdb.ColStrain)
}

// GisaidEpiIsls lists the non-empty GISAID accessions of the matching samples.
func (s *SampleService) GisaidEpiIsls(ctx context.Context, f SampleFilter, ol OrderAndLimit) ([]string, error) {
	return s.column(ctx, f, ol, memdb.ColGisaidEpiIsl)
}

func (s *SampleService) column(ctx context.Context, f SampleFilter, ol OrderAndLimit, col string) ([]string, error) {
	snap, ids, err := s.listing(ctx, f, ol)
	if err != nil {
		return nil, err
	}
	c := snap.Metadata.Strings[col]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if v := c.Value(id); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}
