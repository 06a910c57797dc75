package memdb

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/nasasaki/LAPIS/pkg/db"
	"github.com/nasasaki/LAPIS/pkg/pango"
)

// Metadata column names, as used by filters and aggregation.
const (
	ColStrain           = "strain"
	ColGenbankAccession = "genbankAccession"
	ColGisaidEpiIsl     = "gisaidEpiIsl"
	ColSraAccession     = "sraAccession"
	ColDate             = "date"
	ColDateSubmitted    = "dateSubmitted"
	ColRegion           = "region"
	ColCountry          = "country"
	ColDivision         = "division"
	ColLocation         = "location"
	ColRegionExposure   = "regionExposure"
	ColCountryExposure  = "countryExposure"
	ColDivisionExposure = "divisionExposure"
	ColHost             = "host"
	ColAge              = "age"
	ColSex              = "sex"
	ColHospitalized     = "hospitalized"
	ColDied             = "died"
	ColFullyVaccinated  = "fullyVaccinated"
	ColSamplingStrategy = "samplingStrategy"
	ColPangoLineage     = "pangoLineage"
	ColNextstrainClade  = "nextstrainClade"
	ColGisaidClade      = "gisaidClade"
	ColSubmittingLab    = "submittingLab"
	ColOriginatingLab   = "originatingLab"
	ColAuthors          = "authors"

	// ColPangoLineageFull is derived at load time: the lineage with its
	// alias prefix resolved. Lineage queries match against it.
	ColPangoLineageFull = "pangoLineageFull"
)

// StringColumn is dictionary encoded: Codes[i] indexes Dict.
type StringColumn struct {
	Codes []int32
	Dict  []string
	index map[string]int32
}

func newStringColumn(n int) *StringColumn {
	return &StringColumn{Codes: make([]int32, 0, n), index: make(map[string]int32)}
}

func (c *StringColumn) append(v string) {
	code, ok := c.index[v]
	if !ok {
		code = int32(len(c.Dict))
		c.Dict = append(c.Dict, v)
		c.index[v] = code
	}
	c.Codes = append(c.Codes, code)
}

func (c *StringColumn) Value(id uint32) string {
	return c.Dict[c.Codes[id]]
}

// Equal returns the samples whose value is exactly v.
func (c *StringColumn) Equal(v string) *roaring.Bitmap {
	out := roaring.New()
	code, ok := c.index[v]
	if !ok {
		return out
	}
	for id, cd := range c.Codes {
		if cd == code {
			out.Add(uint32(id))
		}
	}
	return out
}

// Where evaluates keep once per distinct value, then scans the codes.
func (c *StringColumn) Where(keep func(string) bool) *roaring.Bitmap {
	wanted := make([]bool, len(c.Dict))
	hit := false
	for code, v := range c.Dict {
		if keep(v) {
			wanted[code] = true
			hit = true
		}
	}
	out := roaring.New()
	if !hit {
		return out
	}
	for id, cd := range c.Codes {
		if wanted[cd] {
			out.Add(uint32(id))
		}
	}
	return out
}

// IntColumn is a nullable integer column.
type IntColumn struct {
	Values []int32
	Valid  []bool
}

func (c *IntColumn) Value(id uint32) (int, bool) {
	return int(c.Values[id]), c.Valid[id]
}

// Between matches non-null values in [from, to]; nil bounds are open.
func (c *IntColumn) Between(from, to *int) *roaring.Bitmap {
	out := roaring.New()
	for id, v := range c.Values {
		if !c.Valid[id] {
			continue
		}
		if from != nil && int(v) < *from {
			continue
		}
		if to != nil && int(v) > *to {
			continue
		}
		out.Add(uint32(id))
	}
	return out
}

// BoolColumn is tri-state: -1 unknown, 0 false, 1 true.
type BoolColumn []int8

func (c BoolColumn) Value(id uint32) *bool {
	switch c[id] {
	case 0:
		f := false
		return &f
	case 1:
		t := true
		return &t
	}
	return nil
}

func (c BoolColumn) Is(v bool) *roaring.Bitmap {
	want := int8(0)
	if v {
		want = 1
	}
	out := roaring.New()
	for id, x := range c {
		if x == want {
			out.Add(uint32(id))
		}
	}
	return out
}

// Metadata is the column set of a snapshot. Every column has one entry per sample.
type Metadata struct {
	Strings map[string]*StringColumn
	Ints    map[string]*IntColumn
	Bools   map[string]BoolColumn
}

var stringColumns = []struct {
	name string
	get  func(*db.MetadataRow) string
}{
	{ColStrain, func(r *db.MetadataRow) string { return r.Strain }},
	{ColGenbankAccession, func(r *db.MetadataRow) string { return r.GenbankAccession }},
	{ColGisaidEpiIsl, func(r *db.MetadataRow) string { return r.GisaidEpiIsl }},
	{ColSraAccession, func(r *db.MetadataRow) string { return r.SraAccession }},
	{ColDate, func(r *db.MetadataRow) string { return r.Date }},
	{ColDateSubmitted, func(r *db.MetadataRow) string { return r.DateSubmitted }},
	{ColRegion, func(r *db.MetadataRow) string { return r.Region }},
	{ColCountry, func(r *db.MetadataRow) string { return r.Country }},
	{ColDivision, func(r *db.MetadataRow) string { return r.Division }},
	{ColLocation, func(r *db.MetadataRow) string { return r.Location }},
	{ColRegionExposure, func(r *db.MetadataRow) string { return r.RegionExposure }},
	{ColCountryExposure, func(r *db.MetadataRow) string { return r.CountryExposure }},
	{ColDivisionExposure, func(r *db.MetadataRow) string { return r.DivisionExposure }},
	{ColHost, func(r *db.MetadataRow) string { return r.Host }},
	{ColSex, func(r *db.MetadataRow) string { return r.Sex }},
	{ColSamplingStrategy, func(r *db.MetadataRow) string { return r.SamplingStrategy }},
	{ColPangoLineage, func(r *db.MetadataRow) string { return r.PangoLineage }},
	{ColNextstrainClade, func(r *db.MetadataRow) string { return r.NextstrainClade }},
	{ColGisaidClade, func(r *db.MetadataRow) string { return r.GisaidClade }},
	{ColSubmittingLab, func(r *db.MetadataRow) string { return r.SubmittingLab }},
	{ColOriginatingLab, func(r *db.MetadataRow) string { return r.OriginatingLab }},
	{ColAuthors, func(r *db.MetadataRow) string { return r.Authors }},
}

var boolColumns = []struct {
	name string
	get  func(*db.MetadataRow) *bool
}{
	{ColHospitalized, func(r *db.MetadataRow) *bool { return r.Hospitalized }},
	{ColDied, func(r *db.MetadataRow) *bool { return r.Died }},
	{ColFullyVaccinated, func(r *db.MetadataRow) *bool { return r.FullyVaccinated }},
}

// buildMetadata turns rows into columns and derives the full lineage names.
func buildMetadata(rows []db.MetadataRow, resolver *pango.AliasResolver) *Metadata {
	n := len(rows)
	md := &Metadata{
		Strings: make(map[string]*StringColumn, len(stringColumns)+1),
		Ints:    map[string]*IntColumn{ColAge: {Values: make([]int32, n), Valid: make([]bool, n)}},
		Bools:   make(map[string]BoolColumn, len(boolColumns)),
	}
	for _, sc := range stringColumns {
		md.Strings[sc.name] = newStringColumn(n)
	}
	full := newStringColumn(n)
	md.Strings[ColPangoLineageFull] = full
	for _, bc := range boolColumns {
		md.Bools[bc.name] = make(BoolColumn, n)
	}

	for i := range rows {
		r := &rows[i]
		for _, sc := range stringColumns {
			md.Strings[sc.name].append(sc.get(r))
		}
		if r.PangoLineage == "" {
			full.append("")
		} else {
			full.append(resolver.Resolve(r.PangoLineage))
		}
		if r.Age != nil {
			md.Ints[ColAge].Values[i] = int32(*r.Age)
			md.Ints[ColAge].Valid[i] = true
		}
		for _, bc := range boolColumns {
			v := int8(-1)
			if b := bc.get(r); b != nil {
				v = 0
				if *b {
					v = 1
				}
			}
			md.Bools[bc.name][i] = v
		}
	}
	return md
}
