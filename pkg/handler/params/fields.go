package params

import "fmt"

type SequenceType int

const (
	SequenceNuc SequenceType = iota
	SequenceAA
)

func (s SequenceType) String() string {
	switch s {
	case SequenceNuc:
		return "nuc"
	case SequenceAA:
		return "aa"
	default:
		return "unknown"
	}
}

func ParseSequenceType(v string) (SequenceType, error) {
	switch v {
	case "nuc", "nucleotide":
		return SequenceNuc, nil
	case "aa", "aminoacid":
		return SequenceAA, nil
	default:
		return SequenceNuc, fmt.Errorf("unknown sequence type %q", v)
	}
}

// Special orderings. Anything else is rejected.
const (
	OrderArbitrary = "arbitrary"
	OrderRandom    = "random"
)

// AggregationField is a metadata column that samples can be grouped by.
type AggregationField string

const (
	FieldDate             AggregationField = "date"
	FieldDateSubmitted    AggregationField = "dateSubmitted"
	FieldRegion           AggregationField = "region"
	FieldCountry          AggregationField = "country"
	FieldDivision         AggregationField = "division"
	FieldLocation         AggregationField = "location"
	FieldRegionExposure   AggregationField = "regionExposure"
	FieldCountryExposure  AggregationField = "countryExposure"
	FieldDivisionExposure AggregationField = "divisionExposure"
	FieldHost             AggregationField = "host"
	FieldAge              AggregationField = "age"
	FieldSex              AggregationField = "sex"
	FieldHospitalized     AggregationField = "hospitalized"
	FieldDied             AggregationField = "died"
	FieldFullyVaccinated  AggregationField = "fullyVaccinated"
	FieldSamplingStrategy AggregationField = "samplingStrategy"
	FieldPangoLineage     AggregationField = "pangoLineage"
	FieldNextstrainClade  AggregationField = "nextstrainClade"
	FieldGisaidClade      AggregationField = "gisaidClade"
	FieldSubmittingLab    AggregationField = "submittingLab"
	FieldOriginatingLab   AggregationField = "originatingLab"
)

var aggregationFields = map[AggregationField]bool{
	FieldDate: true, FieldDateSubmitted: true, FieldRegion: true, FieldCountry: true,
	FieldDivision: true, FieldLocation: true, FieldRegionExposure: true, FieldCountryExposure: true,
	FieldDivisionExposure: true, FieldHost: true, FieldAge: true, FieldSex: true,
	FieldHospitalized: true, FieldDied: true, FieldFullyVaccinated: true,
	FieldSamplingStrategy: true, FieldPangoLineage: true, FieldNextstrainClade: true,
	FieldGisaidClade: true, FieldSubmittingLab: true, FieldOriginatingLab: true,
}

func (f AggregationField) Valid() bool {
	return aggregationFields[f]
}
