package request

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/model"
)

// SampleRequest is everything a sample endpoint can be asked. It doubles as
// the cache key, so it must only hold request data.
type SampleRequest struct {
	Filter        model.SampleFilter        `json:"filter"`
	Fields        []params.AggregationField `json:"fields,omitempty"`
	OrderAndLimit model.OrderAndLimit       `json:"orderAndLimit"`
	MinProportion float64                   `json:"minProportion,omitempty"`
	Insertion     string                    `json:"insertion,omitempty"`
	SequenceType  string                    `json:"sequenceType,omitempty"`
}

const DefaultMinProportion = 0.05

// ParseSampleRequest reads the query string of a sample endpoint.
func ParseSampleRequest(q url.Values) (SampleRequest, error) {
	var req SampleRequest
	f := &req.Filter

	strs := map[string]*string{
		"dateFrom":          &f.DateFrom,
		"dateTo":            &f.DateTo,
		"dateSubmittedFrom": &f.DateSubmittedFrom,
		"dateSubmittedTo":   &f.DateSubmittedTo,
		"region":            &f.Region,
		"country":           &f.Country,
		"division":          &f.Division,
		"location":          &f.Location,
		"regionExposure":    &f.RegionExposure,
		"countryExposure":   &f.CountryExposure,
		"divisionExposure":  &f.DivisionExposure,
		"host":              &f.Host,
		"sex":               &f.Sex,
		"samplingStrategy":  &f.SamplingStrategy,
		"pangoLineage":      &f.PangoLineage,
		"nextstrainClade":   &f.NextstrainClade,
		"gisaidClade":       &f.GisaidClade,
		"submittingLab":     &f.SubmittingLab,
		"originatingLab":    &f.OriginatingLab,
		"genbankAccession":  &f.GenbankAccession,
		"gisaidEpiIsl":      &f.GisaidEpiIsl,
		"sraAccession":      &f.SraAccession,
		"strain":            &f.Strain,
		"variantQuery":      &f.VariantQuery,
	}
	for name, dst := range strs {
		*dst = strings.TrimSpace(q.Get(name))
	}

	for _, name := range []string{"dateFrom", "dateTo", "dateSubmittedFrom", "dateSubmittedTo"} {
		if v := *strs[name]; v != "" && !isISODate(v) {
			return req, fmt.Errorf("%w: %s must be YYYY-MM-DD", model.ErrBadParameter, name)
		}
	}

	var err error
	if f.AgeFrom, err = optionalInt(q, "ageFrom"); err != nil {
		return req, err
	}
	if f.AgeTo, err = optionalInt(q, "ageTo"); err != nil {
		return req, err
	}
	if f.Hospitalized, err = optionalBool(q, "hospitalized"); err != nil {
		return req, err
	}
	if f.Died, err = optionalBool(q, "died"); err != nil {
		return req, err
	}
	if f.FullyVaccinated, err = optionalBool(q, "fullyVaccinated"); err != nil {
		return req, err
	}

	if f.NucMutations, err = model.ParseNucMutations(q.Get("nucMutations")); err != nil {
		return req, err
	}
	if f.AAMutations, err = model.ParseAAMutations(q.Get("aaMutations")); err != nil {
		return req, err
	}

	for _, fld := range strings.Split(q.Get("fields"), ",") {
		if fld = strings.TrimSpace(fld); fld != "" {
			req.Fields = append(req.Fields, params.AggregationField(fld))
		}
	}

	req.OrderAndLimit.OrderBy = strings.TrimSpace(q.Get("orderBy"))
	if req.OrderAndLimit.Limit, err = optionalInt(q, "limit"); err != nil {
		return req, err
	}

	req.MinProportion = DefaultMinProportion
	if v := q.Get("minProportion"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || p < 0 || p > 1 {
			return req, fmt.Errorf("%w: minProportion must be a number between 0 and 1", model.ErrBadParameter)
		}
		req.MinProportion = p
	}

	req.Insertion = strings.TrimSpace(q.Get("insertion"))
	req.SequenceType = strings.TrimSpace(q.Get("sequenceType"))
	return req, nil
}

func optionalInt(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", model.ErrBadParameter, name)
	}
	return &n, nil
}

func optionalBool(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", model.ErrBadParameter, name)
	}
	return &b, nil
}

func isISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
