package request

import (
	"net/url"
	"testing"

	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/model"
	"github.com/nasasaki/LAPIS/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleRequest(t *testing.T) {
	q, err := url.ParseQuery("country=Switzerland&dateFrom=2021-01-01&ageTo=40&hospitalized=true" +
		"&countryExposure=Italy&sraAccession=SRR1&nucMutations=23403G,C241T&fields=country,date&orderBy=random&limit=5&minProportion=0.2")
	require.NoError(t, err)

	req, err := ParseSampleRequest(q)
	require.NoError(t, err)
	assert.Equal(t, "Switzerland", req.Filter.Country)
	assert.Equal(t, "2021-01-01", req.Filter.DateFrom)
	assert.Equal(t, "Italy", req.Filter.CountryExposure)
	assert.Equal(t, "SRR1", req.Filter.SraAccession)
	require.NotNil(t, req.Filter.AgeTo)
	assert.Equal(t, 40, *req.Filter.AgeTo)
	require.NotNil(t, req.Filter.Hospitalized)
	assert.True(t, *req.Filter.Hospitalized)
	assert.Len(t, req.Filter.NucMutations, 2)
	assert.Equal(t, []params.AggregationField{params.FieldCountry, params.FieldDate}, req.Fields)
	assert.Equal(t, "random", req.OrderAndLimit.OrderBy)
	assert.Equal(t, 5, *req.OrderAndLimit.Limit)
	assert.Equal(t, 0.2, req.MinProportion)
}

func TestParseSampleRequestDefaults(t *testing.T) {
	req, err := ParseSampleRequest(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinProportion, req.MinProportion)
	assert.Nil(t, req.Filter.AgeFrom)
	assert.Nil(t, req.OrderAndLimit.Limit)
	assert.Empty(t, req.Fields)
}

func TestParseSampleRequestErrors(t *testing.T) {
	for _, raw := range []string{
		"ageFrom=old",
		"died=maybe",
		"dateTo=01.02.2021",
		"minProportion=2",
		"limit=x",
		"nucMutations=S:D614G",
	} {
		q, err := url.ParseQuery(raw)
		require.NoError(t, err)
		_, err = ParseSampleRequest(q)
		assert.ErrorIs(t, err, model.ErrBadParameter, raw)
	}

	q, _ := url.ParseQuery("aaMutations=S:")
	_, err := ParseSampleRequest(q)
	assert.True(t, query.IsMalformed(err))
}
