package paging

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prescription-order-service/internal/problem"
)

func testConfig() Config {
	return Config{
		DefaultPageSize:     20,
		MaxPageSize:         100,
		DefaultIncludeCount: false,
		SortableFields:      map[string]bool{"orderDate": true, "status": true},
	}
}

func TestParse_DefaultsWhenTopMissing(t *testing.T) {
	q, _ := url.ParseQuery("")
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 20, req.Top)
	assert.Equal(t, 0, req.Skip)
}

func TestParse_ClampsTopToMax(t *testing.T) {
	q, _ := url.ParseQuery("$top=500")
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 100, req.Top)
}

func TestParse_ClampsTopBelowOne(t *testing.T) {
	q, _ := url.ParseQuery("$top=0")
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, req.Top)
}

func TestParse_NegativeSkipBecomesZero(t *testing.T) {
	q, _ := url.ParseQuery("$skip=-5")
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, req.Skip)
}

func TestParse_OrderByWithDirection(t *testing.T) {
	q, _ := url.ParseQuery("$orderby=" + url.QueryEscape("orderDate desc"))
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "orderDate", req.OrderBy)
	assert.True(t, req.OrderDesc)
}

func TestParse_OrderByOnlyFirstOfMultipleFields(t *testing.T) {
	q, _ := url.ParseQuery("$orderby=" + url.QueryEscape("orderDate desc,status"))
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.Equal(t, "orderDate", req.OrderBy)
}

func TestParse_DisallowedSortFieldFailsValidation(t *testing.T) {
	q, _ := url.ParseQuery("$orderby=ssn")
	_, err := Parse(q, testConfig())
	require.Error(t, err)
	f := problem.As(err)
	assert.Equal(t, problem.Validation, f.Kind)
}

func TestParse_CountFlag(t *testing.T) {
	q, _ := url.ParseQuery("$count=true")
	req, err := Parse(q, testConfig())
	require.NoError(t, err)
	assert.True(t, req.IncludeCount)
}

func TestRequest_LimitProbesOneExtra(t *testing.T) {
	req := Request{Top: 10}
	assert.Equal(t, 11, req.Limit())
}
