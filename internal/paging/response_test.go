package paging

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_NextLinkAbsentWhenNoProbeRow(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/api/v2/orders?$top=10&$skip=20")
	req, err := Parse(u.Query(), testConfig())
	require.NoError(t, err)

	result := Result[int]{Rows: []int{1, 2, 3}}
	env := Build(u, "orders", req, result)

	assert.Empty(t, env.NextLink)
	assert.Len(t, env.Value, 3)
}

func TestBuild_NextLinkPresentWhenProbeRowReturned(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/api/v2/orders?$top=10&$skip=20&$count=true&$orderby=" + url.QueryEscape("orderDate desc"))
	req, err := Parse(u.Query(), testConfig())
	require.NoError(t, err)

	rows := make([]int, req.Limit())
	total := int64(150)
	env := Build(u, "orders", req, Result[int]{Rows: rows, TotalCount: &total})

	require.NotEmpty(t, env.NextLink)
	assert.Len(t, env.Value, 10)
	require.NotNil(t, env.Count)
	assert.Equal(t, int64(150), *env.Count)

	assert.True(t, strings.Contains(env.NextLink, "$skip=30"))
	assert.True(t, strings.Contains(env.NextLink, "$top=10"))
	assert.True(t, strings.Contains(env.NextLink, "$count=true"))
	assert.True(t, strings.Contains(env.NextLink, "orderDate+desc") || strings.Contains(env.NextLink, "orderDate%20desc") || strings.Contains(env.NextLink, "orderDate"))
}

func TestBuild_CountOmittedWhenNotRequested(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/api/v2/orders?$top=10")
	req, err := Parse(u.Query(), testConfig())
	require.NoError(t, err)

	env := Build(u, "orders", req, Result[int]{Rows: []int{1}})
	assert.Nil(t, env.Count)
}

func TestBuild_ContextIncludesSetName(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/api/v2/orders?$top=10")
	req, err := Parse(u.Query(), testConfig())
	require.NoError(t, err)

	env := Build(u, "orders", req, Result[int]{Rows: []int{1}})
	assert.Equal(t, "https://api.example.com/api/v2/orders#orders", env.Context)
}
