package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiltersFromQuery(t *testing.T) {
	f := FiltersFromQuery(url.Values{})
	require.Equal(t, DefaultPage, f.Page)
	require.Equal(t, DefaultLimit, f.Limit)
	require.Nil(t, f.IsActive)
	require.Zero(t, f.Offset())

	f = FiltersFromQuery(url.Values{
		"page": {"3"}, "limit": {"5000"}, "search": {"bun"},
		"sort": {"code"}, "dir": {"DESC"}, "is_active": {"false"},
	})
	require.Equal(t, 3, f.Page)
	require.Equal(t, MaxLimit, f.Limit)
	require.Equal(t, 2*MaxLimit, f.Offset())
	require.Equal(t, SortDesc, f.SortDir)
	require.NotNil(t, f.IsActive)
	require.False(t, *f.IsActive)
}
