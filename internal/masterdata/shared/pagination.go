package shared

import (
	"net/url"
	"strconv"
	"strings"
)

// Paging defaults and the accepted sort directions.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 200

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// Offset returns the row offset of the requested page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}

// FiltersFromQuery reads paging, search, sort and active filters from a query string.
func FiltersFromQuery(q url.Values) ListFilters {
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	filters := ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: strings.ToLower(q.Get("dir")),
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		filters.IsActive = &active
	}
	return filters
}
