// Package domain holds the types shared by the catalog, ledger and report
// services: paging and lifecycle hooks.
package domain

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ListFilter is the paging and search part of every list query. Services
// embed it in their own filters.
type ListFilter struct {
	Search  string // case-insensitive match on code or name
	OrderBy string // column name, "-" prefix for descending
	Limit   int
	Offset  int
}

// DefaultListFilter lists the first page ordered by code.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: DefaultPageSize, OrderBy: "code"}
}

// Normalize clamps Limit into [1, MaxPageSize] and Offset to >= 0.
func (f *ListFilter) Normalize() {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	f.Offset = max(f.Offset, 0)
}

// ListResult is one page plus the count of all matching rows.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// Page starts an empty result echoing the filter's window.
func Page[T any](f ListFilter) ListResult[T] {
	return ListResult[T]{Items: []T{}, Limit: f.Limit, Offset: f.Offset}
}
