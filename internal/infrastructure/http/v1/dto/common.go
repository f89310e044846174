// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"stockledger/internal/domain"
)

// ListQuery holds the paging parameters shared by list endpoints.
type ListQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a domain filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.ListFilter{
		Search:  q.Search,
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	f.Normalize()
	return f
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain page through fn.
func NewListResponse[E, T any](r domain.ListResult[E], fn func(E) T) ListResponse[T] {
	items := make([]T, len(r.Items))
	for i, e := range r.Items {
		items[i] = fn(e)
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// ErrorResponse documents the error body rendered by middleware.ErrorHandler.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
