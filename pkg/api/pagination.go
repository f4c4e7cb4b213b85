package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest carries the pagination window parsed from a request.
type PageRequest struct {
	Page     int64 `json:"page"`
	PageSize int64 `json:"pageSize"`
}

// PageResponse is the standard envelope for windowed list responses.
type PageResponse[T any] struct {
	Data []T `json:"data"`

	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPageResponse wraps a result window with its paging metadata.
func NewPageResponse[T any](data []T, page, pageSize, totalItems int64) PageResponse[T] {
	pages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}

	return PageResponse[T]{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
		Data:       data,
	}
}

// ParsePagination reads page and pageSize query parameters, clamping out of
// range values to the defaults rather than rejecting the request.
func ParsePagination(c *gin.Context) PageRequest {
	return PageRequest{
		Page:     parseClamped(c.Query("page"), DefaultPage, 1, 0),
		PageSize: parseClamped(c.Query("pageSize"), DefaultPageSize, 1, MaxPageSize),
	}
}

func parseClamped(raw string, fallback, min, max int64) int64 {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < min {
		return fallback
	}
	if max > 0 && value > max {
		return max
	}
	return value
}

// SortOrder is a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortRequest carries the sort field and direction parsed from a request.
type SortRequest struct {
	Field string    `json:"sortBy"`
	Order SortOrder `json:"order"`
}

// ParseSort reads sortBy and order query parameters. Unknown directions fall
// back to descending, matching the newest-first defaults of the list views.
func ParseSort(c *gin.Context, defaultField string) SortRequest {
	field := c.Query("sortBy")
	if field == "" {
		field = defaultField
	}

	order := SortOrder(c.Query("order"))
	if order != SortAsc && order != SortDesc {
		order = SortDesc
	}

	return SortRequest{Field: field, Order: order}
}
