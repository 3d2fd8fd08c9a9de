package model

import "math"

// Pagination defaults and limits shared by every paginated listing.
// MaxPage keeps Offset from overflowing at any page size.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = math.MaxInt / MaxPageSize
)

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Page is one page of results plus the total number of matching rows.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPage builds a Page, never returning a nil Items slice.
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Page: req.Page, PageSize: req.PageSize}
}
