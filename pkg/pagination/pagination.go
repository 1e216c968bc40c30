package pagination

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds a page request. Page is 1-based.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page with the default size.
func DefaultParams() Params {
	return New(1, DefaultPerPage)
}

// New builds Params, clamping out-of-range values to the defaults.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromRequest reads page and per_page from the query string.
func FromRequest(r *http.Request) Params {
	return FromValues(r.URL.Query())
}

// FromValues reads page and per_page from q. Malformed values are ignored.
func FromValues(q url.Values) Params {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage)
}

// Bounds returns the half-open [start, end) slice window of this page over a
// collection of total items. Pages past the end yield an empty window.
func (p Params) Bounds(total int) (start, end int) {
	start = min(p.Offset, total)
	end = min(start+p.PerPage, total)
	return start, end
}

// Result is one page of T plus totals.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult wraps data as the page described by params. A nil data slice is
// reported as empty.
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	if params.PerPage < 1 {
		params = New(params.Page, params.PerPage)
	}
	totalPages := (totalCount + params.PerPage - 1) / params.PerPage
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}
