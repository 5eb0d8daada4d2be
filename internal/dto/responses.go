package dto

import (
	"net/url"
	"strconv"
)

// Page is the list envelope: total count, links to the neighbouring pages
// and the current page's rows.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage builds the envelope for page (1-based) of size over total rows.
// Links reuse base with its page parameter replaced.
func NewPage[T any](items []T, total, page, size int, base *url.URL) Page[T] {
	if items == nil {
		items = []T{}
	}
	p := Page[T]{Count: total, Results: items}
	if base == nil || size <= 0 {
		return p
	}
	if page*size < total {
		p.Next = pageLink(base, page+1)
	}
	if page > 1 {
		p.Previous = pageLink(base, page-1)
	}
	return p
}

func pageLink(base *url.URL, page int) *string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// ErrorResponse is the body of every failed request. Errors holds per-field
// messages for validation failures.
type ErrorResponse struct {
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// DetailResponse acknowledges an action that returns no resource.
type DetailResponse struct {
	Detail string `json:"detail"`
}
