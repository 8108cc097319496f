// Package pagination holds the page/pageSize window shown by list views and
// keeps it addressable through URL query parameters.
package pagination

import (
	"net/url"
	"slices"
	"strconv"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 5

	pageParam     = "page"
	pageSizeParam = "pageSize"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{5, 10, 20}

// Window is a 1-based page of a fixed size.
type Window struct {
	Page     int
	PageSize int
}

// Default returns page 1 with the default size.
func Default() Window {
	return Window{Page: DefaultPage, PageSize: DefaultPageSize}
}

// Derive parses raw query values. Anything that is not a positive integer
// falls back to the default; page sizes outside PageSizes fall back too.
func Derive(pageRaw, pageSizeRaw string) Window {
	w := Default()
	if n, ok := positive(pageRaw); ok {
		w.Page = n
	}
	if n, ok := positive(pageSizeRaw); ok && allowed(n) {
		w.PageSize = n
	}
	return w
}

// FromQuery derives the window from request query parameters.
func FromQuery(q url.Values) Window {
	return Derive(q.Get(pageParam), q.Get(pageSizeParam))
}

func positive(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func allowed(size int) bool {
	return slices.Contains(PageSizes, size)
}

// SetPage moves to page n, floored at 1.
func (w Window) SetPage(n int) Window {
	if n < 1 {
		n = 1
	}
	w.Page = n
	return w
}

// SetPageSize changes the size and always returns to the first page.
func (w Window) SetPageSize(n int) Window {
	if !allowed(n) {
		n = DefaultPageSize
	}
	return Window{Page: DefaultPage, PageSize: n}
}

// NextPageSize cycles through PageSizes.
func (w Window) NextPageSize() Window {
	i := slices.Index(PageSizes, w.PageSize)
	return w.SetPageSize(PageSizes[(i+1)%len(PageSizes)])
}

// Skip is the number of records before this page.
func (w Window) Skip() int {
	return (w.Page - 1) * w.PageSize
}

// Limit is the page size, named after the backend parameter.
func (w Window) Limit() int {
	return w.PageSize
}

// TotalPages is never less than 1, even for an empty collection.
func (w Window) TotalPages(count int) int {
	if count <= 0 || w.PageSize <= 0 {
		return 1
	}
	return (count + w.PageSize - 1) / w.PageSize
}

// Clamp moves the page back to the last page when it lies beyond count.
func (w Window) Clamp(count int) Window {
	if last := w.TotalPages(count); w.Page > last {
		w.Page = last
	}
	return w
}

// HasPrev reports whether a previous page exists.
func (w Window) HasPrev() bool { return w.Page > 1 }

// HasNext reports whether a page follows w for count records.
func (w Window) HasNext(count int) bool { return w.Page < w.TotalPages(count) }

// Encode writes the window into q, leaving out default values.
func (w Window) Encode(q url.Values) {
	q.Del(pageParam)
	q.Del(pageSizeParam)
	if w.Page != DefaultPage {
		q.Set(pageParam, strconv.Itoa(w.Page))
	}
	if w.PageSize != DefaultPageSize {
		q.Set(pageSizeParam, strconv.Itoa(w.PageSize))
	}
}

// URL returns path with the window merged into a copy of query.
func (w Window) URL(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	w.Encode(q)
	if encoded := q.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}
