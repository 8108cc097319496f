package pagination

import (
	"net/url"
	"testing"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		page, size string
		want       Window
	}{
		{"", "", Window{1, 5}},
		{"0", "", Window{1, 5}},
		{"-3", "", Window{1, 5}},
		{"abc", "", Window{1, 5}},
		{"2.5", "", Window{1, 5}},
		{"4", "", Window{4, 5}},
		{"1", "7", Window{1, 5}},
		{"1", "10", Window{1, 10}},
		{"3", "20", Window{3, 20}},
		{"3", "-20", Window{3, 5}},
	}
	for _, tt := range tests {
		if got := Derive(tt.page, tt.size); got != tt.want {
			t.Errorf("Derive(%q, %q) = %+v, want %+v", tt.page, tt.size, got, tt.want)
		}
	}
}

func TestFromQuery(t *testing.T) {
	q := url.Values{"page": {"2"}, "pageSize": {"10"}}
	if got := FromQuery(q); got != (Window{2, 10}) {
		t.Errorf("FromQuery() = %+v", got)
	}
}

func TestSetters(t *testing.T) {
	w := Window{Page: 4, PageSize: 5}
	if got := w.SetPageSize(20); got != (Window{1, 20}) {
		t.Errorf("SetPageSize(20) = %+v", got)
	}
	if got := w.SetPageSize(7); got != (Window{1, 5}) {
		t.Errorf("SetPageSize(7) = %+v", got)
	}
	if got := w.SetPage(0); got.Page != 1 {
		t.Errorf("SetPage(0) = %+v", got)
	}
	if got := (Window{3, 20}).NextPageSize(); got != (Window{1, 5}) {
		t.Errorf("NextPageSize() = %+v", got)
	}
}

func TestSkipAndTotals(t *testing.T) {
	w := Window{Page: 3, PageSize: 5}
	if w.Skip() != 10 || w.Limit() != 5 {
		t.Errorf("Skip/Limit = %d/%d", w.Skip(), w.Limit())
	}
	tests := []struct {
		count, want int
	}{
		{0, 1}, {1, 1}, {5, 1}, {6, 2}, {12, 3},
	}
	for _, tt := range tests {
		if got := w.TotalPages(tt.count); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := (Window{5, 5}).Clamp(12); got.Page != 3 {
		t.Errorf("Clamp(12) page = %d, want 3", got.Page)
	}
	if got := (Window{2, 5}).Clamp(12); got.Page != 2 {
		t.Errorf("Clamp must keep valid pages, got %d", got.Page)
	}
	if got := (Window{4, 5}).Clamp(0); got.Page != 1 {
		t.Errorf("Clamp(0) page = %d, want 1", got.Page)
	}
	w := Window{2, 5}
	if !w.HasPrev() || !w.HasNext(12) || w.HasNext(10) {
		t.Error("HasPrev/HasNext mismatch")
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		w    Window
		q    url.Values
		want string
	}{
		{Window{1, 5}, nil, "/items"},
		{Window{2, 5}, nil, "/items?page=2"},
		{Window{1, 10}, nil, "/items?pageSize=10"},
		{Window{3, 20}, url.Values{"status": {"ok"}, "page": {"9"}}, "/items?page=3&pageSize=20&status=ok"},
	}
	for _, tt := range tests {
		if got := tt.w.URL("/items", tt.q); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}
