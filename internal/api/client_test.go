package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	for _, base := range []string{"", "/api", "localhost:8000"} {
		if _, err := New(base); err == nil {
			t.Errorf("New(%q) expected error", base)
		}
	}
}

func TestDoBuildsURLAndHeaders(t *testing.T) {
	var got *http.Request
	var gotBody string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/items/",
		Body:   map[string]string{"title": "a"},
		Token:  "tok-123",
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if got.URL.Path != "/api/v1/items/" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if ct := got.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if auth := got.Header.Get("Authorization"); auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", auth)
	}
	if cc := got.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
	if gotBody != `{"title":"a"}` {
		t.Errorf("body = %q", gotBody)
	}
	want := map[string]any{"ok": true}
	if !reflect.DeepEqual(resp.Body, want) {
		t.Errorf("parsed body = %#v, want %#v", resp.Body, want)
	}
}

func TestDoContentTypeRules(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		header http.Header
		want   string
	}{
		{name: "json body without explicit type", body: map[string]int{"a": 1}, want: "application/json"},
		{name: "explicit type is kept", body: map[string]int{"a": 1}, header: http.Header{"Content-Type": {"application/merge-patch+json"}}, want: "application/merge-patch+json"},
		{name: "form payload", body: url.Values{"username": {"u"}}, want: "application/x-www-form-urlencoded"},
		{name: "form payload with explicit type", body: url.Values{"username": {"u"}}, header: http.Header{"Content-Type": {"application/x-www-form-urlencoded; charset=utf-8"}}, want: "application/x-www-form-urlencoded; charset=utf-8"},
		{name: "multipart reader keeps caller type", body: strings.NewReader("--b--"), header: http.Header{"Content-Type": {"multipart/form-data; boundary=b"}}, want: "multipart/form-data; boundary=b"},
		{name: "raw json bytes", body: []byte(`{"title":"a"}`), want: "application/json"},
		{name: "reader without explicit type", body: strings.NewReader(`{"title":"a"}`), want: "application/json"},
		{name: "no body", body: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ct string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				ct = r.Header.Get("Content-Type")
				w.WriteHeader(http.StatusNoContent)
			})
			if _, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Body: tt.body, Header: tt.header}); err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			if ct != tt.want {
				t.Errorf("Content-Type = %q, want %q", ct, tt.want)
			}
		})
	}
}

func TestDoNoAuthorizationWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
	})
	if _, err := c.Do(context.Background(), Request{Path: "/api/v1/utils/health-check"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestDoNon2xxCarriesStatusAndParsedBody(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		payload     string
		wantBody    any
	}{
		{
			name:        "json detail string",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			payload:     `{"detail":"Incorrect password"}`,
			wantBody:    map[string]any{"detail": "Incorrect password"},
		},
		{
			name:        "json validation array",
			status:      http.StatusUnprocessableEntity,
			contentType: "application/json; charset=utf-8",
			payload:     `{"detail":[{"msg":"too short","loc":["body","title"]}]}`,
			wantBody:    map[string]any{"detail": []any{map[string]any{"msg": "too short", "loc": []any{"body", "title"}}}},
		},
		{
			name:        "plain text",
			status:      http.StatusBadGateway,
			contentType: "text/plain",
			payload:     "upstream down",
			wantBody:    "upstream down",
		},
		{
			name:        "forbidden",
			status:      http.StatusForbidden,
			contentType: "application/json",
			payload:     `{"detail":"The user doesn't have enough privileges"}`,
			wantBody:    map[string]any{"detail": "The user doesn't have enough privileges"},
		},
		{
			name:        "html labelled as json",
			status:      http.StatusForbidden,
			contentType: "application/json",
			payload:     "<html>denied</html>",
			wantBody:    "<html>denied</html>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, err := c.Do(context.Background(), Request{Path: "/x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T (%v)", err, err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if !reflect.DeepEqual(apiErr.Body, tt.wantBody) {
				t.Errorf("Body = %#v, want %#v", apiErr.Body, tt.wantBody)
			}
			if StatusCode(err) != tt.status {
				t.Errorf("StatusCode(err) = %d", StatusCode(err))
			}
		})
	}
}

func TestDoTextResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>hi</p>"))
	})
	resp, err := c.Do(context.Background(), Request{Path: "/"})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Body != "<p>hi</p>" {
		t.Errorf("Body = %#v", resp.Body)
	}
	var v any
	if err := resp.Decode(&v); err == nil {
		t.Error("Decode() of text response should fail")
	}
}

func TestDoMakesExactlyOneCallOnFailure(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := c.Do(context.Background(), Request{Path: "/x"}); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
