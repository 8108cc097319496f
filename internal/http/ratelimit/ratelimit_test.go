package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestMiddlewareLimitsPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 2, time.Minute, nil)
	defer l.Close()

	h := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusNoContent {
			t.Fatalf("request %d = %d", i, code)
		}
	}
	if code := send("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusNoContent {
		t.Errorf("other IP = %d, want 204", code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "no proxies uses forwarded", remote: "10.0.0.1:1", xff: "1.2.3.4, 10.0.0.1", want: "1.2.3.4"},
		{name: "real ip fallback", remote: "10.0.0.1:1", realIP: "5.6.7.8", want: "5.6.7.8"},
		{name: "untrusted proxy ignored", trusted: []string{"192.168.0.0/16"}, remote: "10.0.0.1:1", xff: "1.2.3.4", want: "10.0.0.1"},
		{name: "trusted proxy cidr", trusted: []string{"10.0.0.0/8"}, remote: "10.0.0.1:1", xff: "1.2.3.4", want: "1.2.3.4"},
		{name: "trusted single ip", trusted: []string{"10.0.0.1"}, remote: "10.0.0.1:1", xff: "1.2.3.4", want: "1.2.3.4"},
		{name: "garbage header", remote: "10.0.0.1:1", xff: "nope", want: "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewIPRateLimiter(1, 1, time.Minute, tt.trusted)
			defer l.Close()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := l.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
