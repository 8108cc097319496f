// Package api talks to the REST backend. Client.Do is the single low-level
// request function; the resource methods in this package shape requests on
// top of it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"gitea.jw6.us/james/dashboard/internal/metrics"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Client issues requests against a configured backend base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request. Zero leaves the transport's own limits in charge.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New returns a Client for baseURL, which must be absolute.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", baseURL)
	}
	c := &Client{baseURL: baseURL, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one backend call.
//
// Body may be url.Values (form-encoded), an io.Reader or []byte (sent
// verbatim, the caller supplies the content type), or any other value, which
// is encoded as JSON.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
	Token  string
}

// Response is a successful backend answer.
type Response struct {
	StatusCode  int
	ContentType string
	// Body is the parsed payload: the decoded JSON value when the response
	// declares JSON, the raw text otherwise.
	Body any
	raw  []byte
}

// Raw returns the unparsed response bytes.
func (r *Response) Raw() []byte { return r.raw }

// Decode unmarshals the JSON payload into v.
func (r *Response) Decode(v any) error {
	if !isJSON(r.ContentType) {
		return fmt.Errorf("decode response: content type %q is not json", r.ContentType)
	}
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Do performs exactly one HTTP round trip. Non-2xx answers fail with *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Token != "" {
		(&oauth2.Token{AccessToken: req.Token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set("Cache-Control", "no-store")
	httpReq.Header.Set("Pragma", "no-cache")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveAPIRequest(ctx, method, req.Path, 0, start)
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveAPIRequest(ctx, method, req.Path, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	respType := resp.Header.Get("Content-Type")
	parsed, err := parseBody(respType, raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if err != nil {
			// A proxy may label an HTML error page as JSON; keep the status.
			parsed = string(raw)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       parsed,
		}
	}
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, ContentType: respType, Body: parsed, raw: raw}, nil
}

// do runs req and decodes a JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), contentTypeForm, nil
	case io.Reader:
		return b, contentTypeJSON, nil
	case []byte:
		return bytes.NewReader(b), contentTypeJSON, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), contentTypeJSON, nil
	}
}

func parseBody(contentType string, raw []byte) (any, error) {
	if !isJSON(contentType) {
		return string(raw), nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("parse json response: %w", err)
	}
	return v, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), contentTypeJSON)
}

// ErrNotAuthenticated is returned before any network call when an
// authenticated operation is attempted without a token.
var ErrNotAuthenticated = errors.New("not authenticated")
