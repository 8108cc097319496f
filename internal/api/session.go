package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// Login exchanges credentials for a bearer token. The backend expects the
// email in the username field.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var tok oauth2.Token
	err := c.do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/v1/login/access-token",
		Body:   form,
		Header: http.Header{"Content-Type": []string{contentTypeForm}},
	}, &tok)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token in response")
	}
	return &tok, nil
}

// CurrentUser fetches the principal the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/users/me", Token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe patches the caller's own profile.
func (c *Client) UpdateMe(ctx context.Context, token string, in UpdateMeInput) (*User, error) {
	var u User
	if err := c.do(ctx, Request{Method: http.MethodPatch, Path: "/api/v1/users/me", Body: in, Token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword replaces the caller's password. The backend rejects a wrong
// current password with 400.
func (c *Client) ChangePassword(ctx context.Context, token string, in ChangePasswordInput) (*Message, error) {
	var m Message
	if err := c.do(ctx, Request{Method: http.MethodPatch, Path: "/api/v1/users/me/password", Body: in, Token: token}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// HealthCheck reports whether the backend answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/api/v1/utils/health-check"}); err != nil {
		return false, err
	}
	return true, nil
}
