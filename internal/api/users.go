package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ListUsers is admin-only on the backend; non-admins get a 403.
func (c *Client) ListUsers(ctx context.Context, token string, skip, limit int) (*Page[User], error) {
	var page Page[User]
	if err := c.do(ctx, Request{Method: http.MethodGet, Path: listPath("/api/v1/users/", skip, limit), Token: token}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateUser defaults IsActive to true and IsSuperuser to false when unset.
func (c *Client) CreateUser(ctx context.Context, token string, in UserCreateInput) (*User, error) {
	var u User
	if err := c.do(ctx, Request{Method: http.MethodPost, Path: "/api/v1/users/", Body: in.normalized(), Token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser patches a user. Unset fields are not sent.
func (c *Client) UpdateUser(ctx context.Context, token string, id uuid.UUID, in UserUpdateInput) (*User, error) {
	var u User
	if err := c.do(ctx, Request{Method: http.MethodPatch, Path: "/api/v1/users/" + id.String(), Body: in, Token: token}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, token string, id uuid.UUID) (*Message, error) {
	var m Message
	if err := c.do(ctx, Request{Method: http.MethodDelete, Path: "/api/v1/users/" + id.String(), Token: token}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
