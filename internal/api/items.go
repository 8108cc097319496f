package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

func listPath(base string, skip, limit int) string {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	return base + "?" + q.Encode()
}

// ListItems returns one slice of the caller's visible items. Whether that is
// every item or only the caller's own is backend policy.
func (c *Client) ListItems(ctx context.Context, token string, skip, limit int) (*Page[Item], error) {
	var page Page[Item]
	if err := c.do(ctx, Request{Method: http.MethodGet, Path: listPath("/api/v1/items/", skip, limit), Token: token}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateItem posts a new item.
func (c *Client) CreateItem(ctx context.Context, token string, in ItemCreateInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, Request{Method: http.MethodPost, Path: "/api/v1/items/", Body: in, Token: token}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem patches an item. Unset fields are not sent.
func (c *Client) UpdateItem(ctx context.Context, token string, id uuid.UUID, in ItemUpdateInput) (*Item, error) {
	var item Item
	if err := c.do(ctx, Request{Method: http.MethodPatch, Path: "/api/v1/items/" + id.String(), Body: in, Token: token}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, token string, id uuid.UUID) (*Message, error) {
	var m Message
	if err := c.do(ctx, Request{Method: http.MethodDelete, Path: "/api/v1/items/" + id.String(), Token: token}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
