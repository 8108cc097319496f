// Package dashboard binds the API client, a token store and a query cache
// into the read and write operations used by the web and terminal clients.
package dashboard

import (
	"context"
	"log"

	"github.com/google/uuid"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/pagination"
	"gitea.jw6.us/james/dashboard/internal/query"
)

// Cache key resources. Writes invalidate by these prefixes.
const (
	ResourceAuth   = "auth"
	ResourceItems  = "items"
	ResourceUsers  = "users"
	ResourceHealth = "health-check"
)

var keyMe = query.NewKey(ResourceAuth, "me")

func itemsKey(skip, limit int) query.Key { return query.NewKey(ResourceItems, skip, limit) }

func usersKey(skip, limit int) query.Key { return query.NewKey(ResourceUsers, skip, limit) }

// Service is the data access surface for one client (one browser session or
// one terminal user).
type Service struct {
	client *api.Client
	tokens auth.TokenStore
	cache  *query.Cache
}

// NewService binds client, tokens and cache. Each client gets its own cache.
func NewService(client *api.Client, tokens auth.TokenStore, cache *query.Cache) *Service {
	return &Service{client: client, tokens: tokens, cache: cache}
}

// Tokens returns the token store the service authenticates with.
func (s *Service) Tokens() auth.TokenStore { return s.tokens }

// Cache returns the query cache shared by the service's reads.
func (s *Service) Cache() *query.Cache { return s.cache }

// token fails fast before any network call when no token is stored.
func (s *Service) token() (string, error) {
	tok, ok := s.tokens.Token()
	if !ok {
		return "", api.ErrNotAuthenticated
	}
	return tok, nil
}

// Reads

// CurrentUser returns the signed-in user, cached under auth/me.
func (s *Service) CurrentUser(ctx context.Context) (*api.User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.cache, keyMe, func(ctx context.Context) (*api.User, error) {
		return s.client.CurrentUser(ctx, tok)
	})
}

// Items reads one window of items.
func (s *Service) Items(ctx context.Context, w pagination.Window) (*api.Page[api.Item], error) {
	return s.listItems(ctx, w.Skip(), w.Limit())
}

func (s *Service) listItems(ctx context.Context, skip, limit int) (*api.Page[api.Item], error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.cache, itemsKey(skip, limit), func(ctx context.Context) (*api.Page[api.Item], error) {
		return s.client.ListItems(ctx, tok, skip, limit)
	})
}

// Users reads one window of users. Non-superusers get a 403 from the backend.
func (s *Service) Users(ctx context.Context, w pagination.Window) (*api.Page[api.User], error) {
	return s.listUsers(ctx, w.Skip(), w.Limit())
}

func (s *Service) listUsers(ctx context.Context, skip, limit int) (*api.Page[api.User], error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	return query.Fetch(ctx, s.cache, usersKey(skip, limit), func(ctx context.Context) (*api.Page[api.User], error) {
		return s.client.ListUsers(ctx, tok, skip, limit)
	})
}

// ItemCount probes the collection size with a one-record page.
func (s *Service) ItemCount(ctx context.Context) (int, error) {
	page, err := s.listItems(ctx, 0, 1)
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}

// UserCount probes the user total the same way as ItemCount.
func (s *Service) UserCount(ctx context.Context) (int, error) {
	page, err := s.listUsers(ctx, 0, 1)
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}

// Health reports whether the backend answers its health-check. It needs no
// token.
func (s *Service) Health(ctx context.Context) (bool, error) {
	return query.Fetch(ctx, s.cache, query.NewKey(ResourceHealth), s.client.HealthCheck)
}

// Writes. A failed write leaves the cache untouched.

// CreateItem adds an item and invalidates every cached items page.
func (s *Service) CreateItem(ctx context.Context, in api.ItemCreateInput) (*api.Item, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	item, err := s.client.CreateItem(ctx, tok, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceItems))
	return item, nil
}

// UpdateItem patches an item and invalidates every cached items page.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, in api.ItemUpdateInput) (*api.Item, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	item, err := s.client.UpdateItem(ctx, tok, id, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceItems))
	return item, nil
}

// DeleteItem removes an item and invalidates every cached items page.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID) (*api.Message, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	msg, err := s.client.DeleteItem(ctx, tok, id)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceItems))
	return msg, nil
}

// CreateUser adds a user and invalidates every cached users page.
func (s *Service) CreateUser(ctx context.Context, in api.UserCreateInput) (*api.User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	u, err := s.client.CreateUser(ctx, tok, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceUsers))
	return u, nil
}

// UpdateUser patches a user and invalidates every cached users page.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in api.UserUpdateInput) (*api.User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	u, err := s.client.UpdateUser(ctx, tok, id, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceUsers))
	return u, nil
}

// DeleteUser removes a user and invalidates every cached users page.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) (*api.Message, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	msg, err := s.client.DeleteUser(ctx, tok, id)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceUsers))
	return msg, nil
}

// UpdateMe patches the signed-in user's profile and drops auth/me.
func (s *Service) UpdateMe(ctx context.Context, in api.UpdateMeInput) (*api.User, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	u, err := s.client.UpdateMe(ctx, tok, in)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(query.NewKey(ResourceAuth))
	return u, nil
}

// ChangePassword invalidates nothing: no cached read depends on it.
func (s *Service) ChangePassword(ctx context.Context, in api.ChangePasswordInput) (*api.Message, error) {
	tok, err := s.token()
	if err != nil {
		return nil, err
	}
	return s.client.ChangePassword(ctx, tok, in)
}

// Session

// Login exchanges credentials for a token, stores it and seeds the current
// user. The returned user is nil when that follow-up fetch failed; the login
// itself still succeeded.
func (s *Service) Login(ctx context.Context, username, password string) (*api.User, error) {
	tok, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.SetToken(tok.AccessToken); err != nil {
		return nil, err
	}
	u, err := s.client.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		log.Printf("[WARN] login succeeded but loading the current user failed: %v", err)
		s.cache.Invalidate(query.NewKey(ResourceAuth))
		return nil, nil
	}
	s.cache.SetData(keyMe, u)
	return u, nil
}

// Logout clears the token and every cached result. Purely local.
func (s *Service) Logout() error {
	err := s.tokens.Clear()
	s.cache.Reset()
	return err
}
