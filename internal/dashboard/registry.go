package dashboard

import (
	"context"
	"time"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/keyed"
	"gitea.jw6.us/james/dashboard/internal/query"
)

// SessionStore is a token store tied to a browser session id.
type SessionStore interface {
	Token() (string, bool)
	SetToken(token string) error
	Clear() error
	ID() string
}

// Registry hands out one cache per browser session so cached results never
// cross sessions.
type Registry struct {
	client *api.Client
	opts   query.Options
	caches *keyed.Registry[*query.Cache]
}

// NewRegistry keeps caches for sessions seen within idle; older ones are
// swept.
func NewRegistry(client *api.Client, opts query.Options, idle time.Duration, maxSessions int) *Registry {
	return &Registry{
		client: client,
		opts:   opts,
		caches: keyed.New(func(string) *query.Cache { return query.New(opts) }, idle, maxSessions),
	}
}

// Service binds sess to its session cache. A browser without a session gets
// a throwaway cache.
func (r *Registry) Service(sess SessionStore) *Service {
	id := sess.ID()
	if id == "" {
		return NewService(r.client, sess, query.New(r.opts))
	}
	return NewService(r.client, sess, r.caches.Get(id))
}

// Login signs sess in and files the seeded cache under the new session id.
func (r *Registry) Login(ctx context.Context, sess SessionStore, username, password string) (*api.User, error) {
	previous := sess.ID()
	svc := NewService(r.client, sess, query.New(r.opts))
	u, err := svc.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if previous != "" && previous != sess.ID() {
		r.caches.Delete(previous)
	}
	if id := sess.ID(); id != "" {
		r.caches.Put(id, svc.Cache())
	}
	return u, nil
}

// Logout clears sess and forgets its cache.
func (r *Registry) Logout(sess SessionStore) error {
	id := sess.ID()
	err := r.Service(sess).Logout()
	if id != "" {
		r.caches.Delete(id)
	}
	return err
}

// Len reports how many session caches are live.
func (r *Registry) Len() int { return r.caches.Len() }

// Close stops the idle sweep.
func (r *Registry) Close() { r.caches.Close() }
