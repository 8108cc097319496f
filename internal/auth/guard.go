package auth

import (
	"net/http"
)

// GuardState is the authentication state seen by the route guard. It starts
// Unknown and settles after the token store has been consulted once.
type GuardState int

const (
	GuardUnknown GuardState = iota
	GuardUnauthenticated
	GuardAuthenticated
)

func (g GuardState) String() string {
	switch g {
	case GuardUnauthenticated:
		return "unauthenticated"
	case GuardAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ResolveGuard consults storage only; token validity is left to the backend.
func ResolveGuard(ts TokenStore) GuardState {
	if ts == nil {
		return GuardUnauthenticated
	}
	if _, ok := ts.Token(); ok {
		return GuardAuthenticated
	}
	return GuardUnauthenticated
}

// Service guards routes using the browser session.
type Service struct {
	sessions  *SessionManager
	loginPath string
	homePath  string
}

// NewService wraps sessions with the page guards.
func NewService(sessions *SessionManager) *Service {
	return &Service{sessions: sessions, loginPath: "/login", homePath: "/"}
}

// Sessions exposes the session manager to handlers that bind it themselves.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// LoadSession binds the browser session into the request context without
// enforcing anything.
func (s *Service) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Bind(w, r)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireSession sends visitors without a stored token to the login page
// before any backend call is made.
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return s.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || ResolveGuard(sess) != GuardAuthenticated {
			http.Redirect(w, r, s.loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RedirectIfAuthenticated keeps signed-in visitors away from the login page.
func (s *Service) RedirectIfAuthenticated(next http.Handler) http.Handler {
	return s.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if ok && ResolveGuard(sess) == GuardAuthenticated {
			http.Redirect(w, r, s.homePath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
