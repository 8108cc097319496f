package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/config"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	"gitea.jw6.us/james/dashboard/internal/http/csrf"
	httperrors "gitea.jw6.us/james/dashboard/internal/http/errors"
	"gitea.jw6.us/james/dashboard/internal/http/ratelimit"
	"gitea.jw6.us/james/dashboard/internal/metrics"
	"gitea.jw6.us/james/dashboard/internal/store"
	"gitea.jw6.us/james/dashboard/internal/ui"
)

// Deps are the collaborators the router wires together. Store is nil with
// the cookie session backend.
type Deps struct {
	Auth     *auth.Service
	Registry *dashboard.Registry
	Client   *api.Client
	Store    *store.Store
}

// NewRouter wires all HTTP routes. The returned stop func releases the rate
// limiter's sweeper.
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, func()) {
	r := chi.NewRouter()

	// Login: 5 requests per second, burst of 10
	loginRateLimiter := ratelimit.NewIPRateLimiter(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(overrideMethod)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if ok, err := deps.Client.HealthCheck(ctx); err != nil || !ok {
			if err == nil {
				err = errors.New("health-check returned false")
			}
			httperrors.Unavailable(w, r, err, "backend")
			return
		}
		if deps.Store != nil {
			if err := deps.Store.HealthCheck(ctx); err != nil {
				httperrors.Unavailable(w, r, err, "database")
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	uiHandler := ui.NewHandler(cfg, deps.Registry)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RedirectIfAuthenticated)
		r.Use(csrf.Middleware(cfg))
		r.Get("/login", uiHandler.LoginPage)
		r.With(loginRateLimiter.Middleware()).Post("/login", uiHandler.Login)
	})

	r.With(deps.Auth.LoadSession, csrf.Middleware(cfg)).Post("/logout", uiHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireSession)
		r.Use(csrf.Middleware(cfg))
		r.Get("/", uiHandler.Home)

		r.Get("/items", uiHandler.Items)
		r.Post("/items", uiHandler.CreateItem)
		r.Put("/items/{id}", uiHandler.UpdateItem)
		r.Delete("/items/{id}", uiHandler.DeleteItem)
		r.Post("/items/{id}/delete", uiHandler.DeleteItem) // HTML form fallback

		r.Get("/users", uiHandler.Users)
		r.Post("/users", uiHandler.CreateUser)
		r.Put("/users/{id}", uiHandler.UpdateUser)
		r.Delete("/users/{id}", uiHandler.DeleteUser)
		r.Post("/users/{id}/delete", uiHandler.DeleteUser) // HTML form fallback

		r.Get("/settings", uiHandler.Settings)
		r.Post("/settings/profile", uiHandler.UpdateProfile)
		r.Post("/settings/password", uiHandler.ChangePassword)
	})

	return r, loginRateLimiter.Close
}

func overrideMethod(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method
		if r.Method == http.MethodPost {
			if m := strings.TrimSpace(r.PostFormValue("_method")); m != "" {
				method = m
			} else if m := strings.TrimSpace(r.URL.Query().Get("_method")); m != "" {
				method = m
			}
		}
		switch strings.ToUpper(method) {
		case http.MethodPut, http.MethodDelete:
			r.Method = strings.ToUpper(method)
		}
		next.ServeHTTP(w, r)
	})
}
