package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gitea.jw6.us/james/dashboard/internal/api"
	"gitea.jw6.us/james/dashboard/internal/auth"
	"gitea.jw6.us/james/dashboard/internal/config"
	"gitea.jw6.us/james/dashboard/internal/dashboard"
	httpserver "gitea.jw6.us/james/dashboard/internal/http"
	"gitea.jw6.us/james/dashboard/internal/query"
	"gitea.jw6.us/james/dashboard/internal/secrets"
	"gitea.jw6.us/james/dashboard/internal/store"
)

// sessionCleanupInterval is how often expired postgres sessions are purged.
const sessionCleanupInterval = 15 * time.Minute

func main() {
	log.Println("Starting dashboard server...")
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []api.Option
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	client, err := api.New(cfg.API.BaseURL, opts...)
	if err != nil {
		log.Fatalf("failed to create api client: %v", err)
	}

	var (
		stor    *store.Store
		records store.SessionRepository
	)
	if cfg.Session.Backend == config.SessionBackendPostgres {
		sealer, err := secrets.NewSealer(cfg.Session.Secret)
		if err != nil {
			log.Fatalf("failed to derive token sealing key: %v", err)
		}
		s, pool, err := store.Open(ctx, cfg.DB.DSN, sealer)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer pool.Close()
		stor, records = s, s.Sessions
		go purgeExpiredSessions(ctx, records)
	}

	sessionManager, err := auth.NewSessionManager(cfg, records)
	if err != nil {
		log.Fatalf("failed to initialize sessions: %v", err)
	}

	registry := dashboard.NewRegistry(client, query.Options{
		StaleTime: cfg.Query.StaleTime,
		Retries:   cfg.Query.Retries,
	}, cfg.Query.CacheIdle, 0)
	defer registry.Close()

	r, closeRouter := httpserver.NewRouter(cfg, httpserver.Deps{
		Auth:     auth.NewService(sessionManager),
		Registry: registry,
		Client:   client,
		Store:    stor,
	})
	defer closeRouter()

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (backend %s, sessions %s)", cfg.ListenAddr, cfg.API.BaseURL, cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func purgeExpiredSessions(ctx context.Context, records store.SessionRepository) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := records.DeleteExpired(ctx)
			if err != nil {
				log.Printf("[WARN] purge expired sessions: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[INFO] purged %d expired sessions", n)
			}
		}
	}
}
