package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session storage backends.
const (
	SessionBackendCookie   = "cookie"
	SessionBackendPostgres = "postgres"
)

type Config struct {
	ListenAddr string
	BaseURL    string
	AppName    string

	API struct {
		BaseURL string
		Timeout time.Duration
	}

	DB struct {
		DSN string
	}

	Session struct {
		Secret  string
		Backend string
		MaxAge  time.Duration
	}

	Query struct {
		StaleTime time.Duration
		Retries   int
		// CacheIdle is the registry sweep interval. A session cache untouched
		// for twice this long is dropped and rebuilt on the next request.
		CacheIdle time.Duration
	}

	LogoutOnUnauthorized bool
	PrometheusEnabled    bool
	TrustedProxies       []string
}

// LoadDotenv reads the first .env file found in the working directory or its
// parents. Existing environment variables win.
func LoadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads configuration from APP_* environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.AppName = strings.TrimSpace(getenvDefault("APP_NAME", "App"))
	if cfg.AppName == "" {
		cfg.AppName = "App"
	}

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_API_BASE_URL")), "/")
	cfg.API.Timeout = getenvDuration("APP_API_TIMEOUT", 0)

	cfg.Session.Secret = os.Getenv("APP_SESSION_SECRET")
	cfg.Session.Backend = strings.ToLower(getenvDefault("APP_SESSION_BACKEND", SessionBackendCookie))
	cfg.Session.MaxAge = getenvDuration("APP_SESSION_MAX_AGE", 7*24*time.Hour)

	cfg.Query.StaleTime = getenvDuration("APP_QUERY_STALE_TIME", 30*time.Second)
	cfg.Query.Retries = getenvInt("APP_QUERY_RETRIES", 0)
	cfg.Query.CacheIdle = getenvDuration("APP_QUERY_CACHE_IDLE", 15*time.Minute)

	cfg.LogoutOnUnauthorized = getenvBool("APP_LOGOUT_ON_UNAUTHORIZED", false)
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	cfg.DB.DSN = os.Getenv("APP_DB_DSN")
	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. The dashboard will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

// Validate reports the first fatal configuration problem.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("APP_API_BASE_URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("APP_API_BASE_URL must be an absolute URL (got %q)", c.API.BaseURL)
	}
	if c.Session.Secret == "" {
		return errors.New("APP_SESSION_SECRET is required")
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("APP_SESSION_SECRET must be at least 32 characters long (got %d)", len(c.Session.Secret))
	}
	switch c.Session.Backend {
	case SessionBackendCookie:
	case SessionBackendPostgres:
		if c.DB.DSN == "" {
			return errors.New("APP_DB_DSN is required for the postgres session backend (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
		}
	default:
		return fmt.Errorf("APP_SESSION_BACKEND must be %q or %q (got %q)", SessionBackendCookie, SessionBackendPostgres, c.Session.Backend)
	}
	if c.Query.Retries < 0 {
		return fmt.Errorf("APP_QUERY_RETRIES must not be negative (got %d)", c.Query.Retries)
	}
	if c.Query.CacheIdle < 0 {
		return fmt.Errorf("APP_QUERY_CACHE_IDLE must not be negative (got %s)", c.Query.CacheIdle)
	}
	return nil
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	if base, err := url.Parse(c.BaseURL); err == nil && base.Scheme != "https" {
		return false
	}
	return true
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
