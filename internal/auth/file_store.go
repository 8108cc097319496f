package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	credFileName = "credentials.json"
	// TokenEnvVar overrides the stored token for the terminal client.
	TokenEnvVar = "DASHBOARD_TOKEN"
)

// Token sources reported by FileTokenStore.Source.
const (
	SourceNone = ""
	SourceEnv  = "env"
	SourceFile = "file"
)

type credentials struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// FileTokenStore persists the token for the terminal client in a 0600 file
// under the user's home directory.
type FileTokenStore struct {
	dir    string
	getenv func(string) string
}

// NewFileTokenStore stores credentials in dir.
func NewFileTokenStore(dir string) *FileTokenStore {
	return &FileTokenStore{dir: dir, getenv: os.Getenv}
}

// DefaultFileTokenStore uses ~/.dashboard.
func DefaultFileTokenStore() (*FileTokenStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return NewFileTokenStore(filepath.Join(home, ".dashboard")), nil
}

func (f *FileTokenStore) path() string {
	return filepath.Join(f.dir, credFileName)
}

// Source reports where the current token comes from.
func (f *FileTokenStore) Source() string {
	if strings.TrimSpace(f.getenv(TokenEnvVar)) != "" {
		return SourceEnv
	}
	if _, ok := f.read(); ok {
		return SourceFile
	}
	return SourceNone
}

func (f *FileTokenStore) Token() (string, bool) {
	if env := strings.TrimSpace(f.getenv(TokenEnvVar)); env != "" {
		return stripBearer(env), true
	}
	return f.read()
}

func (f *FileTokenStore) read() (string, bool) {
	b, err := os.ReadFile(f.path())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[WARN] read credentials: %v", err)
		}
		return "", false
	}
	var c credentials
	if err := json.Unmarshal(b, &c); err != nil {
		log.Printf("[WARN] parse credentials: %v", err)
		return "", false
	}
	token := stripBearer(c.Token)
	return token, token != ""
}

func (f *FileTokenStore) SetToken(token string) error {
	token = stripBearer(token)
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(credentials{Token: token, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	// Write then rename so readers never see a partial file.
	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, f.path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Clear removes the stored file. A token supplied through the environment
// stays in effect.
func (f *FileTokenStore) Clear() error {
	if err := os.Remove(f.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}
