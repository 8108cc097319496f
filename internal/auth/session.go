package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"gitea.jw6.us/james/dashboard/internal/config"
	"gitea.jw6.us/james/dashboard/internal/secrets"
	"gitea.jw6.us/james/dashboard/internal/store"
)

const sessionCookieName = "dashboard_session"

// touchInterval limits how often a postgres session's expiry is slid forward.
const touchInterval = time.Minute

type cookiePayload struct {
	SID   string `json:"sid"`
	Token string `json:"token,omitempty"`
	Exp   int64  `json:"exp"`
}

// SessionManager issues and reads the browser session cookie. With the
// cookie backend the bearer token travels sealed inside the cookie; with the
// postgres backend the cookie only carries the session id.
type SessionManager struct {
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
	maxAge     time.Duration
	records    store.SessionRepository
	now        func() time.Time
	newID      func() string
}

// NewSessionManager builds a manager for cfg.Session.Backend. records is
// required for the postgres backend and ignored otherwise.
func NewSessionManager(cfg *config.Config, records store.SessionRepository) (*SessionManager, error) {
	hashKey, err := secrets.DeriveKey(cfg.Session.Secret, "session cookie hash", 64)
	if err != nil {
		return nil, err
	}
	blockKey, err := secrets.DeriveKey(cfg.Session.Secret, "session cookie block", 32)
	if err != nil {
		return nil, err
	}

	maxAge := cfg.Session.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(maxAge.Seconds()))
	sc.SetSerializer(securecookie.JSONEncoder{})

	m := &SessionManager{
		cookieName: sessionCookieName,
		codec:      sc,
		secure:     cfg.SecureCookies(),
		maxAge:     maxAge,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if cfg.Session.Backend == config.SessionBackendPostgres {
		if records == nil {
			return nil, errors.New("postgres session backend requires a session repository")
		}
		m.records = records
	}
	return m, nil
}

// Bind returns the token store for the browser behind r. Writes go to w.
func (m *SessionManager) Bind(w http.ResponseWriter, r *http.Request) *BrowserSession {
	return &BrowserSession{m: m, w: w, r: r}
}

func (m *SessionManager) issue(w http.ResponseWriter, p cookiePayload) error {
	encoded, err := m.codec.Encode(m.cookieName, p)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Unix(p.Exp, 0),
		MaxAge:   int(time.Until(time.Unix(p.Exp, 0)).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *SessionManager) expire(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionManager) decode(r *http.Request) (cookiePayload, bool) {
	var p cookiePayload
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return p, false
	}
	if err := m.codec.Decode(m.cookieName, c.Value, &p); err != nil {
		return p, false
	}
	if p.SID == "" || time.Unix(p.Exp, 0).Before(m.now()) {
		return p, false
	}
	return p, true
}

// BrowserSession is the TokenStore of one browser. The cookie is read once
// per request.
type BrowserSession struct {
	m *SessionManager
	w http.ResponseWriter
	r *http.Request

	mu     sync.Mutex
	loaded bool
	sid    string
	token  string
}

func (s *BrowserSession) ctx() context.Context {
	return s.r.Context()
}

func (s *BrowserSession) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	p, ok := s.m.decode(s.r)
	if !ok {
		return
	}
	if s.m.records == nil {
		s.sid, s.token = p.SID, p.Token
		return
	}

	rec, err := s.m.records.Get(s.ctx(), p.SID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[ERROR] load session: %v", err)
		}
		return
	}
	s.sid, s.token = rec.ID, rec.Token

	if s.m.now().Sub(rec.LastSeenAt) > touchInterval {
		exp := s.m.now().Add(s.m.maxAge)
		if err := s.m.records.Touch(s.ctx(), rec.ID, exp); err != nil {
			log.Printf("[WARN] touch session: %v", err)
			return
		}
		if err := s.m.issue(s.w, cookiePayload{SID: rec.ID, Exp: exp.Unix()}); err != nil {
			log.Printf("[WARN] refresh session cookie: %v", err)
		}
	}
}

// ID is the opaque session id, empty when the browser holds no session.
func (s *BrowserSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.sid
}

func (s *BrowserSession) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.token, s.token != ""
}

// SetToken starts a fresh session id holding token.
func (s *BrowserSession) SetToken(token string) error {
	token = stripBearer(token)
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	previous := s.sid
	sid := s.m.newID()
	exp := s.m.now().Add(s.m.maxAge)
	p := cookiePayload{SID: sid, Exp: exp.Unix()}

	if s.m.records != nil {
		if err := s.m.records.Create(s.ctx(), store.Session{ID: sid, Token: token, ExpiresAt: exp}); err != nil {
			return err
		}
		if previous != "" {
			if err := s.m.records.Delete(s.ctx(), previous); err != nil {
				log.Printf("[WARN] drop previous session: %v", err)
			}
		}
	} else {
		p.Token = token
	}

	if err := s.m.issue(s.w, p); err != nil {
		return err
	}
	s.sid, s.token = sid, token
	return nil
}

// Clear drops the stored token and expires the cookie.
func (s *BrowserSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	var err error
	if s.m.records != nil && s.sid != "" {
		err = s.m.records.Delete(s.ctx(), s.sid)
	}
	s.m.expire(s.w)
	s.sid, s.token = "", ""
	return err
}
