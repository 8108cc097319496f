package store

import "time"

// Session is a browser session holding the backend bearer token. Token is
// plaintext in memory and sealed at rest.
type Session struct {
	ID         string
	Token      string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}
