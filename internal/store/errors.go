package store

import "errors"

// ErrNotFound indicates a missing or expired record.
var ErrNotFound = errors.New("record not found")
