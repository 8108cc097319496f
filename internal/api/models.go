package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Page is the list envelope returned by collection endpoints. Count is the
// size of the whole collection, independent of skip/limit.
type Page[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

// User is the public view of an account.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   Timestamp `json:"created_at"`
}

// DisplayName returns the full name, or the email when no name is set.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

// Item is owned by exactly one user.
type Item struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   Timestamp `json:"created_at"`
}

type ItemCreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// ItemUpdateInput is a partial update; unset fields are left unchanged.
type ItemUpdateInput struct {
	Title       Opt[string]
	Description Opt[string]
}

func (in ItemUpdateInput) MarshalJSON() ([]byte, error) {
	p := partial{}
	p.add("title", in.Title)
	p.add("description", in.Description)
	return json.Marshal(map[string]any(p))
}

type UserCreateInput struct {
	Email       string  `json:"email"`
	FullName    *string `json:"full_name"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
	Password    string  `json:"password"`
}

// normalized fills the active/admin defaults (true/false).
func (in UserCreateInput) normalized() UserCreateInput {
	if in.IsActive == nil {
		v := true
		in.IsActive = &v
	}
	if in.IsSuperuser == nil {
		v := false
		in.IsSuperuser = &v
	}
	return in
}

// UserUpdateInput is a partial update. An unset Password means "unchanged".
type UserUpdateInput struct {
	Email       Opt[string]
	FullName    Opt[string]
	IsActive    Opt[bool]
	IsSuperuser Opt[bool]
	Password    Opt[string]
}

func (in UserUpdateInput) MarshalJSON() ([]byte, error) {
	p := partial{}
	p.add("email", in.Email)
	p.add("full_name", in.FullName)
	p.add("is_active", in.IsActive)
	p.add("is_superuser", in.IsSuperuser)
	p.add("password", in.Password)
	return json.Marshal(map[string]any(p))
}

// UpdateMeInput is a partial profile update.
type UpdateMeInput struct {
	Email    Opt[string]
	FullName Opt[string]
}

func (in UpdateMeInput) MarshalJSON() ([]byte, error) {
	p := partial{}
	p.add("email", in.Email)
	p.add("full_name", in.FullName)
	return json.Marshal(map[string]any(p))
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Opt is one field of a partial update. Unset fields are omitted from the
// payload; a set field with a nil Value is sent as JSON null.
type Opt[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set field holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{Set: true, Value: &v} }

// Null returns a set field that clears the value.
func Null[T any]() Opt[T] { return Opt[T]{Set: true} }

// OptString maps an empty string to null and anything else to a value.
func OptString(s string) Opt[string] {
	if s == "" {
		return Null[string]()
	}
	return Some(s)
}

type partialField interface {
	payload() (any, bool)
}

func (o Opt[T]) payload() (any, bool) {
	if !o.Set {
		return nil, false
	}
	if o.Value == nil {
		return nil, true
	}
	return *o.Value, true
}

type partial map[string]any

func (p partial) add(name string, f partialField) {
	if v, ok := f.payload(); ok {
		p[name] = v
	}
}

// Message is the acknowledgement body of delete and password endpoints.
type Message struct {
	Message string `json:"message"`
}

// Timestamp accepts RFC 3339 values as well as the zone-less ISO form some
// backends emit for naive datetimes (interpreted as UTC).
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
