// Package credstore persists the console's access token and operator profile
// and validates whatever it reads back. A malformed record is treated as
// absent and both entries are purged, never returned half-valid.
package credstore

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// User is the operator profile as persisted alongside the access token and
// as decoded from backend responses.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

type userAlias User

type userWire struct {
	userAlias
	ID json.RawMessage `json:"id"`
}

// UnmarshalJSON accepts both numeric and string user IDs; the backend sends
// numeric IDs, the console works with strings.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = User(w.userAlias)
	if len(w.ID) > 0 {
		var s string
		if err := json.Unmarshal(w.ID, &s); err == nil {
			u.ID = s
		} else {
			var n json.Number
			if err := json.Unmarshal(w.ID, &n); err != nil {
				return errors.New("user id must be a string or a number")
			}
			u.ID = n.String()
		}
	}
	return nil
}

// Normalize strips the backend's "ROLE_" prefix from role names and replaces
// nil sets with empty ones so downstream checks never see nil.
func (u *User) Normalize() {
	for i, r := range u.Roles {
		u.Roles[i] = strings.TrimPrefix(r, "ROLE_")
	}
	if u.Roles == nil {
		u.Roles = []string{}
	}
	if u.Permissions == nil {
		u.Permissions = []string{}
	}
}

// Validate performs the structural checks applied to every profile read back
// from storage or decoded from a backend response.
func (u *User) Validate() error {
	if u == nil {
		return errors.New("user profile missing")
	}
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id missing")
	}
	if _, err := strconv.Atoi(u.ID); err != nil && strings.TrimSpace(u.ID) != u.ID {
		return errors.New("user id malformed")
	}
	if len(u.Username) < 3 || len(u.Username) > 50 {
		return errors.New("username length out of range")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email malformed")
	}
	if u.Roles == nil {
		return errors.New("roles missing")
	}
	return nil
}

// Clone returns a deep copy so callers can hand the profile out without
// sharing slices with the store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]string(nil), u.Roles...)
	out.Permissions = append([]string(nil), u.Permissions...)
	return &out
}
