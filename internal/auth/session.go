package auth

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in, run 'apm login' first")
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// Session is what the login endpoint hands back and what we persist between
// runs (config file for the CLI, cookies for the web dashboard).
type Session struct {
	Token  string `json:"token" mapstructure:"token"`
	Name   string `json:"name" mapstructure:"name"`
	Role   string `json:"role" mapstructure:"role"`
	Email  string `json:"email" mapstructure:"email"`
	Expiry int64  `json:"expiry" mapstructure:"expiry"` // epoch ms, 0 = no expiry
}

// Check reports why a session cannot be used at now, or nil if it can.
func (s Session) Check(now time.Time) error {
	if s.Token == "" {
		return ErrNotLoggedIn
	}
	if s.Expiry > 0 && now.UnixMilli() > s.Expiry {
		return ErrSessionExpired
	}
	return nil
}

func (s Session) Valid(now time.Time) bool {
	return s.Check(now) == nil
}

func (s Session) Expired(now time.Time) bool {
	return errors.Is(s.Check(now), ErrSessionExpired)
}

// ExpiresAt is the zero time when the session carries no expiry.
func (s Session) ExpiresAt() time.Time {
	if s.Expiry <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.Expiry)
}

// Owner keys per-user local state such as recent devices.
func (s Session) Owner() string {
	if s.Email != "" {
		return s.Email
	}
	return s.Name
}

// ParseExpiry reads the cookie form of the expiry. Garbage is treated as no
// expiry, matching Number("") semantics on the dashboard.
func ParseExpiry(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}
