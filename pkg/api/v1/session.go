package v1

import (
	"encoding/json"
	"time"
)

// Session is the persisted authentication state of one client.
// The JSON field names double as the storage keys.
type Session struct {
	AccessToken  string      `json:"access"`
	RefreshToken string      `json:"refresh"`
	AccessExp    int64       `json:"access_exp"` // epoch seconds
	User         UserProfile `json:"user,omitempty"`
}

// Complete reports whether the record carries everything needed to resume.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != "" && s.AccessExp > 0
}

func (s *Session) ExpiresAt() time.Time {
	return time.Unix(s.AccessExp, 0)
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.User = s.User.Clone()
	return &cp
}

// UserProfile is the opaque "who am I" document returned by the backend.
type UserProfile map[string]any

func (u UserProfile) String(key string) string {
	if u == nil {
		return ""
	}
	if v, ok := u[key].(string); ok {
		return v
	}
	return ""
}

func (u UserProfile) Role() string   { return u.String("role") }
func (u UserProfile) Email() string  { return u.String("email") }
func (u UserProfile) Tenant() string { return u.String("tenant") }

func (u UserProfile) Clone() UserProfile {
	if u == nil {
		return nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil
	}
	var cp UserProfile
	if err := json.Unmarshal(b, &cp); err != nil {
		return nil
	}
	return cp
}

// LoginRequest is the body of POST /token/.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is the response of POST /token/.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest is the body of POST /token/refresh/.
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RefreshResponse is the response of POST /token/refresh/. Refresh is only set by
// backends that rotate refresh tokens.
type RefreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
