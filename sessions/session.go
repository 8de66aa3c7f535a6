package sessions

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/redact"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrIncompleteSession = errors.New("incomplete session")
)

// Session is an authenticated identity returned by the identity provider.
// A Session is either complete (UserID and AccessToken set) or absent (nil);
// callers outside the store only ever hold copies.
type Session struct {
	UserID      string    `json:"user_id"`              // Stable identifier of the authenticated user (token "sub")
	Email       string    `json:"email,omitempty"`      // Email the user signed in with, when the provider reports it
	AccessToken string    `json:"access_token"`         // Bearer credential, secret, never logged
	TokenType   string    `json:"token_type,omitempty"` // Usually "Bearer"
	Scopes      []string  `json:"scopes,omitempty"`     // Granted scopes
	IssuedAt    time.Time `json:"issued_at"`            // When the provider issued the credential
	ExpiresAt   time.Time `json:"expires_at"`           // Zero when the provider did not report an expiry
}

// Validate reports whether the session is complete.
func (s *Session) Validate() error {
	if s == nil {
		return errors.Wrap(ErrIncompleteSession, "session is nil")
	}
	if s.UserID == "" {
		return errors.Wrap(ErrIncompleteSession, "user id is empty")
	}
	if s.AccessToken == "" {
		return errors.Wrap(ErrIncompleteSession, "access token is empty")
	}
	return nil
}

// IsExpired reports whether the credential is stale at now.
func (s *Session) IsExpired(now time.Time) bool {
	return s.ExpiresWithin(now, 0)
}

// ExpiresWithin reports whether the credential expires before now+leeway.
// Sessions without an expiry never expire.
func (s *Session) ExpiresWithin(now time.Time, leeway time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// Clone returns a deep copy, or nil for a nil session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Scopes != nil {
		c.Scopes = append([]string(nil), s.Scopes...)
	}
	return &c
}

func (s *Session) String() string {
	if s == nil {
		return "<no session>"
	}
	return fmt.Sprintf("Session{UserID: %s, ExpiresAt: %s, AccessToken: %s}", s.UserID, s.ExpiresAt.Format(time.RFC3339), redact.Token(s.AccessToken))
}

// MarshalZerologObject lets the session be logged without its credential.
func (s *Session) MarshalZerologObject(e *zerolog.Event) {
	if s == nil {
		return
	}
	e.Str("user_id", s.UserID)
	if !s.ExpiresAt.IsZero() {
		e.Time("expires_at", s.ExpiresAt)
	}
	if len(s.Scopes) > 0 {
		e.Strs("scopes", s.Scopes)
	}
}
