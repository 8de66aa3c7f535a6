package provider

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks github.com/jrsteele09/go-auth-session/provider Provider,Refresher

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-auth-session/sessions"
)

// Errors a Provider reports for expected outcomes. Anything else a provider
// returns is treated as a transport or provider failure.
var (
	ErrInvalidCredentials = errors.New("credentials rejected by provider")
	ErrRateLimited        = errors.New("provider rate limit exceeded")
	ErrUnavailable        = errors.New("provider unavailable")
)

// Provider is the remote identity service. Implementations return identity
// facts only; they never touch the session store.
type Provider interface {
	// SignInWithPassword verifies the credentials and returns a complete session.
	SignInWithPassword(ctx context.Context, email, password string) (*sessions.Session, error)

	// SignOut ends the provider-side session, if any.
	SignOut(ctx context.Context) error

	// GetSession returns a previously established session, or nil, nil when there is none.
	GetSession(ctx context.Context) (*sessions.Session, error)
}

// Refresher is implemented by providers that can renew a session without
// asking for the password again.
type Refresher interface {
	RefreshSession(ctx context.Context) (*sessions.Session, error)
}
