// Package navigation moves the user between screens in response to
// authentication state, so commands never navigate themselves.
package navigation

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Router replaces the current screen.
type Router interface {
	Replace(route string) error
}

// RouterFunc adapts a function to a Router.
type RouterFunc func(route string) error

func (f RouterFunc) Replace(route string) error {
	return f(route)
}

// Routes are the destinations for each authentication status.
type Routes struct {
	Authenticated   string
	Unauthenticated string
}

// Guard navigates when a settled state changes authentication status.
// The first settled state it sees always navigates. Loading states and
// failures that leave the status unchanged never do.
type Guard struct {
	router Router
	routes Routes
	logger zerolog.Logger

	lock          sync.Mutex
	seen          bool
	authenticated bool
}

// GuardOption defines a function type to modify the Guard instance.
type GuardOption func(*Guard)

// WithLogger sets the logger used to report router failures.
func WithLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(router Router, routes Routes, options ...GuardOption) (*Guard, error) {
	if router == nil {
		return nil, errors.New("[NewGuard] router is required")
	}
	if routes.Authenticated == "" || routes.Unauthenticated == "" {
		return nil, errors.New("[NewGuard] both routes are required")
	}

	g := &Guard{router: router, routes: routes, logger: zerolog.Nop()}
	for _, option := range options {
		option(g)
	}
	return g, nil
}

// Attach subscribes the guard to st and applies the current state at once,
// ahead of any concurrent mutation.
func (g *Guard) Attach(st *store.Store) (detach func()) {
	return st.SubscribeCurrent(g.OnState)
}

// OnState is a store.Listener.
func (g *Guard) OnState(s store.State) {
	if s.IsLoading {
		return
	}

	g.lock.Lock()
	authenticated := s.Authenticated()
	if g.seen && g.authenticated == authenticated {
		g.lock.Unlock()
		return
	}
	g.seen = true
	g.authenticated = authenticated
	g.lock.Unlock()

	route := g.routes.Unauthenticated
	if authenticated {
		route = g.routes.Authenticated
	}
	if err := g.router.Replace(route); err != nil {
		g.logger.Warn().Err(err).Str("route", route).Msg("navigation failed")
	}
}
