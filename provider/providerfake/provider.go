// Package providerfake is an in-process identity provider for tests and local
// development. It can be told to fail or to hold calls open so callers can
// observe in-flight behaviour.
package providerfake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/provider"
	"github.com/jrsteele09/go-auth-session/sessions"
)

// Op identifies a provider call.
type Op string

const (
	OpSignIn     Op = "sign_in"
	OpSignOut    Op = "sign_out"
	OpGetSession Op = "get_session"
	OpRefresh    Op = "refresh"
)

const defaultSessionTTL = time.Hour

var (
	_ provider.Provider  = (*Provider)(nil)
	_ provider.Refresher = (*Provider)(nil)
)

// Provider is a fake identity provider with a single signed-in slot,
// like a device that holds one session.
type Provider struct {
	users      *directory
	nowTime    func() time.Time
	sessionTTL time.Duration

	lock     sync.Mutex
	current  *sessions.Session
	failNext map[Op]error
	calls    map[Op]int
	gate     chan struct{}
	entered  chan Op
}

// Option defines a function type to modify the Provider instance.
type Option func(*Provider)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithSessionTTL sets the lifetime of issued sessions. Zero issues sessions without expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.sessionTTL = ttl
	}
}

func New(options ...Option) *Provider {
	p := &Provider{
		users:      newDirectory(),
		nowTime:    time.Now,
		sessionTTL: defaultSessionTTL,
		failNext:   make(map[Op]error),
		calls:      make(map[Op]int),
		entered:    make(chan Op, 64),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// AddUser registers an account and returns its user id.
func (p *Provider) AddUser(email, password string) (string, error) {
	return p.users.add(email, password)
}

// SetSession replaces the provider-side session, as if one had been
// established in a previous run. nil clears it.
func (p *Provider) SetSession(session *sessions.Session) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.current = session.Clone()
}

// Current returns the provider-side session.
func (p *Provider) Current() *sessions.Session {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.current.Clone()
}

// FailNext makes the next call of op return err.
func (p *Provider) FailNext(op Op, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.failNext[op] = err
}

// Calls returns how many times op reached the provider.
func (p *Provider) Calls(op Op) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.calls[op]
}

// Block holds every subsequent call until the returned release function is
// called or the call's context ends. Release is safe to call more than once.
func (p *Provider) Block() (release func()) {
	gate := make(chan struct{})
	p.lock.Lock()
	p.gate = gate
	p.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lock.Lock()
			if p.gate == gate {
				p.gate = nil
			}
			p.lock.Unlock()
			close(gate)
		})
	}
}

// Entered receives the op of every call as it reaches the provider.
func (p *Provider) Entered() <-chan Op {
	return p.entered
}

func (p *Provider) enter(ctx context.Context, op Op) error {
	p.lock.Lock()
	p.calls[op]++
	gate := p.gate
	p.lock.Unlock()

	select {
	case p.entered <- op:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if err, ok := p.failNext[op]; ok {
		delete(p.failNext, op)
		return err
	}
	return nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*sessions.Session, error) {
	if err := p.enter(ctx, OpSignIn); err != nil {
		return nil, err
	}

	a, ok := p.users.authenticate(email, password)
	if !ok {
		return nil, provider.ErrInvalidCredentials
	}

	session := p.issue(a.userID, a.email)
	p.lock.Lock()
	p.current = session
	p.lock.Unlock()
	return session.Clone(), nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.enter(ctx, OpSignOut); err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	p.current = nil
	return nil
}

func (p *Provider) GetSession(ctx context.Context) (*sessions.Session, error) {
	if err := p.enter(ctx, OpGetSession); err != nil {
		return nil, err
	}
	return p.Current(), nil
}

func (p *Provider) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	if err := p.enter(ctx, OpRefresh); err != nil {
		return nil, err
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.current == nil {
		return nil, provider.ErrInvalidCredentials
	}
	p.current = p.issue(p.current.UserID, p.current.Email)
	return p.current.Clone(), nil
}

func (p *Provider) issue(userID, email string) *sessions.Session {
	now := p.nowTime()
	session := &sessions.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: uuid.NewString(),
		TokenType:   "Bearer",
		Scopes:      []string{"openid", "email"},
		IssuedAt:    now,
	}
	if p.sessionTTL > 0 {
		session.ExpiresAt = now.Add(p.sessionTTL)
	}
	return session
}
