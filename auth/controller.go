package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/internal/metrics"
	"github.com/jrsteele09/go-auth-session/internal/redact"
	"github.com/jrsteele09/go-auth-session/provider"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultCommandTimeout = 15 * time.Second
	defaultExpiryLeeway   = 30 * time.Second
)

// Controller runs authentication commands against a Provider and is the only
// writer of its Store.
//
// At most one command is in flight at a time. A command issued while another
// is pending fails immediately with ErrConcurrentRequest and leaves the store
// untouched. Input that fails validation never reaches the provider.
//
// Store listeners run on the command's goroutine and must not issue commands
// synchronously.
type Controller struct {
	store          *store.Store
	provider       provider.Provider
	nowTime        func() time.Time
	logger         zerolog.Logger
	metrics        metrics.Recorder
	commandTimeout time.Duration
	expiryLeeway   time.Duration

	mu        sync.Mutex
	pending   *Command
	recording bool // an input error is being written to the store
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records every settled command.
func WithMetrics(recorder metrics.Recorder) ControllerOption {
	return func(c *Controller) {
		c.metrics = recorder
	}
}

// WithCommandTimeout bounds each provider call. Zero disables the bound.
func WithCommandTimeout(timeout time.Duration) ControllerOption {
	return func(c *Controller) {
		c.commandTimeout = timeout
	}
}

// WithExpiryLeeway renews a restored session that expires within leeway when
// the provider can refresh. The session is kept until it has actually expired.
func WithExpiryLeeway(leeway time.Duration) ControllerOption {
	return func(c *Controller) {
		c.expiryLeeway = leeway
	}
}

// NewController creates a Controller that writes to st and authenticates through p.
func NewController(st *store.Store, p provider.Provider, options ...ControllerOption) (*Controller, error) {
	if st == nil {
		return nil, errors.New("[NewController] store is required")
	}
	if p == nil {
		return nil, errors.New("[NewController] provider is required")
	}

	c := &Controller{
		store:          st,
		provider:       p,
		nowTime:        time.Now,
		logger:         zerolog.Nop(),
		metrics:        metrics.Nop{},
		commandTimeout: defaultCommandTimeout,
		expiryLeeway:   defaultExpiryLeeway,
	}
	for _, option := range options {
		option(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	return c, nil
}

// Store returns the store this controller writes to.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Pending returns the command currently waiting on the provider, if any.
func (c *Controller) Pending() (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Command{}, false
	}
	return *c.pending, true
}

// SignInWithEmail authenticates with email and password. On success the
// session is stored; on failure the error is recorded in the store and
// returned, and any existing session is left as it was.
func (c *Controller) SignInWithEmail(ctx context.Context, email, password string) error {
	const op = "[Controller.SignInWithEmail]"

	email = strings.TrimSpace(email)
	if err := ValidateCredentials(email, password); err != nil {
		return c.invalid(CommandSignIn, op, ErrValidation, err)
	}

	cmd, err := c.begin(CommandSignIn, op)
	if err != nil {
		return err
	}
	defer c.end(cmd)

	c.logger.Debug().Str("command_id", cmd.ID).Str("email", redact.Email(email)).Msg("signing in")
	c.store.Update(store.WithLoading(true), store.WithError(nil))

	session, err := c.fetchSession(ctx, func(ctx context.Context) (*sessions.Session, error) {
		return c.provider.SignInWithPassword(ctx, email, password)
	})
	if err == nil && session == nil {
		err = errors.Wrap(provider.ErrUnavailable, "sign in returned no session")
	}
	if err != nil {
		err = normalize(op, err)
		c.store.Update(store.WithLoading(false), store.WithError(err))
		c.settled(cmd, err)
		return err
	}

	c.store.Update(store.WithSession(session), store.WithLoading(false), store.WithError(nil))
	c.settled(cmd, nil)
	return nil
}

// SignOut ends the session. The local session is cleared even when the
// provider call fails; the failure is still recorded and returned.
func (c *Controller) SignOut(ctx context.Context) error {
	const op = "[Controller.SignOut]"

	cmd, err := c.begin(CommandSignOut, op)
	if err != nil {
		return err
	}
	defer c.end(cmd)

	c.store.Update(store.WithLoading(true), store.WithError(nil))

	err = c.call(ctx, c.provider.SignOut)
	if errors.Is(err, provider.ErrInvalidCredentials) {
		// Already revoked or expired remotely.
		c.logger.Debug().Err(err).Str("command_id", cmd.ID).Msg("provider session already ended")
		err = nil
	}
	if err != nil {
		err = normalize(op, err)
	}

	c.store.Update(store.WithSession(nil), store.WithLoading(false), store.WithError(err))
	c.settled(cmd, err)
	return err
}

// RestoreSession asks the provider for a previously established session,
// typically once at start-up. A missing or expired session is not an error.
// A provider failure is recorded and returned; the session is left as it was.
func (c *Controller) RestoreSession(ctx context.Context) error {
	const op = "[Controller.RestoreSession]"

	cmd, err := c.begin(CommandRestore, op)
	if err != nil {
		return err
	}
	defer c.end(cmd)

	c.store.Update(store.WithLoading(true), store.WithError(nil))

	session, err := c.fetchSession(ctx, c.provider.GetSession)
	switch {
	case err != nil:
		err = normalize(op, err)
		c.store.Update(store.WithLoading(false), store.WithError(err))
		c.settled(cmd, err)
		return err
	case session == nil:
		c.logger.Debug().Str("command_id", cmd.ID).Msg("no session to restore")
	case session.IsExpired(c.nowTime()):
		c.logger.Debug().Str("command_id", cmd.ID).Object("session", session).Msg("restored session has expired")
		session = nil
	case session.ExpiresWithin(c.nowTime(), c.expiryLeeway):
		session = c.renew(ctx, cmd, session)
	}

	c.store.Update(store.WithSession(session), store.WithLoading(false), store.WithError(nil))
	c.settled(cmd, nil)
	return nil
}

// RefreshSession renews the current session through a provider that
// implements provider.Refresher. A rejected refresh signs the user out;
// any other failure keeps the current session.
func (c *Controller) RefreshSession(ctx context.Context) error {
	const op = "[Controller.RefreshSession]"

	refresher, ok := c.provider.(provider.Refresher)
	if !ok {
		return c.invalid(CommandRefresh, op, ErrUnsupported, fmt.Errorf("%T cannot refresh sessions", c.provider))
	}
	if !c.store.State().Authenticated() {
		if err := c.idle(CommandRefresh, op); err != nil {
			return err
		}
		return c.invalid(CommandRefresh, op, ErrNoSession, nil)
	}

	cmd, err := c.begin(CommandRefresh, op)
	if err != nil {
		return err
	}
	defer c.end(cmd)

	c.store.Update(store.WithLoading(true), store.WithError(nil))

	session, err := c.fetchSession(ctx, refresher.RefreshSession)
	if err == nil && session == nil {
		err = errors.Wrap(provider.ErrInvalidCredentials, "refresh returned no session")
	}
	if err != nil {
		err = normalize(op, err)
		patches := []store.Patch{store.WithLoading(false), store.WithError(err)}
		if errors.Is(err, ErrInvalidCredentials) {
			patches = append(patches, store.WithSession(nil))
		}
		c.store.Update(patches...)
		c.settled(cmd, err)
		return err
	}

	c.store.Update(store.WithSession(session), store.WithLoading(false), store.WithError(nil))
	c.settled(cmd, nil)
	return nil
}

// begin claims the in-flight slot or rejects the command.
func (c *Controller) begin(kind CommandKind, op string) (*Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busyLocked() {
		return nil, c.rejectLocked(kind, op)
	}

	c.pending = &Command{ID: uuid.NewString(), Kind: kind, StartedAt: c.nowTime()}
	return c.pending, nil
}

// idle rejects the command if another one holds the slot, without claiming it.
func (c *Controller) idle(kind CommandKind, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busyLocked() {
		return c.rejectLocked(kind, op)
	}
	return nil
}

func (c *Controller) busyLocked() bool {
	return c.pending != nil || c.recording
}

// rejectLocked reports an overlapping command. The store is left to the
// command that holds the slot.
func (c *Controller) rejectLocked(kind CommandKind, op string) error {
	err := &commandError{op: op, kind: ErrConcurrentRequest}
	event := c.logger.Warn().Str("kind", string(kind))
	if c.pending != nil {
		event = event.Str("pending_id", c.pending.ID).Str("pending_kind", string(c.pending.Kind))
	}
	event.Msg("rejecting overlapping auth command")
	c.metrics.CommandSettled(string(kind), outcome(err), 0)
	return err
}

// end releases the slot. It runs after the final store update so the next
// command cannot interleave with this one's broadcast.
func (c *Controller) end(cmd *Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == cmd {
		c.pending = nil
	}
}

// invalid records an error found before the provider is called. The store
// is only written when no other command is pending.
func (c *Controller) invalid(kind CommandKind, op string, class, cause error) error {
	err := &commandError{op: op, kind: class, cause: cause}

	c.mu.Lock()
	idle := c.pending == nil && !c.recording
	c.recording = idle
	c.mu.Unlock()

	if idle {
		c.store.SetError(err)
		c.mu.Lock()
		c.recording = false
		c.mu.Unlock()
	}
	c.logger.Debug().Err(err).Str("kind", string(kind)).Msg("auth command not sent")
	c.metrics.CommandSettled(string(kind), outcome(err), 0)
	return err
}

// renew refreshes a restored session that is about to expire. Any failure
// keeps the restored session, which is still valid.
func (c *Controller) renew(ctx context.Context, cmd *Command, session *sessions.Session) *sessions.Session {
	refresher, ok := c.provider.(provider.Refresher)
	if !ok {
		return session
	}

	renewed, err := c.fetchSession(ctx, refresher.RefreshSession)
	if err != nil || renewed == nil {
		c.logger.Debug().Err(err).Str("command_id", cmd.ID).Msg("keeping restored session after failed renewal")
		return session
	}
	c.logger.Debug().Str("command_id", cmd.ID).Object("session", renewed).Msg("renewed restored session")
	return renewed
}

func (c *Controller) settled(cmd *Command, err error) {
	elapsed := c.nowTime().Sub(cmd.StartedAt)

	event := c.logger.Info()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.Str("command_id", cmd.ID).Str("kind", string(cmd.Kind)).Dur("elapsed", elapsed).Msg("auth command settled")
	c.metrics.CommandSettled(string(cmd.Kind), outcome(err), elapsed)
}

// fetchSession calls fn and checks that any returned session is complete.
func (c *Controller) fetchSession(ctx context.Context, fn func(context.Context) (*sessions.Session, error)) (*sessions.Session, error) {
	var session *sessions.Session
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		session, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if err := session.Validate(); err != nil {
		return nil, errors.Wrap(provider.ErrUnavailable, err.Error())
	}
	return session.Clone(), nil
}

// call runs a provider call under the command timeout. A panicking provider
// is reported as unavailable so the store never stays loading.
func (c *Controller) call(ctx context.Context, fn func(context.Context) error) (err error) {
	if c.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.commandTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("provider panicked")
			err = errors.Wrapf(provider.ErrUnavailable, "provider panic: %v", r)
		}
	}()
	return fn(ctx)
}
