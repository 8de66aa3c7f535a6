package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog"
)

// Listener receives the fully merged state after every mutation.
type Listener func(State)

type subscription struct {
	id       uint64
	listener Listener
	active   atomic.Bool
}

// Store holds the authentication state and broadcasts every change to its
// subscribers. It performs no I/O and cannot fail.
//
// Mutations are serialized: each one is applied and delivered to every
// subscriber, in registration order, before the next mutation starts.
// Listeners run on the mutating goroutine and must not mutate the store.
// Reading State from a listener is fine. A listener that panics is logged
// and skipped; the remaining listeners are still notified.
type Store struct {
	broadcastMu sync.Mutex // serializes apply+notify
	logger      zerolog.Logger

	mu     sync.RWMutex
	state  State
	subs   []*subscription
	nextID uint64
	closed bool
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithLogger sets the logger used to report panicking listeners.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store with no session, not loading and no error.
func New(options ...Option) *Store {
	s := &Store{logger: zerolog.Nop()}
	for _, option := range options {
		option(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers listener and returns a function that removes it.
// The returned function is safe to call more than once.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	_, unsubscribe = s.subscribe(listener)
	return unsubscribe
}

// SubscribeCurrent registers listener and delivers the current state to it
// before any later mutation is broadcast.
func (s *Store) SubscribeCurrent(listener Listener) (unsubscribe func()) {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	sub, unsubscribe := s.subscribe(listener)
	if sub != nil {
		s.notify(sub, s.State())
	}
	return unsubscribe
}

func (s *Store) subscribe(listener Listener) (*subscription, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || listener == nil {
		return nil, func() {}
	}

	s.nextID++
	sub := &subscription{id: s.nextID, listener: listener}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)

	return sub, func() {
		s.remove(sub)
	}
}

func (s *Store) remove(sub *subscription) {
	// Deactivate first so an in-flight broadcast skips it.
	if !sub.active.Swap(false) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.subs {
		if candidate.id == sub.id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Update applies patches as one atomic transition and broadcasts once.
func (s *Store) Update(patches ...Patch) {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	s.mu.Lock()
	next := s.state
	for _, patch := range patches {
		patch(&next)
	}
	s.state = next
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			s.notify(sub, next.clone())
		}
	}
}

func (s *Store) notify(sub *subscription, state State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Uint64("subscription", sub.id).Msg("store listener panicked")
		}
	}()
	sub.listener(state)
}

// SetLoading updates IsLoading.
func (s *Store) SetLoading(loading bool) {
	s.Update(WithLoading(loading))
}

// SetSession replaces the session. nil clears it.
func (s *Store) SetSession(session *sessions.Session) {
	s.Update(WithSession(session))
}

// SetError updates LastError. nil clears it.
func (s *Store) SetError(err error) {
	s.Update(WithError(err))
}

// Watch subscribes listener until ctx is done or the returned function is called.
func (s *Store) Watch(ctx context.Context, listener Listener) (unsubscribe func()) {
	unsub := s.Subscribe(listener)
	stop := context.AfterFunc(ctx, unsub)
	return func() {
		stop()
		unsub()
	}
}

// WithSubscription keeps listener registered for the duration of fn.
// The listener is removed on every exit path, including panics.
func (s *Store) WithSubscription(listener Listener, fn func() error) error {
	unsubscribe := s.Subscribe(listener)
	defer unsubscribe()
	return fn()
}

// Subscribers returns the number of registered listeners.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close drops every listener. The state remains readable; later mutations
// are applied but reach nobody, and Subscribe becomes a no-op.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		sub.active.Store(false)
	}
	s.subs = nil
	s.closed = true
}
