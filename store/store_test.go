package store_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testWait = time.Second
	testTick = 5 * time.Millisecond
)

// recorder collects every state a listener receives.
type recorder struct {
	mu     sync.Mutex
	states []store.State
}

func (r *recorder) listen(s store.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) received() []store.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.State(nil), r.states...)
}

func testSession() *sessions.Session {
	return &sessions.Session{UserID: "user-1", AccessToken: "token-1", Scopes: []string{"openid"}}
}

func TestStore_InitialState(t *testing.T) {
	s := store.New()
	state := s.State()
	require.Nil(t, state.Session)
	require.False(t, state.IsLoading)
	require.NoError(t, state.LastError)
	require.False(t, state.Authenticated())
	require.Empty(t, state.ErrorDescription())
}

func TestStore_OneNotificationPerMutationInOrder(t *testing.T) {
	s := store.New()
	first, second := &recorder{}, &recorder{}
	s.Subscribe(first.listen)
	s.Subscribe(second.listen)

	failure := errors.New("boom")
	s.SetLoading(true)
	s.SetError(failure)
	s.SetSession(testSession())
	s.SetLoading(false)
	s.SetError(nil)

	for _, r := range []*recorder{first, second} {
		got := r.received()
		require.Len(t, got, 5)

		require.True(t, got[0].IsLoading)
		require.Nil(t, got[0].Session)
		require.NoError(t, got[0].LastError)

		require.True(t, got[1].IsLoading)
		require.Equal(t, failure, got[1].LastError)

		require.True(t, got[2].IsLoading)
		require.Equal(t, "user-1", got[2].Session.UserID)
		require.Equal(t, failure, got[2].LastError)

		require.False(t, got[3].IsLoading)
		require.NotNil(t, got[3].Session)

		require.NoError(t, got[4].LastError)
		require.NotNil(t, got[4].Session)
		require.False(t, got[4].IsLoading)
	}
}

func TestStore_RegistrationOrder(t *testing.T) {
	s := store.New()
	var order []string
	s.Subscribe(func(store.State) { order = append(order, "a") })
	s.Subscribe(func(store.State) { order = append(order, "b") })
	s.Subscribe(func(store.State) { order = append(order, "c") })

	s.SetLoading(true)
	s.SetLoading(false)

	require.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestStore_UpdateIsAtomic(t *testing.T) {
	s := store.New()
	s.SetLoading(true)
	s.SetError(errors.New("stale"))

	r := &recorder{}
	s.Subscribe(r.listen)

	s.Update(store.WithSession(testSession()), store.WithLoading(false), store.WithError(nil))

	got := r.received()
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Session)
	require.False(t, got[0].IsLoading)
	require.NoError(t, got[0].LastError)
	require.Equal(t, got[0], s.State())
}

func TestStore_Unsubscribe(t *testing.T) {
	s := store.New()
	r := &recorder{}
	unsubscribe := s.Subscribe(r.listen)
	require.Equal(t, 1, s.Subscribers())

	s.SetLoading(true)
	unsubscribe()
	unsubscribe()
	s.SetLoading(false)

	require.Len(t, r.received(), 1)
	require.Equal(t, 0, s.Subscribers())
}

func TestStore_UnsubscribeDuringBroadcast(t *testing.T) {
	s := store.New()
	late := &recorder{}

	var unsubscribeLate func()
	s.Subscribe(func(store.State) { unsubscribeLate() })
	unsubscribeLate = s.Subscribe(late.listen)

	s.SetLoading(true)
	require.Empty(t, late.received())
}

func TestStore_PanickingListener(t *testing.T) {
	var logs bytes.Buffer
	s := store.New(store.WithLogger(zerolog.New(&logs)))
	healthy := &recorder{}
	s.Subscribe(func(state store.State) {
		if state.IsLoading {
			panic("listener failed")
		}
	})
	s.Subscribe(healthy.listen)

	s.SetLoading(true)
	s.SetLoading(false)

	got := healthy.received()
	require.Len(t, got, 2)
	require.True(t, got[0].IsLoading)
	require.False(t, got[1].IsLoading)
	require.False(t, s.State().IsLoading)
	require.Contains(t, logs.String(), "listener failed")
}

func TestStore_SubscribeCurrent(t *testing.T) {
	t.Run("delivers the current state first", func(t *testing.T) {
		s := store.New()
		s.SetSession(testSession())
		r := &recorder{}

		unsubscribe := s.SubscribeCurrent(r.listen)
		s.SetLoading(true)

		got := r.received()
		require.Len(t, got, 2)
		require.Equal(t, "user-1", got[0].Session.UserID)
		require.False(t, got[0].IsLoading)
		require.True(t, got[1].IsLoading)

		unsubscribe()
		s.SetLoading(false)
		require.Len(t, r.received(), 2)
	})

	t.Run("never delivers an older state after a newer one", func(t *testing.T) {
		s := store.New()
		const writes = 200
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < writes; i++ {
				s.SetLoading(i%2 == 0)
			}
			s.SetLoading(false)
		}()

		var (
			mu   sync.Mutex
			seen []store.State
		)
		unsubscribe := s.SubscribeCurrent(func(state store.State) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, state)
		})
		defer unsubscribe()
		<-done

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, seen)
		require.Equal(t, s.State(), seen[len(seen)-1])
	})

	t.Run("closed store", func(t *testing.T) {
		s := store.New()
		s.Close()
		r := &recorder{}
		s.SubscribeCurrent(r.listen)()
		require.Empty(t, r.received())
	})
}

func TestStore_ListenerCanReadState(t *testing.T) {
	s := store.New()
	var seen store.State
	s.Subscribe(func(store.State) { seen = s.State() })

	s.SetSession(testSession())
	require.NotNil(t, seen.Session)
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	s := store.New()
	session := testSession()
	s.SetSession(session)

	session.UserID = "mutated-after-set"
	snapshot := s.State()
	require.Equal(t, "user-1", snapshot.Session.UserID)

	snapshot.Session.Scopes[0] = "mutated-after-read"
	require.Equal(t, "openid", s.State().Session.Scopes[0])
}

func TestStore_ConcurrentMutationsSeenInSameOrder(t *testing.T) {
	s := store.New()
	first, second := &recorder{}, &recorder{}
	s.Subscribe(first.listen)
	s.Subscribe(second.listen)

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.SetLoading(i%2 == 0)
				_ = s.State()
			}
		}(w)
	}
	wg.Wait()

	a, b := first.received(), second.received()
	require.Len(t, a, writers*perWriter)
	require.Equal(t, a, b)
}

func TestStore_Watch(t *testing.T) {
	s := store.New()
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	s.Watch(ctx, r.listen)
	s.SetLoading(true)
	cancel()
	require.Eventually(t, func() bool { return s.Subscribers() == 0 }, testWait, testTick)
	s.SetLoading(false)

	require.Len(t, r.received(), 1)
}

func TestStore_WatchReleasedEarly(t *testing.T) {
	s := store.New()
	r := &recorder{}

	release := s.Watch(context.Background(), r.listen)
	release()
	s.SetLoading(true)

	require.Empty(t, r.received())
	require.Equal(t, 0, s.Subscribers())
}

func TestStore_WithSubscription(t *testing.T) {
	t.Run("returns fn error and unsubscribes", func(t *testing.T) {
		s := store.New()
		r := &recorder{}
		want := errors.New("view failed")

		err := s.WithSubscription(r.listen, func() error {
			s.SetLoading(true)
			return want
		})
		require.Equal(t, want, err)
		require.Len(t, r.received(), 1)
		require.Equal(t, 0, s.Subscribers())
	})

	t.Run("unsubscribes on panic", func(t *testing.T) {
		s := store.New()
		require.Panics(t, func() {
			_ = s.WithSubscription(func(store.State) {}, func() error {
				panic("render crashed")
			})
		})
		require.Equal(t, 0, s.Subscribers())
	})
}

func TestStore_Close(t *testing.T) {
	s := store.New()
	r := &recorder{}
	unsubscribe := s.Subscribe(r.listen)

	s.Close()
	s.SetSession(testSession())
	unsubscribe()

	require.Empty(t, r.received())
	require.NotNil(t, s.State().Session)

	s.Subscribe(r.listen)
	s.SetLoading(true)
	require.Empty(t, r.received())
	require.Equal(t, 0, s.Subscribers())
}

type describedErr struct{}

func (describedErr) Error() string       { return "provider said no: code 42" }
func (describedErr) Description() string { return "Please try again." }

func TestState_ErrorDescription(t *testing.T) {
	plain := store.State{LastError: errors.New("plain failure")}
	require.Equal(t, "plain failure", plain.ErrorDescription())

	described := store.State{LastError: errors.Wrap(describedErr{}, "wrapped")}
	require.Equal(t, "Please try again.", described.ErrorDescription())
}
