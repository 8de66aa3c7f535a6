package store

import (
	"errors"

	"github.com/jrsteele09/go-auth-session/sessions"
)

// State is the observable authentication state.
type State struct {
	Session   *sessions.Session // nil when signed out
	IsLoading bool              // true while a command is waiting on the provider
	LastError error             // last failure, cleared when a new command starts
}

// Describer is implemented by errors that carry a message fit for end users.
type Describer interface {
	Description() string
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool {
	return s.Session != nil
}

// ErrorDescription returns a user-facing description of LastError, or "" when there is none.
func (s State) ErrorDescription() string {
	if s.LastError == nil {
		return ""
	}
	var d Describer
	if errors.As(s.LastError, &d) {
		return d.Description()
	}
	return s.LastError.Error()
}

func (s State) clone() State {
	s.Session = s.Session.Clone()
	return s
}

// Patch changes one field of a State. Patches passed to a single Update are
// applied together and broadcast once.
type Patch func(*State)

// WithLoading sets IsLoading.
func WithLoading(loading bool) Patch {
	return func(s *State) {
		s.IsLoading = loading
	}
}

// WithSession replaces the session wholesale. A nil session signs out.
func WithSession(session *sessions.Session) Patch {
	session = session.Clone()
	return func(s *State) {
		s.Session = session
	}
}

// WithError sets LastError. A nil error clears it.
func WithError(err error) Patch {
	return func(s *State) {
		s.LastError = err
	}
}
