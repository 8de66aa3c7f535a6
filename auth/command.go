package auth

import "time"

// CommandKind names an authentication command.
type CommandKind string

const (
	CommandSignIn  CommandKind = "sign_in"
	CommandSignOut CommandKind = "sign_out"
	CommandRestore CommandKind = "restore"
	CommandRefresh CommandKind = "refresh"
)

// Command is an authentication request waiting on the provider.
// At most one Command is in flight per Controller.
type Command struct {
	ID        string
	Kind      CommandKind
	StartedAt time.Time
}
