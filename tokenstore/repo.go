package tokenstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-session/sessions"
)

// Record is what a provider persists to restore a session after a restart.
// It holds credential material in clear text; protect the backing store.
type Record struct {
	Session      sessions.Session `json:"session"`
	RefreshToken string           `json:"refresh_token,omitempty"`
	IDToken      string           `json:"id_token,omitempty"`
	SavedAt      time.Time        `json:"saved_at"`
}

// Repo stores one Record per key. Get returns errors.ErrSessionNotFound
// (internal/errors) for a missing key; Delete of a missing key is not an error.
type Repo interface {
	Upsert(ctx context.Context, key string, record Record) error
	Get(ctx context.Context, key string) (Record, error)
	Delete(ctx context.Context, key string) error
}

func cloneRecord(r Record) Record {
	if s := r.Session.Clone(); s != nil {
		r.Session = *s
	}
	return r
}
