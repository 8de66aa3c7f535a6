package tokenstore

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// InMemoryRepo keeps records for the lifetime of the process.
type InMemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates an empty in-memory repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		records: make(map[string]Record),
	}
}

func (r *InMemoryRepo) Upsert(_ context.Context, key string, record Record) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy so later changes by the caller don't leak in
	r.records[key] = cloneRecord(record)
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, autherrors.ErrInvalidKey
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return Record{}, autherrors.Wrapf(autherrors.ErrSessionNotFound, "[InMemoryRepo.Get] key %q", key)
	}
	return cloneRecord(record), nil
}

func (r *InMemoryRepo) Delete(_ context.Context, key string) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, key)
	return nil
}
