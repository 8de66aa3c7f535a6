package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
)

// FileRepo keeps every record in one JSON file. The file is rewritten on
// each change through a temporary file and a rename, with owner-only permissions.
type FileRepo struct {
	mu      sync.RWMutex
	path    string
	records map[string]Record
}

var _ Repo = (*FileRepo)(nil)

// NewFileRepo opens (or prepares) the file at path and loads its records.
func NewFileRepo(path string) (*FileRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileRepo] create directory")
	}
	r := &FileRepo{
		path:    path,
		records: map[string]Record{},
	}
	if err := r.load(); err != nil {
		return nil, errors.Wrap(err, "[NewFileRepo] load")
	}
	return r, nil
}

func (r *FileRepo) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}

	var loaded map[string]Record
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded != nil {
		r.records = loaded
	}
	return nil
}

// persist must be called with r.mu held for writing.
func (r *FileRepo) persist() error {
	b, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, r.path)
}

func (r *FileRepo) Upsert(_ context.Context, key string, record Record) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.records[key]
	r.records[key] = cloneRecord(record)
	if err := r.persist(); err != nil {
		if existed {
			r.records[key] = previous
		} else {
			delete(r.records, key)
		}
		return errors.Wrap(err, "[FileRepo.Upsert] persist")
	}
	return nil
}

func (r *FileRepo) Get(_ context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, autherrors.ErrInvalidKey
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return Record{}, autherrors.Wrapf(autherrors.ErrSessionNotFound, "[FileRepo.Get] key %q", key)
	}
	return cloneRecord(record), nil
}

func (r *FileRepo) Delete(_ context.Context, key string) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, ok := r.records[key]
	if !ok {
		return nil
	}
	delete(r.records, key)
	if err := r.persist(); err != nil {
		r.records[key] = previous
		return errors.Wrap(err, "[FileRepo.Delete] persist")
	}
	return nil
}
