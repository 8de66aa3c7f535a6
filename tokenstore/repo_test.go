package tokenstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testRecord() tokenstore.Record {
	return tokenstore.Record{
		Session: sessions.Session{
			UserID:      "user-1",
			Email:       "john.doe@example.com",
			AccessToken: "access-1",
			TokenType:   "Bearer",
			Scopes:      []string{"openid", "email"},
			ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		RefreshToken: "refresh-1",
		SavedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// repoContract runs the behaviour every Repo must share.
func repoContract(t *testing.T, newRepo func(t *testing.T) tokenstore.Repo) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "default")
		require.True(t, errors.Is(err, autherrors.ErrSessionNotFound))
	})

	t.Run("upsert then get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, "default", testRecord()))

		got, err := repo.Get(ctx, "default")
		require.NoError(t, err)
		require.Equal(t, "user-1", got.Session.UserID)
		require.Equal(t, "refresh-1", got.RefreshToken)
		require.Equal(t, []string{"openid", "email"}, got.Session.Scopes)
		require.True(t, got.Session.ExpiresAt.Equal(testRecord().Session.ExpiresAt))
	})

	t.Run("upsert replaces", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, "default", testRecord()))

		next := testRecord()
		next.Session.AccessToken = "access-2"
		require.NoError(t, repo.Upsert(ctx, "default", next))

		got, err := repo.Get(ctx, "default")
		require.NoError(t, err)
		require.Equal(t, "access-2", got.Session.AccessToken)
	})

	t.Run("keys are independent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, "work", testRecord()))
		_, err := repo.Get(ctx, "personal")
		require.True(t, errors.Is(err, autherrors.ErrSessionNotFound))
	})

	t.Run("returned records are copies", func(t *testing.T) {
		repo := newRepo(t)
		record := testRecord()
		require.NoError(t, repo.Upsert(ctx, "default", record))
		record.Session.Scopes[0] = "mutated"

		got, err := repo.Get(ctx, "default")
		require.NoError(t, err)
		got.Session.Scopes[1] = "mutated"

		again, err := repo.Get(ctx, "default")
		require.NoError(t, err)
		require.Equal(t, []string{"openid", "email"}, again.Session.Scopes)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Upsert(ctx, "default", testRecord()))
		require.NoError(t, repo.Delete(ctx, "default"))
		require.NoError(t, repo.Delete(ctx, "default"))

		_, err := repo.Get(ctx, "default")
		require.True(t, errors.Is(err, autherrors.ErrSessionNotFound))
	})

	t.Run("empty key", func(t *testing.T) {
		repo := newRepo(t)
		require.True(t, errors.Is(repo.Upsert(ctx, "", testRecord()), autherrors.ErrInvalidKey))
		_, err := repo.Get(ctx, "")
		require.True(t, errors.Is(err, autherrors.ErrInvalidKey))
		require.True(t, errors.Is(repo.Delete(ctx, ""), autherrors.ErrInvalidKey))
	})
}

func TestInMemoryRepo(t *testing.T) {
	repoContract(t, func(t *testing.T) tokenstore.Repo {
		return tokenstore.NewInMemoryRepo()
	})
}

func TestFileRepo(t *testing.T) {
	repoContract(t, func(t *testing.T) tokenstore.Repo {
		repo, err := tokenstore.NewFileRepo(filepath.Join(t.TempDir(), "nested", "session.json"))
		require.NoError(t, err)
		return repo
	})
}

func TestFileRepo_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	repo, err := tokenstore.NewFileRepo(path)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, "default", testRecord()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := tokenstore.NewFileRepo(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "default")
	require.NoError(t, err)
	require.Equal(t, "access-1", got.Session.AccessToken)

	require.NoError(t, reopened.Delete(ctx, "default"))
	again, err := tokenstore.NewFileRepo(path)
	require.NoError(t, err)
	_, err = again.Get(ctx, "default")
	require.True(t, errors.Is(err, autherrors.ErrSessionNotFound))
}

func TestFileRepo_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := tokenstore.NewFileRepo(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "[NewFileRepo] load")
}

func TestFileRepo_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	repo, err := tokenstore.NewFileRepo(path)
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), "default")
	require.True(t, errors.Is(err, autherrors.ErrSessionNotFound))
}
