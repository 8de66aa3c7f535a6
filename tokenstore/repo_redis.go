package tokenstore

import (
	"context"
	"encoding/json"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "auth:session:"

// RedisRepo stores each record as a JSON string. Records without a refresh
// token expire together with their access token.
type RedisRepo struct {
	client  redis.Cmdable
	prefix  string
	nowTime func() time.Time
}

var _ Repo = (*RedisRepo)(nil)

// NewRedisRepo creates a Redis-backed repository.
func NewRedisRepo(client redis.Cmdable) *RedisRepo {
	return &RedisRepo{
		client:  client,
		prefix:  defaultRedisPrefix,
		nowTime: time.Now,
	}
}

func (r *RedisRepo) key(key string) string {
	return r.prefix + key
}

// ttlFor returns 0 for "keep until deleted".
func (r *RedisRepo) ttlFor(record Record) (time.Duration, error) {
	if record.RefreshToken != "" || record.Session.ExpiresAt.IsZero() {
		return 0, nil
	}
	ttl := record.Session.ExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		return 0, autherrors.ErrSessionExpired
	}
	return ttl, nil
}

func (r *RedisRepo) Upsert(ctx context.Context, key string, record Record) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}

	ttl, err := r.ttlFor(record)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert]")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] marshal")
	}

	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Upsert] set")
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, autherrors.ErrInvalidKey
	}

	val, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return Record{}, autherrors.Wrapf(autherrors.ErrSessionNotFound, "[RedisRepo.Get] key %q", key)
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "[RedisRepo.Get]")
	}

	var record Record
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return Record{}, errors.Wrap(err, "[RedisRepo.Get] unmarshal")
	}
	return record, nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if key == "" {
		return autherrors.ErrInvalidKey
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete]")
	}
	return nil
}
