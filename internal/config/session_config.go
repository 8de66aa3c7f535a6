package config

import (
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type SessionConfig interface {
	GetSessionStore() string
	GetSessionFile() string
	GetSessionKey() string
	GetRedisAddr() string
	GetRequestTimeout() time.Duration
	GetExpiryLeeway() time.Duration
}

type Session struct {
	SessionStore   string        `env:"SESSION_STORE" env-default:"file"`
	SessionFile    string        `env:"SESSION_FILE" env-default:"./data/session.json"`
	SessionKey     string        `env:"SESSION_KEY" env-default:"default"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" env-default:"15s"`
	ExpiryLeeway   time.Duration `env:"SESSION_EXPIRY_LEEWAY" env-default:"30s"`
}

var _ SessionConfig = Session{}

func (s Session) GetSessionStore() string {
	return strings.ToLower(strings.TrimSpace(s.SessionStore))
}

func (s Session) GetSessionFile() string {
	return s.SessionFile
}

// GetSessionKey names the persisted record, so several profiles can share a store.
func (s Session) GetSessionKey() string {
	return s.SessionKey
}

func (s Session) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Session) GetRequestTimeout() time.Duration {
	return s.RequestTimeout
}

func (s Session) GetExpiryLeeway() time.Duration {
	return s.ExpiryLeeway
}
