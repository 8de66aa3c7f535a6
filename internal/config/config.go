package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

type Config interface {
	EnvConfig
	ProviderConfig
	SessionConfig
}

type mainConfig struct {
	EnvVars
	Provider
	Session
}

// New reads the configuration from the environment and validates it.
func New() (Config, error) {
	var c mainConfig
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, errors.Wrap(err, "[config.New] read environment")
	}
	if err := c.validate(); err != nil {
		return nil, errors.Wrap(err, "[config.New] invalid configuration")
	}
	return c, nil
}

func (c mainConfig) validate() error {
	switch c.GetProviderKind() {
	case ProviderOIDC:
		if c.IssuerURL == "" {
			return fmt.Errorf("AUTH_ISSUER_URL is required for provider %q", ProviderOIDC)
		}
	case ProviderOAuth2:
		if c.TokenURL == "" {
			return fmt.Errorf("AUTH_TOKEN_URL is required for provider %q", ProviderOAuth2)
		}
	case ProviderFake:
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.ProviderKind)
	}

	if c.GetProviderKind() != ProviderFake && c.ClientID == "" {
		return fmt.Errorf("AUTH_CLIENT_ID is required")
	}

	switch c.GetSessionStore() {
	case StoreMemory:
	case StoreFile:
		if c.SessionFile == "" {
			return fmt.Errorf("SESSION_FILE is required for session store %q", StoreFile)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for session store %q", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}

	if c.RequestTimeout < 0 || c.ExpiryLeeway < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
