package main

import (
	"context"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/provider"
	"github.com/jrsteele09/go-auth-session/provider/oauth2provider"
	"github.com/jrsteele09/go-auth-session/provider/providerfake"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-password"
)

// newRepo opens the configured session record store.
func newRepo(ctx context.Context, c config.SessionConfig) (tokenstore.Repo, func(), error) {
	switch c.GetSessionStore() {
	case config.StoreMemory:
		return tokenstore.NewInMemoryRepo(), func() {}, nil
	case config.StoreFile:
		repo, err := tokenstore.NewFileRepo(c.GetSessionFile())
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrapf(err, "[newRepo] redis at %s", c.GetRedisAddr())
		}
		closeClient := func() {
			if err := client.Close(); err != nil {
				log.Err(err).Msg("Failed to close redis client")
			}
		}
		return tokenstore.NewRedisRepo(client), closeClient, nil
	}
	return nil, nil, errors.Errorf("[newRepo] unknown session store %q", c.GetSessionStore())
}

// newProvider builds the configured identity provider.
func newProvider(ctx context.Context, c config.Config, repo tokenstore.Repo) (provider.Provider, error) {
	sessionKey := oauth2provider.WithSessionKey(c.GetSessionKey())

	switch c.GetProviderKind() {
	case config.ProviderOIDC:
		return oauth2provider.New(ctx, oauth2provider.Settings{
			IssuerURL:     c.GetIssuerURL(),
			TokenURL:      c.GetTokenURL(),
			RevocationURL: c.GetRevocationURL(),
			ClientID:      c.GetClientID(),
			ClientSecret:  c.GetClientSecret(),
			Scopes:        c.GetScopes(),
		}, repo, sessionKey)
	case config.ProviderOAuth2:
		return oauth2provider.NewWithEndpoint(oauth2.Config{
			ClientID:     c.GetClientID(),
			ClientSecret: c.GetClientSecret(),
			Endpoint:     oauth2.Endpoint{TokenURL: c.GetTokenURL()},
			Scopes:       c.GetScopes(),
		}, repo, sessionKey, oauth2provider.WithRevocationURL(c.GetRevocationURL()))
	case config.ProviderFake:
		p := providerfake.New()
		if _, err := p.AddUser(demoEmail, demoPassword); err != nil {
			return nil, err
		}
		log.Warn().Str("email", demoEmail).Str("password", demoPassword).Msg("Using the in-process fake provider; sessions are not persisted")
		return p, nil
	}
	return nil, errors.Errorf("[newProvider] unknown provider %q", c.GetProviderKind())
}
