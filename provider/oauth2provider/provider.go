// Package oauth2provider signs users in against an OAuth2 / OpenID Connect
// authorization server with the resource-owner password grant and keeps the
// resulting tokens in a tokenstore.Repo so sessions survive restarts.
package oauth2provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/provider"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultSessionKey = "default"

var (
	_ provider.Provider  = (*Provider)(nil)
	_ provider.Refresher = (*Provider)(nil)
)

// Settings describe the authorization server and this client's registration.
type Settings struct {
	IssuerURL     string   // OIDC issuer, used for discovery
	TokenURL      string   // Overrides the discovered token endpoint
	RevocationURL string   // Overrides the discovered revocation endpoint
	ClientID      string   // OAuth2 client id
	ClientSecret  string   // OAuth2 client secret, empty for public clients
	Scopes        []string // Requested scopes
}

// Provider implements provider.Provider over x/oauth2.
type Provider struct {
	config        oauth2.Config
	verifier      *oidc.IDTokenVerifier
	revocationURL string
	repo          tokenstore.Repo
	sessionKey    string
	httpClient    *http.Client
	nowTime       func() time.Time
}

// Option defines a function type to modify the Provider instance.
type Option func(*Provider)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// WithHTTPClient sets the client used for discovery, token and revocation requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithVerifier verifies ID tokens returned by the token endpoint.
func WithVerifier(verifier *oidc.IDTokenVerifier) Option {
	return func(p *Provider) {
		p.verifier = verifier
	}
}

// WithRevocationURL sets the RFC 7009 revocation endpoint.
func WithRevocationURL(revocationURL string) Option {
	return func(p *Provider) {
		p.revocationURL = revocationURL
	}
}

// WithSessionKey sets the key the session record is stored under.
func WithSessionKey(key string) Option {
	return func(p *Provider) {
		p.sessionKey = key
	}
}

// New discovers the issuer's endpoints and signing keys and returns a
// provider that verifies ID tokens.
func New(ctx context.Context, s Settings, repo tokenstore.Repo, options ...Option) (*Provider, error) {
	if s.IssuerURL == "" {
		return nil, errors.New("[oauth2provider.New] issuer url is required")
	}

	p, err := newProvider(oauth2.Config{}, repo, options...)
	if err != nil {
		return nil, err
	}

	oidcProvider, err := oidc.NewProvider(p.clientContext(ctx), s.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oauth2provider.New] failed to create OIDC provider")
	}

	var discovered struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := oidcProvider.Claims(&discovered); err != nil {
		return nil, errors.Wrap(err, "[oauth2provider.New] failed to read discovery document")
	}

	endpoint := oidcProvider.Endpoint()
	if s.TokenURL != "" {
		endpoint.TokenURL = s.TokenURL
	}
	p.config = oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       s.Scopes,
	}
	if p.verifier == nil {
		p.verifier = oidcProvider.Verifier(&oidc.Config{ClientID: s.ClientID})
	}
	if p.revocationURL == "" {
		p.revocationURL = s.RevocationURL
	}
	if p.revocationURL == "" {
		p.revocationURL = discovered.RevocationEndpoint
	}
	return p, nil
}

// NewWithEndpoint skips discovery. ID tokens are only verified when
// WithVerifier is given; otherwise identity comes from the access token.
func NewWithEndpoint(config oauth2.Config, repo tokenstore.Repo, options ...Option) (*Provider, error) {
	if config.Endpoint.TokenURL == "" {
		return nil, errors.New("[oauth2provider.NewWithEndpoint] token url is required")
	}
	return newProvider(config, repo, options...)
}

func newProvider(config oauth2.Config, repo tokenstore.Repo, options ...Option) (*Provider, error) {
	if repo == nil {
		return nil, errors.New("[oauth2provider] session repo is required")
	}
	p := &Provider{
		config:     config,
		repo:       repo,
		sessionKey: defaultSessionKey,
		nowTime:    time.Now,
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, p.httpClient)
}

// SignInWithPassword exchanges the credentials for tokens and stores them.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*sessions.Session, error) {
	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return nil, mapTokenError(err)
	}

	record, err := p.recordFromToken(ctx, tok, email, nil)
	if err != nil {
		return nil, err
	}
	if err := p.repo.Upsert(ctx, p.sessionKey, record); err != nil {
		return nil, errors.Wrap(err, "[Provider.SignInWithPassword] failed to store session")
	}
	return record.Session.Clone(), nil
}

// GetSession returns the stored session, refreshing it first when the access
// token has expired. A session that cannot be refreshed is forgotten.
func (p *Provider) GetSession(ctx context.Context) (*sessions.Session, error) {
	record, err := p.repo.Get(ctx, p.sessionKey)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.GetSession] failed to load session")
	}

	if !record.Session.IsExpired(p.nowTime()) {
		return record.Session.Clone(), nil
	}
	if record.RefreshToken == "" {
		p.forget(ctx)
		return nil, nil
	}

	session, err := p.refresh(ctx, record)
	if errors.Is(err, provider.ErrInvalidCredentials) {
		log.Info().Err(err).Msg("Stored session could not be refreshed")
		p.forget(ctx)
		return nil, nil
	}
	return session, err
}

// RefreshSession renews the stored session with its refresh token.
func (p *Provider) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	record, err := p.repo.Get(ctx, p.sessionKey)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, errors.Wrap(provider.ErrInvalidCredentials, "[Provider.RefreshSession] no stored session")
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.RefreshSession] failed to load session")
	}
	if record.RefreshToken == "" {
		return nil, errors.Wrap(provider.ErrInvalidCredentials, "[Provider.RefreshSession] no refresh token")
	}

	session, err := p.refresh(ctx, record)
	if errors.Is(err, provider.ErrInvalidCredentials) {
		p.forget(ctx)
	}
	return session, err
}

// SignOut revokes the stored tokens and deletes the session record. The
// record is deleted even when revocation fails; the first failure is returned.
func (p *Provider) SignOut(ctx context.Context) error {
	record, err := p.repo.Get(ctx, p.sessionKey)
	if apperrors.Is(err, apperrors.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Provider.SignOut] failed to load session")
	}

	var firstErr error
	if p.revocationURL != "" {
		for _, t := range []struct{ value, hint string }{
			{record.RefreshToken, "refresh_token"},
			{record.Session.AccessToken, "access_token"},
		} {
			if t.value == "" {
				continue
			}
			if err := p.revoke(ctx, t.value, t.hint); err != nil {
				log.Err(err).Str("token_type", t.hint).Msg("Failed to revoke token")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	if err := p.repo.Delete(ctx, p.sessionKey); err != nil {
		log.Err(err).Msg("Failed to delete session record")
		if firstErr == nil {
			firstErr = errors.Wrap(err, "[Provider.SignOut] failed to delete session")
		}
	}
	return firstErr
}

func (p *Provider) refresh(ctx context.Context, record tokenstore.Record) (*sessions.Session, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: record.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}

	next, err := p.recordFromToken(ctx, tok, record.Session.Email, &record)
	if err != nil {
		return nil, err
	}
	if err := p.repo.Upsert(ctx, p.sessionKey, next); err != nil {
		return nil, errors.Wrap(err, "[Provider.refresh] failed to store session")
	}
	return next.Session.Clone(), nil
}

func (p *Provider) forget(ctx context.Context) {
	if err := p.repo.Delete(ctx, p.sessionKey); err != nil {
		log.Err(err).Msg("Failed to delete session record")
	}
}

// recordFromToken builds a session record from a token response. Identity
// comes from the verified ID token when there is one, then from the access
// token's claims, then from the previous record.
func (p *Provider) recordFromToken(ctx context.Context, tok *oauth2.Token, email string, previous *tokenstore.Record) (tokenstore.Record, error) {
	now := p.nowTime()
	session := sessions.Session{
		Email:       email,
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		IssuedAt:    now,
		ExpiresAt:   tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		session.Scopes = strings.Fields(scope)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken != "" && p.verifier != nil {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return tokenstore.Record{}, fmt.Errorf("%w: ID token verification failed: %w", provider.ErrUnavailable, err)
		}
		var claims struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return tokenstore.Record{}, fmt.Errorf("%w: failed to extract claims: %w", provider.ErrUnavailable, err)
		}
		session.UserID = claims.Sub
		if claims.Email != "" {
			session.Email = claims.Email
		}
	}

	if claims, err := token.ParseUnverified(tok.AccessToken); err == nil {
		if session.UserID == "" {
			session.UserID = claims.Subject
		}
		if session.Email == "" {
			session.Email = claims.Email
		}
		if session.ExpiresAt.IsZero() {
			session.ExpiresAt = claims.ExpiresAt
		}
		if len(session.Scopes) == 0 {
			session.Scopes = claims.Scopes
		}
	}

	refreshToken := tok.RefreshToken
	if previous != nil {
		if session.UserID == "" {
			session.UserID = previous.Session.UserID
		}
		if refreshToken == "" {
			refreshToken = previous.RefreshToken
		}
		if rawIDToken == "" {
			rawIDToken = previous.IDToken
		}
	}

	if len(session.Scopes) == 0 {
		session.Scopes = p.config.Scopes
	}
	if err := session.Validate(); err != nil {
		return tokenstore.Record{}, fmt.Errorf("%w: %w", provider.ErrUnavailable, err)
	}

	return tokenstore.Record{
		Session:      session,
		RefreshToken: refreshToken,
		IDToken:      rawIDToken,
		SavedAt:      now,
	}, nil
}
