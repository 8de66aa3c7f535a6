package config

import "strings"

const (
	ProviderOIDC   = "oidc"   // endpoints discovered from AUTH_ISSUER_URL
	ProviderOAuth2 = "oauth2" // explicit AUTH_TOKEN_URL, no ID token verification
	ProviderFake   = "fake"   // in-process directory, for demos
)

type ProviderConfig interface {
	GetProviderKind() string
	GetIssuerURL() string
	GetTokenURL() string
	GetRevocationURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
}

type Provider struct {
	ProviderKind  string   `env:"AUTH_PROVIDER" env-default:"oidc"`
	IssuerURL     string   `env:"AUTH_ISSUER_URL"`
	TokenURL      string   `env:"AUTH_TOKEN_URL"`
	RevocationURL string   `env:"AUTH_REVOCATION_URL"`
	ClientID      string   `env:"AUTH_CLIENT_ID"`
	ClientSecret  string   `env:"AUTH_CLIENT_SECRET"`
	Scopes        []string `env:"AUTH_SCOPES" env-default:"openid,profile,email,offline_access"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProviderKind() string {
	return strings.ToLower(strings.TrimSpace(p.ProviderKind))
}

func (p Provider) GetIssuerURL() string {
	return strings.TrimRight(p.IssuerURL, "/")
}

func (p Provider) GetTokenURL() string {
	return p.TokenURL
}

// GetRevocationURL overrides the discovered revocation endpoint when set.
func (p Provider) GetRevocationURL() string {
	return p.RevocationURL
}

func (p Provider) GetClientID() string {
	return p.ClientID
}

func (p Provider) GetClientSecret() string {
	return p.ClientSecret
}

func (p Provider) GetScopes() []string {
	scopes := make([]string, 0, len(p.Scopes))
	for _, s := range p.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
