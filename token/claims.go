package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/pkg/errors"
)

var (
	ErrMalformedToken = errors.New("malformed token")
)

// Claims is the identity information carried by an access or ID token.
type Claims struct {
	Subject   string    // "sub"
	Email     string    // "email"
	Issuer    string    // "iss"
	Audience  []string  // "aud"
	ID        string    // "jti"
	Scopes    []string  // "scope" (space separated) or "scp"
	IssuedAt  time.Time // "iat", zero when absent
	ExpiresAt time.Time // "exp", zero when absent
}

// ParseUnverified extracts claims from a JWT without checking its signature.
// Use it only on tokens received directly from the token endpoint over TLS;
// it is not a substitute for verification of tokens from untrusted sources.
func ParseUnverified(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrap(ErrMalformedToken, "empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrMalformedToken, "error extracting claims")
	}

	sub, _ := claims.GetSubject()
	iss, _ := claims.GetIssuer()
	aud, _ := claims.GetAudience()
	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)

	c := &Claims{
		Subject:  sub,
		Email:    email,
		Issuer:   iss,
		Audience: aud,
		ID:       jti,
		Scopes:   scopes(claims),
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}

	return c, nil
}

func scopes(claims jwtlib.MapClaims) []string {
	if scope, ok := claims["scope"].(string); ok {
		return strings.Fields(scope)
	}
	if scp, ok := claims["scp"].([]any); ok {
		return utils.ToStringSlice(scp)
	}
	return nil
}
