package auth

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrEmailMalformed   = errors.New("email address is not valid")
)

// ValidateCredentials checks sign-in input before anything is sent to the provider.
// Email is expected to be trimmed already.
func ValidateCredentials(email, password string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	return ValidateEmail(email)
}

// ValidateEmail is a shape check only: one "@", non-empty local part and domain,
// no whitespace. Whether the address exists is the provider's business.
func ValidateEmail(email string) error {
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return ErrEmailMalformed
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ErrEmailMalformed
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrEmailMalformed
	}
	return nil
}
