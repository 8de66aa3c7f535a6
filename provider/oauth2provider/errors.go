package oauth2provider

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-session/provider"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// mapTokenError classifies a token endpoint failure. Transport errors are
// returned unchanged.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}

	switch {
	case re.ErrorCode == "invalid_grant", re.ErrorCode == "invalid_client", re.ErrorCode == "unauthorized_client", status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", provider.ErrInvalidCredentials, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", provider.ErrUnavailable, err)
}

// statusError maps a revocation response status onto a provider error.
func statusError(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: revocation endpoint returned %d", provider.ErrRateLimited, status)
	}
	return fmt.Errorf("%w: revocation endpoint returned %d", provider.ErrUnavailable, status)
}
