package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jrsteele09/go-auth-session/provider"
)

// Error classes reported by the Controller. Every error a command returns
// matches exactly one of these with errors.Is, and also wraps the underlying
// provider error when there is one.
var (
	ErrValidation          = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNetwork             = errors.New("network failure")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrConcurrentRequest   = errors.New("another authentication request is in progress")
	ErrNoSession           = errors.New("no active session")
	ErrUnsupported         = errors.New("unsupported by provider")
)

type commandError struct {
	op    string
	kind  error
	cause error
}

func (e *commandError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s %s", e.op, e.kind)
	}
	return fmt.Sprintf("%s %s: %s", e.op, e.kind, e.cause)
}

func (e *commandError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// Description is the message shown to the user (store.Describer).
func (e *commandError) Description() string {
	if e.kind == ErrValidation && e.cause != nil {
		msg := e.cause.Error()
		return strings.ToUpper(msg[:1]) + msg[1:] + "."
	}
	return Describe(e.kind)
}

// Describe returns a user-facing message for err.
func Describe(err error) string {
	var ce *commandError
	if errors.As(err, &ce) {
		return ce.Description()
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "Please enter a valid email and password."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the sign-in service. Check your connection and try again."
	case errors.Is(err, ErrProviderUnavailable):
		return "The sign-in service is unavailable. Please try again later."
	case errors.Is(err, ErrConcurrentRequest):
		return "A sign-in request is already in progress."
	case errors.Is(err, ErrNoSession):
		return "You are not signed in."
	case errors.Is(err, ErrUnsupported):
		return "This action is not supported by the sign-in service."
	}
	return "Something went wrong. Please try again."
}

// normalize maps a provider failure onto one of the error classes.
func normalize(op string, err error) error {
	var ce *commandError
	if errors.As(err, &ce) {
		return err
	}
	return &commandError{op: op, kind: classify(err), cause: err}
}

func classify(err error) error {
	switch {
	case errors.Is(err, provider.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, provider.ErrRateLimited), errors.Is(err, provider.ErrUnavailable):
		return ErrProviderUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrNetwork
	}
	return ErrProviderUnavailable
}

// outcome is the metrics label for a settled command.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNoSession):
		return "invalid"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrConcurrentRequest):
		return "rejected"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	}
	return "provider_unavailable"
}
