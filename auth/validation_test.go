package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentials(t *testing.T) {
	testCases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "valid", email: "a@b.co", password: "x", want: nil},
		{name: "missing email", email: "", password: "x", want: auth.ErrEmailRequired},
		{name: "missing password", email: "a@b.co", password: "", want: auth.ErrPasswordRequired},
		{name: "spaces are a password", email: "a@b.co", password: "   ", want: nil},
		{name: "no domain", email: "a@", password: "x", want: auth.ErrEmailMalformed},
		{name: "inner space", email: "a b@c.co", password: "x", want: auth.ErrEmailMalformed},
		{name: "dotted domain", email: "a@.co", password: "x", want: auth.ErrEmailMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, auth.ValidateCredentials(tc.email, tc.password))
		})
	}
}

func TestDescribe(t *testing.T) {
	require.Empty(t, auth.Describe(nil))
	require.Equal(t, "Invalid email or password.", auth.Describe(auth.ErrInvalidCredentials))
	require.Contains(t, auth.Describe(auth.ErrNetwork), "connection")
	require.Contains(t, auth.Describe(auth.ErrConcurrentRequest), "in progress")
	require.Equal(t, "Something went wrong. Please try again.", auth.Describe(auth.ErrEmailMalformed))
}
