package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "long local part", in: "foobar@example.com", want: "fo***@example.com"},
		{name: "two char local part", in: "ab@ex.com", want: "***@ex.com"},
		{name: "one char local part", in: "a@ex.com", want: "***@ex.com"},
		{name: "no at sign", in: "no-at-here", want: "***"},
		{name: "two at signs", in: "a@b@c", want: "***"},
		{name: "empty", in: "", want: "***"},
		{name: "unicode local part", in: "юзер@пример.рф", want: "юз***@пример.рф"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Email(tt.in))
		})
	}
}

func TestToken(t *testing.T) {
	require.Equal(t, "[REDACTED_TOKEN]", Token("eyJhbGciOi..."))
	require.Empty(t, Token(""))
}
