package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTripAndTamper(t *testing.T) {
	s := NewSigner("0123456789abcdef0123456789abcdef")

	tok := s.Sign("abc-123")
	got, ok := s.Verify(tok)
	require.True(t, ok)
	require.Equal(t, "abc-123", got)

	_, ok = s.Verify(strings.Replace(tok, "abc", "abd", 1))
	require.False(t, ok, "changed value must not verify")

	_, ok = NewSigner("another-secret-another-secret-xx").Verify(tok)
	require.False(t, ok, "different secret must not verify")

	for _, bad := range []string{"", "novalue", ".sig", "abc.!!!"} {
		_, ok := s.Verify(bad)
		require.False(t, ok, bad)
	}
}

func TestSigner_LongSecret(t *testing.T) {
	s := NewSigner(strings.Repeat("k", 200))
	got, ok := s.Verify(s.Sign("v"))
	require.True(t, ok)
	require.Equal(t, "v", got)
}
