package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	sig, err := s.Sign([]byte("hash"))
	require.NoError(t, err)
	require.True(t, Verify(s.Identity(), []byte("hash"), sig))
	require.False(t, Verify(s.Identity(), []byte("other"), sig))

	restored, err := FromSeedHex(s.SeedHex())
	require.NoError(t, err)
	require.Equal(t, s.Identity(), restored.Identity())

	_, err = FromSeedHex("00ff")
	require.Error(t, err)
}
