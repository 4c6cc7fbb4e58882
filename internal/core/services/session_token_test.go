package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketchat/internal/core/domain"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := NewSessionTokenService("jwt-secret-for-tests", "")
	token, err := svc.GenerateToken("u1", time.Hour)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", userID)
}

func TestSessionTokenRejectsForeignIssuerAndSecret(t *testing.T) {
	svc := NewSessionTokenService("jwt-secret-for-tests", "marketchat")

	foreign, err := NewSessionTokenService("jwt-secret-for-tests", "someone-else").GenerateToken("u1", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	wrongKey, err := NewSessionTokenService("different-secret", "marketchat").GenerateToken("u1", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongKey)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.ValidateToken("not-a-jwt")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
