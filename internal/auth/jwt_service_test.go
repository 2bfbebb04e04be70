package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateSessionToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	svc, err := NewJWTService(JWTConfig{
		Secret:     "super-secret",
		Issuer:     "veriauth",
		SessionTTL: time.Hour,
		Clock:      func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateSessionToken("user-123", "ada")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateSessionToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "ada", claims.Username)
	require.Equal(t, PurposeSession, claims.Purpose)
	require.Equal(t, "veriauth", claims.Issuer)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestGenerateAndValidateResetToken(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "super-secret", Issuer: "veriauth"})
	require.NoError(t, err)

	token, err := svc.GenerateResetToken("ada@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateResetToken(token)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, PurposeReset, claims.Purpose)
	require.Empty(t, claims.UserID)
}

func TestTokenPurposesDoNotCross(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "super-secret"})
	require.NoError(t, err)

	session, err := svc.GenerateSessionToken("user-123", "ada")
	require.NoError(t, err)
	reset, err := svc.GenerateResetToken("ada@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateResetToken(session)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.ValidateSessionToken(reset)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateSessionTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	svc, err := NewJWTService(JWTConfig{
		Secret:     "super-secret",
		SessionTTL: time.Minute,
		Clock:      func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateSessionToken("user-123", "ada")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateSessionToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateSessionTokenWrongSecret(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret"})
	require.NoError(t, err)

	token, err := issuer.GenerateSessionToken("user-123", "ada")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret"})
	require.NoError(t, err)

	_, err = verifier.ValidateSessionToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateSessionTokenIssuerMismatch(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "super-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := issuer.GenerateSessionToken("user-123", "ada")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "super-secret", Issuer: "veriauth"})
	require.NoError(t, err)

	_, err = verifier.ValidateSessionToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
