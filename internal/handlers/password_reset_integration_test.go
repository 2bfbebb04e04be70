package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kthomas256/veriauth/internal/handlers/testutil"
	"github.com/kthomas256/veriauth/internal/models"
)

func requestResetOTP(t *testing.T, env *testutil.Env, email string) string {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/auth/request-otp", map[string]string{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var record models.ResetOtp
	require.NoError(t, env.DB.Order("created_at DESC").First(&record, "email = ?", email).Error)
	return record.Otp
}

func exchangeResetOTP(t *testing.T, env *testutil.Env, email, otp string) string {
	t.Helper()

	w := env.Request(http.MethodPost, "/api/auth/verify-otp",
		map[string]string{"email": email, "otp": otp}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		ResetToken string `json:"reset_token"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &result)
	require.NotEmpty(t, result.ResetToken)
	return result.ResetToken
}

func TestPasswordReset_FullFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("gina", "gina@example.com", "OldPassword1!")
	env.VerifyByOTP("gina@example.com")

	otp := requestResetOTP(t, env, "gina@example.com")
	resetToken := exchangeResetOTP(t, env, "gina@example.com", otp)

	w := env.Request(http.MethodPost, "/api/auth/reset-password",
		map[string]string{"new_password": "NewPassword1!"}, resetToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old password is dead, new one works.
	old := env.Request(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "gina", "password": "OldPassword1!"}, "")
	require.Equal(t, http.StatusUnauthorized, old.Code)

	env.Login("gina", "NewPassword1!")
}

func TestPasswordReset_OTPIsSingleUse(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("hana", "hana@example.com", "OldPassword1!")
	env.VerifyByOTP("hana@example.com")

	otp := requestResetOTP(t, env, "hana@example.com")
	exchangeResetOTP(t, env, "hana@example.com", otp)

	replay := env.Request(http.MethodPost, "/api/auth/verify-otp",
		map[string]string{"email": "hana@example.com", "otp": otp}, "")
	require.Equal(t, http.StatusBadRequest, replay.Code)
	require.Equal(t, "OTP_INVALID", testutil.DecodeResponse(t, replay).Error.Code)
}

func TestPasswordReset_ExpiredOTP(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("iris", "iris@example.com", "OldPassword1!")

	otp := requestResetOTP(t, env, "iris@example.com")
	env.Advance(10 * time.Minute)

	w := env.Request(http.MethodPost, "/api/auth/verify-otp",
		map[string]string{"email": "iris@example.com", "otp": otp}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "OTP_EXPIRED", testutil.DecodeResponse(t, w).Error.Code)
}

func TestPasswordReset_UnknownEmailSilent(t *testing.T) {
	env := testutil.NewEnv(t)

	// Requesting a code for an unknown address still reports success.
	w := env.Request(http.MethodPost, "/api/auth/request-otp",
		map[string]string{"email": "stranger@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPasswordReset_TokenRequired(t *testing.T) {
	env := testutil.NewEnv(t)

	missing := env.Request(http.MethodPost, "/api/auth/reset-password",
		map[string]string{"new_password": "NewPassword1!"}, "")
	require.Equal(t, http.StatusUnauthorized, missing.Code)
	require.Equal(t, "UNAUTHORIZED", testutil.DecodeResponse(t, missing).Error.Code)

	garbage := env.Request(http.MethodPost, "/api/auth/reset-password",
		map[string]string{"new_password": "NewPassword1!"}, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, garbage.Code)
	require.Equal(t, "TOKEN_INVALID", testutil.DecodeResponse(t, garbage).Error.Code)
}

func TestPasswordReset_SessionTokenRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("jack", "jack@example.com", "OldPassword1!")
	env.VerifyByOTP("jack@example.com")
	login := env.Login("jack", "OldPassword1!")

	w := env.Request(http.MethodPost, "/api/auth/reset-password",
		map[string]string{"new_password": "NewPassword1!"}, login.Token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "TOKEN_INVALID", testutil.DecodeResponse(t, w).Error.Code)
}

func TestPasswordReset_ExpiredResetToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("kate", "kate@example.com", "OldPassword1!")
	env.VerifyByOTP("kate@example.com")

	otp := requestResetOTP(t, env, "kate@example.com")
	resetToken := exchangeResetOTP(t, env, "kate@example.com", otp)

	env.Advance(20 * time.Minute)

	w := env.Request(http.MethodPost, "/api/auth/reset-password",
		map[string]string{"new_password": "NewPassword1!"}, resetToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "TOKEN_EXPIRED", testutil.DecodeResponse(t, w).Error.Code)
}
