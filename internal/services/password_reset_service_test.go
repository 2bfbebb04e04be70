package services

import (
	"context"
	"errors"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kthomas256/veriauth/internal/auth"
	"github.com/kthomas256/veriauth/internal/database/testutil"
	"github.com/kthomas256/veriauth/internal/models"
	"github.com/kthomas256/veriauth/pkg/crypto"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/mail"
	"github.com/kthomas256/veriauth/pkg/metrics"
)

func newResetTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "reset-test-secret",
		Issuer: "veriauth-test",
	})
	require.NoError(t, err)
	return svc
}

func TestRequestOTPStoresAndSends(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{}
	current := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	svc, err := NewPasswordResetService(db, mailer, newResetTestJWT(t),
		WithResetClock(func() time.Time { return current }),
		WithResetExpiry(5*time.Minute),
	)
	require.NoError(t, err)

	require.NoError(t, svc.RequestOTP(context.Background(), "Someone@Example.com"))

	var record models.ResetOtp
	require.NoError(t, db.First(&record).Error)
	require.Equal(t, "someone@example.com", record.Email)
	require.Len(t, record.Otp, 6)
	require.WithinDuration(t, current.Add(5*time.Minute), record.ExpiresAt, time.Second)

	require.Len(t, mailer.messages, 1)
	require.Contains(t, mailer.messages[0].Body, record.Otp)
}

func TestRequestOTPDeliveryFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{err: errors.New("smtp unreachable")}

	svc, err := NewPasswordResetService(db, mailer, newResetTestJWT(t))
	require.NoError(t, err)

	err = svc.RequestOTP(context.Background(), "fail@example.com")
	require.Error(t, err)
	require.Equal(t, apperrors.ErrDeliveryFailed.Code, apperrors.FromError(err).Code)

	// The stored code survives so a later resend can still succeed.
	var count int64
	require.NoError(t, db.Model(&models.ResetOtp{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRequestOTPDisabledMailerLeavesDeliveryMetricsUntouched(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	mailer := &recordingMailer{err: mail.ErrSMTPDisabled}

	svc, err := NewPasswordResetService(db, mailer, newResetTestJWT(t))
	require.NoError(t, err)

	success := metrics.MailDeliveries.WithLabelValues("success")
	failure := metrics.MailDeliveries.WithLabelValues("failure")
	successBefore := promtestutil.ToFloat64(success)
	failureBefore := promtestutil.ToFloat64(failure)

	require.NoError(t, svc.RequestOTP(context.Background(), "quiet@example.com"))

	require.Equal(t, successBefore, promtestutil.ToFloat64(success))
	require.Equal(t, failureBefore, promtestutil.ToFloat64(failure))
}

func TestVerifyOTPExchangesForSingleUseToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	jwtSvc := newResetTestJWT(t)
	current := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	svc, err := NewPasswordResetService(db, nil, jwtSvc,
		WithResetClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	require.NoError(t, svc.RequestOTP(context.Background(), "carol@example.com"))

	var record models.ResetOtp
	require.NoError(t, db.First(&record).Error)

	_, err = svc.VerifyOTP(context.Background(), "carol@example.com", "999999")
	require.ErrorIs(t, err, apperrors.ErrOTPInvalid)

	token, err := svc.VerifyOTP(context.Background(), "carol@example.com", record.Otp)
	require.NoError(t, err)

	claims, err := jwtSvc.ValidateResetToken(token)
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", claims.Email)

	// The code is consumed on first use.
	_, err = svc.VerifyOTP(context.Background(), "carol@example.com", record.Otp)
	require.ErrorIs(t, err, apperrors.ErrOTPInvalid)
}

func TestVerifyOTPExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	current := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

	svc, err := NewPasswordResetService(db, nil, newResetTestJWT(t),
		WithResetClock(func() time.Time { return current }),
		WithResetExpiry(5*time.Minute),
	)
	require.NoError(t, err)

	require.NoError(t, svc.RequestOTP(context.Background(), "dora@example.com"))

	var record models.ResetOtp
	require.NoError(t, db.First(&record).Error)

	current = current.Add(10 * time.Minute)

	_, err = svc.VerifyOTP(context.Background(), "dora@example.com", record.Otp)
	require.ErrorIs(t, err, apperrors.ErrOTPExpired)

	// Expired codes are swept on contact.
	var count int64
	require.NoError(t, db.Model(&models.ResetOtp{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCommitOverwritesPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	svc, err := NewPasswordResetService(db, nil, newResetTestJWT(t))
	require.NoError(t, err)

	hashed, err := crypto.HashPassword("old password")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Username: "erin",
		Email:    "erin@example.com",
		Password: hashed,
	}).Error)

	require.NoError(t, svc.Commit(context.Background(), "erin@example.com", "new password"))

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "erin@example.com").Error)
	require.False(t, crypto.VerifyPassword(user.Password, "old password"))
	require.True(t, crypto.VerifyPassword(user.Password, "new password"))

	err = svc.Commit(context.Background(), "missing@example.com", "whatever1")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
