package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kthomas256/veriauth/internal/auth"
	"github.com/kthomas256/veriauth/internal/models"
	"github.com/kthomas256/veriauth/pkg/crypto"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/logger"
	"github.com/kthomas256/veriauth/pkg/mail"
	"github.com/kthomas256/veriauth/pkg/metrics"
)

const (
	defaultResetOtpExpiry = 5 * time.Minute
	resetSubject          = "Your password reset code"
)

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetExpiry overrides the OTP lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService drives the request → verify → commit reset flow. The
// OTP is keyed by email and single-use; a successful verification exchanges
// it for a short-lived signed reset token that authorises the commit.
type PasswordResetService struct {
	db         *gorm.DB
	mailer     mail.Mailer
	jwt        *auth.JWTService
	expiry     time.Duration
	codeDigits int
	now        func() time.Time
	log        *zap.Logger
}

// NewPasswordResetService constructs the service with the provided dependencies.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, jwtService *auth.JWTService, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("password reset service: jwt service is required")
	}

	service := &PasswordResetService{
		db:         db,
		mailer:     mailer,
		jwt:        jwtService,
		expiry:     defaultResetOtpExpiry,
		codeDigits: defaultVerificationCodeDigits,
		now:        time.Now,
		log:        logger.WithModule("password-reset"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RequestOTP stores and dispatches a fresh reset code. It succeeds whether or
// not the email belongs to a real account, so this endpoint alone cannot be
// used to probe for registered addresses.
func (s *PasswordResetService) RequestOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	otp, err := crypto.NumericCode(s.codeDigits)
	if err != nil {
		return fmt.Errorf("password reset service: generate otp: %w", err)
	}

	record := &models.ResetOtp{
		Email:     email,
		Otp:       otp,
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("password reset service: store otp: %w", err)
	}

	if s.mailer != nil {
		msg := mail.Message{
			To:      email,
			Subject: resetSubject,
			Body:    fmt.Sprintf("Your password reset code is: %s\n\nIt expires in %s.\n", otp, s.expiry),
		}
		err := s.mailer.Send(ctx, msg)
		switch {
		case errors.Is(err, mail.ErrSMTPDisabled):
			// Nothing was sent, so neither delivery counter moves.
		case err != nil:
			metrics.MailDeliveries.WithLabelValues("failure").Inc()
			s.log.Warn("reset email failed", zap.Error(err))
			return apperrors.ErrDeliveryFailed.WithInternal(err)
		default:
			metrics.MailDeliveries.WithLabelValues("success").Inc()
		}
	}

	return nil
}

// VerifyOTP validates an (email, otp) pair and exchanges it for a reset token.
// The matched record is deleted before the token is minted so the code can
// never be replayed, even if the exchange fails downstream.
func (s *PasswordResetService) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	otp = strings.TrimSpace(otp)

	var record models.ResetOtp
	err := s.db.WithContext(ctx).
		Where("email = ? AND otp = ?", email, otp).
		Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrOTPInvalid
		}
		return "", fmt.Errorf("password reset service: find otp: %w", err)
	}

	if record.ExpiresAt.Before(s.now()) {
		// Hygiene only; an expired code can never proceed.
		if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
			s.log.Warn("delete expired reset otp failed", zap.Error(err))
		}
		return "", apperrors.ErrOTPExpired
	}

	if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
		return "", fmt.Errorf("password reset service: consume otp: %w", err)
	}

	token, err := s.jwt.GenerateResetToken(email)
	if err != nil {
		return "", fmt.Errorf("password reset service: mint reset token: %w", err)
	}

	return token, nil
}

// Commit overwrites the password hash of the account named by an already
// verified reset claim. The reset token itself stays valid until its expiry;
// the exposure window is bounded by the token TTL.
func (s *PasswordResetService) Commit(ctx context.Context, email, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Update("password", hashed)
	if result.Error != nil {
		return fmt.Errorf("password reset service: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
