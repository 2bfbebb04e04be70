package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kthomas256/veriauth/internal/models"
	"github.com/kthomas256/veriauth/pkg/crypto"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/logger"
	"github.com/kthomas256/veriauth/pkg/mail"
	"github.com/kthomas256/veriauth/pkg/metrics"
)

const (
	defaultVerificationExpiry     = 5 * time.Minute
	defaultVerificationTokenBytes = 32
	defaultVerificationCodeDigits = 6
	verificationSubject           = "Verify your email address"
)

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationBaseURL sets the base URL used in verification links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *VerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the credential lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// RegisterInput captures the fields required to create an account.
type RegisterInput struct {
	DisplayName string
	Username    string
	Email       string
	Password    string
}

// VerificationService implements registration and the dual-channel email
// verification flow: a link token and a numeric OTP are issued together and
// either one proves control of the address.
type VerificationService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	baseURL     string
	expiry      time.Duration
	tokenLength int
	codeDigits  int
	now         func() time.Time
	log         *zap.Logger
}

// NewVerificationService constructs the service with the provided dependencies.
func NewVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}

	service := &VerificationService{
		db:          db,
		mailer:      mailer,
		expiry:      defaultVerificationExpiry,
		tokenLength: defaultVerificationTokenBytes,
		codeDigits:  defaultVerificationCodeDigits,
		now:         time.Now,
		log:         logger.WithModule("verification"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Register creates an unverified account, issues a verification credential
// carrying both a link token and an OTP, and dispatches the email. A failed
// dispatch does not roll back the account; it is surfaced as DeliveryFailed
// so the caller can offer a resend.
func (s *VerificationService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.TrimSpace(input.Username)

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	switch {
	case err == nil:
		return nil, apperrors.ErrConflict
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("verification service: check email: %w", err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("verification service: hash password: %w", err)
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Password:    hashed,
	}

	var credential *models.EmailToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		var txErr error
		credential, txErr = s.issueCredential(tx, user.ID, true)
		return txErr
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("verification service: create account: %w", err)
	}

	body := s.registrationBody(user.ID, credential)
	if err := s.dispatch(ctx, email, body); err != nil {
		return user, apperrors.ErrDeliveryFailed.WithInternal(err)
	}

	return user, nil
}

// VerifyLink consumes a link-channel credential. Missing and expired tokens
// produce the same error so the endpoint cannot be probed for existence.
func (s *VerificationService) VerifyLink(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return apperrors.ErrVerificationNotFound
	}

	var credential models.EmailToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Take(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.Verifications.WithLabelValues("link", "failure").Inc()
			return apperrors.ErrVerificationNotFound
		}
		return fmt.Errorf("verification service: find token: %w", err)
	}

	return s.consume(ctx, &credential, "link")
}

// VerifyOTP consumes a code-channel credential, resolving the account by email.
func (s *VerificationService) VerifyOTP(ctx context.Context, email, otp string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	otp = strings.TrimSpace(otp)

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}

	var credential models.EmailToken
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND otp = ?", user.ID, otp).
		Take(&credential).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.Verifications.WithLabelValues("otp", "failure").Inc()
			return apperrors.ErrVerificationNotFound
		}
		return fmt.Errorf("verification service: find otp: %w", err)
	}

	return s.consume(ctx, &credential, "otp")
}

// Resend replaces a stale verification credential with a fresh OTP-only one.
// While an unexpired credential exists the request is rejected, which bounds
// how often mail can be triggered for one account.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return apperrors.ErrAlreadyVerified
	}

	var credential *models.EmailToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()

		// Touch the account row before checking the cooldown. The write
		// takes a row lock held until commit, so concurrent resends for
		// the same account serialise on every supported driver and the
		// count below always sees the winner's insert.
		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("updated_at", now).Error; err != nil {
			return err
		}

		// Replace-if-stale inside one transaction so concurrent resends
		// cannot leave two live credentials behind.
		if err := tx.Where("user_id = ? AND expires_at <= ?", user.ID, now).
			Delete(&models.EmailToken{}).Error; err != nil {
			return err
		}

		var live int64
		if err := tx.Model(&models.EmailToken{}).
			Where("user_id = ? AND expires_at > ?", user.ID, now).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return apperrors.ErrCooldownActive
		}

		var txErr error
		credential, txErr = s.issueCredential(tx, user.ID, false)
		return txErr
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("verification service: resend: %w", err)
	}

	if err := s.dispatch(ctx, email, s.resendBody(credential.Otp)); err != nil {
		return apperrors.ErrDeliveryFailed.WithInternal(err)
	}

	return nil
}

func (s *VerificationService) issueCredential(tx *gorm.DB, userID string, withLink bool) (*models.EmailToken, error) {
	otp, err := crypto.NumericCode(s.codeDigits)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	credential := &models.EmailToken{
		UserID:    userID,
		Otp:       otp,
		ExpiresAt: s.now().Add(s.expiry),
	}

	if withLink {
		token, err := crypto.GenerateToken(s.tokenLength)
		if err != nil {
			return nil, fmt.Errorf("generate link token: %w", err)
		}
		credential.Token = token
	}

	if err := tx.Create(credential).Error; err != nil {
		return nil, err
	}

	return credential, nil
}

// consume marks the account verified and purges every outstanding credential
// for it, so neither a stale link nor a stale OTP survives a success.
func (s *VerificationService) consume(ctx context.Context, credential *models.EmailToken, channel string) error {
	if !credential.Live(s.now()) {
		metrics.Verifications.WithLabelValues(channel, "failure").Inc()
		return apperrors.ErrVerificationNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", credential.UserID).
			Update("is_verified", true).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", credential.UserID).
			Delete(&models.EmailToken{}).Error
	})
	if err != nil {
		return fmt.Errorf("verification service: consume credential: %w", err)
	}

	metrics.Verifications.WithLabelValues(channel, "success").Inc()
	return nil
}

func (s *VerificationService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("verification service: find user: %w", err)
	}
	return &user, nil
}

func (s *VerificationService) dispatch(ctx context.Context, email, body string) error {
	if s.mailer == nil {
		return nil
	}

	msg := mail.Message{
		To:      email,
		Subject: verificationSubject,
		Body:    body,
	}
	err := s.mailer.Send(ctx, msg)
	switch {
	case errors.Is(err, mail.ErrSMTPDisabled):
		// Nothing was sent, so neither delivery counter moves.
		return nil
	case err != nil:
		metrics.MailDeliveries.WithLabelValues("failure").Inc()
		s.log.Warn("verification email failed", zap.Error(err))
		return err
	}

	metrics.MailDeliveries.WithLabelValues("success").Inc()
	return nil
}

func (s *VerificationService) verificationLink(userID, token string) string {
	if s.baseURL == "" {
		return fmt.Sprintf("/verify-email?token=%s&id=%s", token, userID)
	}
	return fmt.Sprintf("%s/verify-email?token=%s&id=%s", s.baseURL, token, userID)
}

func (s *VerificationService) registrationBody(userID string, credential *models.EmailToken) string {
	link := s.verificationLink(userID, credential.Token)
	return fmt.Sprintf(
		"Welcome!\n\nConfirm your email address by visiting the link below:\n%s\n\nOr enter this code: %s\n\nThe link and code expire in %s.\n",
		link, credential.Otp, s.expiry,
	)
}

func (s *VerificationService) resendBody(otp string) string {
	return fmt.Sprintf("Your verification code is: %s\n\nIt expires in %s.\n", otp, s.expiry)
}
