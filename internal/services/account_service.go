package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kthomas256/veriauth/internal/auth"
	"github.com/kthomas256/veriauth/internal/models"
	"github.com/kthomas256/veriauth/pkg/crypto"
	apperrors "github.com/kthomas256/veriauth/pkg/errors"
	"github.com/kthomas256/veriauth/pkg/metrics"
)

// AccountService handles login, profile reads, and self-deletion.
type AccountService struct {
	db  *gorm.DB
	jwt *auth.JWTService
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(db *gorm.DB, jwtService *auth.JWTService) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("account service: jwt service is required")
	}
	return &AccountService{db: db, jwt: jwtService}, nil
}

// Login verifies a username/password pair and issues a session token.
// Unknown usernames and wrong passwords produce the identical error so the
// endpoint cannot be used to enumerate accounts; the unverified state is
// reported distinctly since verification status is not a secret.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	username = strings.TrimSpace(username)

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("account service: find user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsVerified {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", nil, apperrors.ErrUnverified
	}

	token, err := s.jwt.GenerateSessionToken(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("account service: issue session token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return token, &user, nil
}

// Profile returns the account for the given username without the password hash.
func (s *AccountService) Profile(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(username)

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("account service: find user: %w", err)
	}

	return &user, nil
}

// Delete removes the account named by a session token's username claim.
func (s *AccountService) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	result := s.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&models.User{})
	if result.Error != nil {
		return fmt.Errorf("account service: delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
