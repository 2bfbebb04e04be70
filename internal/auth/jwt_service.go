package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionTokenTTL is the fallback validity period for login tokens.
	DefaultSessionTokenTTL = 24 * time.Hour
	// DefaultResetTokenTTL is the fallback validity period for password-reset tokens.
	DefaultResetTokenTTL = 15 * time.Minute

	// PurposeSession marks bearer tokens issued on login.
	PurposeSession = "session"
	// PurposeReset marks bearer tokens issued after password-reset OTP verification.
	PurposeReset = "password_reset"
)

var (
	// ErrTokenExpired is returned for structurally valid tokens past their expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid is returned for any other verification failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
	Clock      func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs. Session tokens
// carry the user identity; reset tokens carry only the verified email.
type Claims struct {
	UserID   string `json:"uid,omitempty"`
	Username string `json:"uname,omitempty"`
	Email    string `json:"email,omitempty"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService issues and validates the signed bearer tokens used by the API.
type JWTService struct {
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewJWTService constructs a JWTService instance from the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTokenTTL
	}

	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        now,
	}, nil
}

// GenerateSessionToken issues a signed login token for the given user.
func (s *JWTService) GenerateSessionToken(userID, username string) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}

	return s.sign(&Claims{
		UserID:   userID,
		Username: username,
		Purpose:  PurposeSession,
	}, userID, s.sessionTTL)
}

// GenerateResetToken issues a signed password-reset token bound to an email.
// The token authorises the final password commit and nothing else.
func (s *JWTService) GenerateResetToken(email string) (string, error) {
	if email == "" {
		return "", errors.New("jwt: email is required")
	}

	return s.sign(&Claims{
		Email:   email,
		Purpose: PurposeReset,
	}, email, s.resetTTL)
}

// ValidateSessionToken parses a login token and returns its claims.
func (s *JWTService) ValidateSessionToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeSession || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ValidateResetToken parses a password-reset token and returns its claims.
func (s *JWTService) ValidateResetToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeReset || claims.Email == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *JWTService) sign(claims *Claims, subject string, ttl time.Duration) (string, error) {
	now := s.now()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
