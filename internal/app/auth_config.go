package app

import (
	"github.com/kthomas256/veriauth/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	sessionTTL := c.JWT.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = auth.DefaultSessionTokenTTL
	}

	resetTTL := c.JWT.ResetTTL
	if resetTTL <= 0 {
		resetTTL = auth.DefaultResetTokenTTL
	}

	return auth.JWTConfig{
		Secret:     c.JWT.Secret,
		Issuer:     c.JWT.Issuer,
		SessionTTL: sessionTTL,
		ResetTTL:   resetTTL,
	}
}
