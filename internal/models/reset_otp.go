package models

import "time"

// ResetOtp is a password-reset one-time code keyed by email rather than by
// account id. A code is single-use: it is deleted the moment it matches,
// before the reset token is minted.
type ResetOtp struct {
	BaseModel

	Email     string    `gorm:"not null;index" json:"email"`
	Otp       string    `gorm:"not null" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}
