package models

import "time"

// EmailToken is ephemeral proof-of-email-control material tied to a user.
// Registration issues both a link token and an OTP; resends issue an OTP
// only. All tokens for a user are purged on the first successful
// verification through either channel.
type EmailToken struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"index" json:"-"`
	Otp       string    `gorm:"index" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// Live reports whether the token is still usable at the given instant.
func (t *EmailToken) Live(now time.Time) bool {
	return t.ExpiresAt.After(now)
}
