package models

// User is a registered account. Username and Email are unique across all
// users; IsVerified starts false and only ever transitions to true.
type User struct {
	BaseModel

	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `gorm:"not null" json:"-"`

	IsVerified bool `gorm:"default:false" json:"is_verified"`
}
