package models

import (
	"time"

	"github.com/lib/pq"
)

// User represents a customer or admin account.
type User struct {
	BaseModel
	Name         string         `json:"name"`
	Email        string         `gorm:"uniqueIndex" json:"email"`
	Phone        string         `gorm:"uniqueIndex:idx_users_phone,where:phone <> ''" json:"phone"`
	PasswordHash string         `gorm:"column:password_hash" json:"-"`
	Images       pq.StringArray `gorm:"type:text[]" json:"images"`
	IsAdmin      bool           `json:"isAdmin"`
	IsVerified   bool           `gorm:"default:false" json:"isVerified"`
	OTP          *string        `gorm:"column:otp" json:"-"`
	OTPExpires   *time.Time     `gorm:"column:otp_expires" json:"-"`
}

// HasPendingOTP reports whether an OTP is stored and still valid at now.
func (u *User) HasPendingOTP(now time.Time) bool {
	return u.OTP != nil && u.OTPExpires != nil && now.Before(*u.OTPExpires)
}

// ImageUpload records the CDN URLs produced by one upload request.
type ImageUpload struct {
	BaseModel
	Images pq.StringArray `gorm:"type:text[]" json:"images"`
}
