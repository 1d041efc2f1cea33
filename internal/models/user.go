// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Role is the explicit discriminator between the admin and
// merchant variants; merchant-only fields stay zero-valued for admins.
const (
	RoleAdmin    = "ADMIN"
	RoleMerchant = "MERCHANT"
)

// User represents an account in the Replate application.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"unique;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Role     string `gorm:"not null;index" json:"role"`
	Verified bool   `gorm:"not null;default:false" json:"verified"`
	// ProfileImageKey is the opaque storage key of the profile image.
	ProfileImageKey string `json:"profile_image_key"`

	// Merchant-only payload.
	DonationCount      int    `json:"donation_count"`
	VerificationDocKey string `json:"verification_doc_key,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsMerchant reports whether the user may own announcements.
func (u *User) IsMerchant() bool {
	return u.Role == RoleMerchant
}
