package models

import (
	"time"

	"gorm.io/gorm"
)

// Announcement types.
const (
	TypeSale     = "SALE"
	TypeDonation = "DONATION"
)

// Moderation statuses. PENDING_REVIEW is the initial state; APPROVED and
// REJECTED are terminal for the automated path but any donor edit re-enters
// PENDING_REVIEW.
const (
	StatusPendingReview = "PENDING_REVIEW"
	StatusApproved      = "APPROVED"
	StatusRejected      = "REJECTED"
)

// ValidAnnouncementType reports whether t is a known announcement type.
func ValidAnnouncementType(t string) bool {
	return t == TypeSale || t == TypeDonation
}

// ValidModerationStatus reports whether s is a known moderation status.
func ValidModerationStatus(s string) bool {
	return s == StatusPendingReview || s == StatusApproved || s == StatusRejected
}

// Announcement represents a food listing published by a merchant.
type Announcement struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"type:text;not null" json:"description"`
	Type        string  `gorm:"not null" json:"type"`
	Quantity    float64 `gorm:"not null" json:"quantity"`
	FoodType    string  `gorm:"not null" json:"food_type"`
	// ExpiryDate is date-granular; it must be strictly in the future at
	// creation time.
	ExpiryDate time.Time  `gorm:"not null" json:"expiry_date"`
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	Address    string     `gorm:"not null" json:"address"`

	ModerationStatus string `gorm:"not null;index" json:"moderation_status"`
	// ModerationScore is nil exactly when no classification pass has
	// completed and no human override has reset it.
	ModerationScore *float64 `json:"moderation_score"`

	// ImageKey is the opaque storage key of the listing image.
	ImageKey string `gorm:"not null" json:"image_key"`

	DonorID uint  `gorm:"not null;index" json:"donor_id"`
	Donor   *User `gorm:"foreignKey:DonorID" json:"donor,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
