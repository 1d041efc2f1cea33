// Package service implements the application's business logic.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/repository"
	"github.com/replate/replate-backend/internal/storage"
)

// ClassifyJob identifies one scheduled classification pass: the announcement
// it was launched for and the image key it was launched against. The key acts
// as the content signature for staleness detection.
type ClassifyJob struct {
	AnnouncementID uint
	ImageKey       string
}

// Enqueuer schedules classification jobs. Enqueue never blocks; it reports
// whether the job was accepted.
type Enqueuer interface {
	Enqueue(job ClassifyJob) bool
}

// AnnouncementService orchestrates the announcement moderation pipeline:
// synchronous creation in PENDING_REVIEW, asynchronous classification,
// edit-triggered re-moderation and deletion.
type AnnouncementService struct {
	announcements repository.AnnouncementRepository
	users         repository.UserRepository
	store         storage.Gateway
	queue         Enqueuer
}

// CreateAnnouncementInput carries the fields for a new listing.
type CreateAnnouncementInput struct {
	DonorID     uint
	Title       string
	Description string
	Type        string
	Quantity    float64
	FoodType    string
	ExpiryDate  time.Time
	PickupTime  *time.Time
	Address     string
	ImageName   string
	ImageData   []byte
}

// UpdateAnnouncementInput carries a partial edit. Empty strings leave string
// fields unchanged; nil pointers leave the rest unchanged. A non-empty
// ImageData replaces the stored image.
type UpdateAnnouncementInput struct {
	ID       uint
	CallerID uint

	Title       string
	Description string
	Type        string
	FoodType    string
	Address     string
	Quantity    *float64
	ExpiryDate  *time.Time
	PickupTime  *time.Time

	ImageName string
	ImageData []byte
}

// NewAnnouncementService returns a new AnnouncementService.
func NewAnnouncementService(
	announcements repository.AnnouncementRepository,
	users repository.UserRepository,
	store storage.Gateway,
	queue Enqueuer,
) *AnnouncementService {
	return &AnnouncementService{
		announcements: announcements,
		users:         users,
		store:         store,
		queue:         queue,
	}
}

// Create validates and persists a new announcement in PENDING_REVIEW and
// schedules its classification. It returns as soon as the record is durable;
// the caller always observes PENDING_REVIEW regardless of how fast the
// classifier would answer. Listing visibility must not block on a slow,
// potentially-unavailable external call.
func (s *AnnouncementService) Create(ctx context.Context, in CreateAnnouncementInput) (*models.Announcement, error) {
	donor, err := s.users.GetByID(ctx, in.DonorID)
	if err != nil {
		return nil, err
	}
	if !donor.IsMerchant() {
		return nil, models.NewForbiddenError("Only merchants can create announcements")
	}

	if err := validateAnnouncementFields(in); err != nil {
		return nil, err
	}
	if len(in.ImageData) == 0 {
		return nil, models.NewValidationError("An image is required")
	}

	// Image write failure is fatal: no partial record without its image.
	imageKey, err := s.store.Save(storage.FolderAnnouncements, in.ImageName, in.ImageData)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	a := &models.Announcement{
		Title:            strings.TrimSpace(in.Title),
		Description:      strings.TrimSpace(in.Description),
		Type:             in.Type,
		Quantity:         in.Quantity,
		FoodType:         strings.TrimSpace(in.FoodType),
		ExpiryDate:       in.ExpiryDate,
		PickupTime:       in.PickupTime,
		Address:          strings.TrimSpace(in.Address),
		ModerationStatus: models.StatusPendingReview,
		ModerationScore:  nil,
		ImageKey:         imageKey,
		DonorID:          donor.ID,
	}
	if err := s.announcements.Create(ctx, a); err != nil {
		// The record never existed; don't leave its blob behind.
		if delErr := s.store.Delete(storage.FolderAnnouncements, imageKey); delErr != nil {
			slog.WarnContext(ctx, "failed to clean up image after create failure",
				slog.String("image_key", imageKey), slog.String("error", delErr.Error()))
		}
		return nil, err
	}

	if a.Type == models.TypeDonation {
		if err := s.users.IncrementDonationCount(ctx, donor.ID); err != nil {
			slog.WarnContext(ctx, "failed to bump donation count",
				slog.Uint64("donor_id", uint64(donor.ID)), slog.String("error", err.Error()))
		}
	}

	s.schedule(ctx, a)
	return a, nil
}

// Update applies a donor edit. Any successful edit unconditionally re-enters
// PENDING_REVIEW; replacing the image also reschedules classification.
// Classification and human decisions never persist across a content change.
func (s *AnnouncementService) Update(ctx context.Context, in UpdateAnnouncementInput) (*models.Announcement, error) {
	a, err := s.announcements.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if a.DonorID != in.CallerID {
		return nil, models.NewForbiddenError("You are not allowed to modify this announcement")
	}

	if in.Title != "" {
		a.Title = strings.TrimSpace(in.Title)
	}
	if in.Description != "" {
		a.Description = strings.TrimSpace(in.Description)
	}
	if in.Type != "" {
		if !models.ValidAnnouncementType(in.Type) {
			return nil, models.NewValidationError("Invalid announcement type")
		}
		a.Type = in.Type
	}
	if in.FoodType != "" {
		a.FoodType = strings.TrimSpace(in.FoodType)
	}
	if in.Address != "" {
		a.Address = strings.TrimSpace(in.Address)
	}
	if in.Quantity != nil {
		if *in.Quantity < 0 {
			return nil, models.NewValidationError("Quantity must not be negative")
		}
		a.Quantity = *in.Quantity
	}
	if in.ExpiryDate != nil {
		if !dateInFuture(*in.ExpiryDate) {
			return nil, models.NewValidationError("Expiry date must be in the future")
		}
		a.ExpiryDate = *in.ExpiryDate
	}
	if in.PickupTime != nil {
		a.PickupTime = in.PickupTime
	}

	imageReplaced := len(in.ImageData) > 0
	oldImageKey := a.ImageKey
	if imageReplaced {
		newKey, err := s.store.Save(storage.FolderAnnouncements, in.ImageName, in.ImageData)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		a.ImageKey = newKey
	}

	a.ModerationStatus = models.StatusPendingReview

	if err := s.announcements.Update(ctx, a); err != nil {
		if imageReplaced {
			if delErr := s.store.Delete(storage.FolderAnnouncements, a.ImageKey); delErr != nil {
				slog.WarnContext(ctx, "failed to clean up image after update failure",
					slog.String("image_key", a.ImageKey), slog.String("error", delErr.Error()))
			}
		}
		return nil, err
	}

	if imageReplaced {
		// Old blob cleanup is best-effort; a dangling blob beats a blocked edit.
		if delErr := s.store.Delete(storage.FolderAnnouncements, oldImageKey); delErr != nil {
			slog.WarnContext(ctx, "failed to delete replaced image",
				slog.String("image_key", oldImageKey), slog.String("error", delErr.Error()))
		}
		s.schedule(ctx, a)
	}

	return a, nil
}

// Delete removes the announcement and its stored image. The blob delete is
// best-effort; the record removal is what must succeed.
func (s *AnnouncementService) Delete(ctx context.Context, id, callerID uint) error {
	a, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.DonorID != callerID {
		return models.NewForbiddenError("You are not allowed to delete this announcement")
	}

	if delErr := s.store.Delete(storage.FolderAnnouncements, a.ImageKey); delErr != nil {
		slog.WarnContext(ctx, "failed to delete announcement image",
			slog.String("image_key", a.ImageKey), slog.String("error", delErr.Error()))
	}

	return s.announcements.Delete(ctx, id)
}

// GetByID returns the announcement or NOT_FOUND.
func (s *AnnouncementService) GetByID(ctx context.Context, id uint) (*models.Announcement, error) {
	return s.announcements.GetByID(ctx, id)
}

func (s *AnnouncementService) schedule(ctx context.Context, a *models.Announcement) {
	if s.queue == nil {
		return
	}
	job := ClassifyJob{AnnouncementID: a.ID, ImageKey: a.ImageKey}
	if !s.queue.Enqueue(job) {
		// Fail open: the record stays PENDING_REVIEW for a human.
		slog.WarnContext(ctx, "classification queue full, leaving announcement pending",
			slog.Uint64("announcement_id", uint64(a.ID)))
	}
}

func validateAnnouncementFields(in CreateAnnouncementInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return models.NewValidationError("Title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return models.NewValidationError("Description is required")
	}
	if !models.ValidAnnouncementType(in.Type) {
		return models.NewValidationError("Invalid announcement type")
	}
	if strings.TrimSpace(in.FoodType) == "" {
		return models.NewValidationError("Food type is required")
	}
	if strings.TrimSpace(in.Address) == "" {
		return models.NewValidationError("Address is required")
	}
	if in.Quantity < 0 {
		return models.NewValidationError("Quantity must not be negative")
	}
	if in.ExpiryDate.IsZero() || !dateInFuture(in.ExpiryDate) {
		return models.NewValidationError("Expiry date must be in the future")
	}
	return nil
}

// dateInFuture reports whether the date part of t is strictly after today.
func dateInFuture(t time.Time) bool {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
	return day.After(today)
}
