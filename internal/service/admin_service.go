package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/replate/replate-backend/internal/mail"
	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/repository"
)

// AdminService implements the human side of moderation: the review queue,
// moderation decisions and merchant account verification.
type AdminService struct {
	announcements repository.AnnouncementRepository
	users         repository.UserRepository
	mailer        mail.Mailer
}

// NewAdminService returns a new AdminService. mailer may be nil, in which
// case decision notifications are skipped.
func NewAdminService(
	announcements repository.AnnouncementRepository,
	users repository.UserRepository,
	mailer mail.Mailer,
) *AdminService {
	return &AdminService{
		announcements: announcements,
		users:         users,
		mailer:        mailer,
	}
}

// ListPendingAnnouncements returns the review queue, oldest first.
func (s *AdminService) ListPendingAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	return s.announcements.ListByStatus(ctx, models.StatusPendingReview)
}

// Moderate records a human decision on an announcement. Only APPROVED and
// REJECTED are accepted; a reviewer resolves the queue, they cannot push an
// item back into it. Approval resets the score to zero so the record carries
// no leftover machine suspicion; rejection keeps the score as evidence.
func (s *AdminService) Moderate(ctx context.Context, id uint, status string) (*models.Announcement, error) {
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, models.NewValidationError("Status must be APPROVED or REJECTED")
	}

	a, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var score *float64
	if status == models.StatusApproved {
		zero := 0.0
		score = &zero
	}

	if err := s.announcements.UpdateModeration(ctx, a.ID, status, score); err != nil {
		return nil, err
	}
	a.ModerationStatus = status
	if score != nil {
		a.ModerationScore = score
	}

	s.notifyDonor(ctx, a)
	return a, nil
}

// ListUnverifiedUsers returns merchant accounts awaiting verification.
func (s *AdminService) ListUnverifiedUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUnverified(ctx)
}

// VerifyUser marks a merchant account as verified.
func (s *AdminService) VerifyUser(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Verified {
		return nil, models.NewValidationError("User is already verified")
	}

	if err := s.users.SetVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	u.Verified = true

	if s.mailer != nil {
		if mailErr := s.mailer.Send(u.Email, "Your account has been verified",
			fmt.Sprintf("Hello %s,\n\nYour account has been verified. You can now publish announcements.", u.Name)); mailErr != nil {
			slog.WarnContext(ctx, "failed to send verification email",
				slog.Uint64("user_id", uint64(u.ID)), slog.String("error", mailErr.Error()))
		}
	}

	return u, nil
}

// notifyDonor emails the announcement's owner about a moderation decision.
// Notification failure never fails the decision.
func (s *AdminService) notifyDonor(ctx context.Context, a *models.Announcement) {
	if s.mailer == nil {
		return
	}
	donor, err := s.users.GetByID(ctx, a.DonorID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load donor for notification",
			slog.Uint64("announcement_id", uint64(a.ID)), slog.String("error", err.Error()))
		return
	}

	var subject, body string
	if a.ModerationStatus == models.StatusApproved {
		subject = "Your announcement has been approved"
		body = fmt.Sprintf("Hello %s,\n\nYour announcement %q has been approved and is now visible.", donor.Name, a.Title)
	} else {
		subject = "Your announcement has been rejected"
		body = fmt.Sprintf("Hello %s,\n\nYour announcement %q has been rejected by our moderation team.", donor.Name, a.Title)
	}

	if err := s.mailer.Send(donor.Email, subject, body); err != nil {
		slog.WarnContext(ctx, "failed to send moderation email",
			slog.Uint64("announcement_id", uint64(a.ID)), slog.String("error", err.Error()))
	}
}
