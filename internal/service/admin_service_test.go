package service

import (
	"context"
	"errors"
	"testing"

	"github.com/replate/replate-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stubs are defined in announcement_service_test.go (same package).

type mailerStub struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
}

func (m *mailerStub) Send(toEmail, subject, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: toEmail, subject: subject})
	return nil
}

func TestAdminService_Moderate_Approve(t *testing.T) {
	t.Parallel()

	score := 7.0
	repo := noopAnnouncementRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Announcement, error) {
		return &models.Announcement{
			ID:               id,
			DonorID:          2,
			ModerationStatus: models.StatusPendingReview,
			ModerationScore:  &score,
		}, nil
	}
	var decidedStatus string
	var decidedScore *float64
	repo.updateModerationFn = func(_ context.Context, _ uint, status string, sc *float64) error {
		decidedStatus = status
		decidedScore = sc
		return nil
	}
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Name: "Marta", Email: "marta@example.com"}, nil
	}
	mailer := &mailerStub{}
	svc := NewAdminService(repo, users, mailer)

	a, err := svc.Moderate(context.Background(), 1, models.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, a.ModerationStatus)
	require.NotNil(t, a.ModerationScore)
	assert.Equal(t, 0.0, *a.ModerationScore, "approval clears the machine score")
	assert.Equal(t, models.StatusApproved, decidedStatus)
	require.NotNil(t, decidedScore)
	assert.Equal(t, 0.0, *decidedScore)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "marta@example.com", mailer.sent[0].to)
}

func TestAdminService_Moderate_RejectKeepsScore(t *testing.T) {
	t.Parallel()

	score := 11.0
	repo := noopAnnouncementRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Announcement, error) {
		return &models.Announcement{
			ID:               id,
			DonorID:          2,
			ModerationStatus: models.StatusPendingReview,
			ModerationScore:  &score,
		}, nil
	}
	var decidedScore *float64 = &score
	repo.updateModerationFn = func(_ context.Context, _ uint, _ string, sc *float64) error {
		decidedScore = sc
		return nil
	}
	svc := NewAdminService(repo, noopUserRepo(), nil)

	a, err := svc.Moderate(context.Background(), 1, models.StatusRejected)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, a.ModerationStatus)
	require.NotNil(t, a.ModerationScore)
	assert.Equal(t, 11.0, *a.ModerationScore, "rejection preserves the score as evidence")
	assert.Nil(t, decidedScore, "rejection leaves the stored score untouched")
}

func TestAdminService_Moderate_CannotSetPending(t *testing.T) {
	t.Parallel()

	repo := noopAnnouncementRepo()
	repo.getByIDFn = func(context.Context, uint) (*models.Announcement, error) {
		t.Fatal("no lookup should happen for an invalid status")
		return nil, nil
	}
	svc := NewAdminService(repo, noopUserRepo(), nil)

	_, err := svc.Moderate(context.Background(), 1, models.StatusPendingReview)
	assertValidationError(t, err)
}

func TestAdminService_Moderate_InvalidStatus(t *testing.T) {
	t.Parallel()

	svc := NewAdminService(noopAnnouncementRepo(), noopUserRepo(), nil)
	_, err := svc.Moderate(context.Background(), 1, "MAYBE")
	assertValidationError(t, err)
}

func TestAdminService_Moderate_NotFound(t *testing.T) {
	t.Parallel()

	repo := noopAnnouncementRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Announcement, error) {
		return nil, models.NewNotFoundError("Announcement", id)
	}
	svc := NewAdminService(repo, noopUserRepo(), nil)

	_, err := svc.Moderate(context.Background(), 99, models.StatusApproved)
	assert.True(t, models.IsNotFound(err))
}

func TestAdminService_Moderate_MailFailureDoesNotFail(t *testing.T) {
	t.Parallel()

	repo := noopAnnouncementRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Announcement, error) {
		return &models.Announcement{ID: id, DonorID: 2, ModerationStatus: models.StatusPendingReview}, nil
	}
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Email: "owner@example.com"}, nil
	}
	svc := NewAdminService(repo, users, &mailerStub{err: errors.New("smtp down")})

	_, err := svc.Moderate(context.Background(), 1, models.StatusApproved)
	require.NoError(t, err)
}

func TestAdminService_ListPendingAnnouncements(t *testing.T) {
	t.Parallel()

	repo := noopAnnouncementRepo()
	repo.listByStatusFn = func(_ context.Context, status string) ([]models.Announcement, error) {
		assert.Equal(t, models.StatusPendingReview, status)
		return []models.Announcement{{ID: 1}, {ID: 2}}, nil
	}
	svc := NewAdminService(repo, noopUserRepo(), nil)

	list, err := svc.ListPendingAnnouncements(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAdminService_VerifyUser(t *testing.T) {
	t.Parallel()

	t.Run("marks user verified and notifies", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "Omar", Email: "omar@example.com", Role: models.RoleMerchant}, nil
		}
		var verifiedID uint
		users.setVerifiedFn = func(_ context.Context, id uint) error {
			verifiedID = id
			return nil
		}
		mailer := &mailerStub{}
		svc := NewAdminService(noopAnnouncementRepo(), users, mailer)

		u, err := svc.VerifyUser(context.Background(), 4)
		require.NoError(t, err)
		assert.True(t, u.Verified)
		assert.Equal(t, uint(4), verifiedID)
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "omar@example.com", mailer.sent[0].to)
	})

	t.Run("already verified fails", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Verified: true}, nil
		}
		svc := NewAdminService(noopAnnouncementRepo(), users, nil)

		_, err := svc.VerifyUser(context.Background(), 4)
		assertValidationError(t, err)
	})

	t.Run("not found propagates", func(t *testing.T) {
		t.Parallel()
		users := noopUserRepo()
		users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		}
		svc := NewAdminService(noopAnnouncementRepo(), users, nil)

		_, err := svc.VerifyUser(context.Background(), 99)
		assert.True(t, models.IsNotFound(err))
	})
}
