package server

import (
	"strings"

	"github.com/replate/replate-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetPendingAnnouncements handles GET /api/admin/announcements/pending.
// The review queue is returned oldest first.
func (s *Server) GetPendingAnnouncements(c *fiber.Ctx) error {
	pending, err := s.adminSvc.ListPendingAnnouncements(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	out := make([]AnnouncementResponse, 0, len(pending))
	for i := range pending {
		out = append(out, toAnnouncementResponse(&pending[i]))
	}
	return c.JSON(out)
}

// ModerateAnnouncement handles PUT /api/admin/announcements/moderate/:id.
// The decision comes from the status query parameter.
func (s *Server) ModerateAnnouncement(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	a, err2 := s.adminSvc.Moderate(c.UserContext(), id, status)
	if err2 != nil {
		return models.RespondWithError(c, mapServiceError(err2), err2)
	}

	return c.JSON(toAnnouncementResponse(a))
}

// GetPendingUsers handles GET /api/admin/users/pending.
func (s *Server) GetPendingUsers(c *fiber.Ctx) error {
	users, err := s.adminSvc.ListUnverifiedUsers(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return c.JSON(out)
}

// ValidateUser handles PUT /api/admin/users/validate/:id.
func (s *Server) ValidateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	user, err2 := s.adminSvc.VerifyUser(c.UserContext(), id)
	if err2 != nil {
		return models.RespondWithError(c, mapServiceError(err2), err2)
	}

	return c.JSON(toUserResponse(user))
}
