package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/service"
	"github.com/replate/replate-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
)

const expiryDateLayout = "2006-01-02"

// AnnouncementResponse is the API view of an announcement.
type AnnouncementResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             string     `json:"type"`
	Quantity         float64    `json:"quantity"`
	FoodType         string     `json:"food_type"`
	ExpiryDate       string     `json:"expiry_date"`
	PickupTime       *time.Time `json:"pickup_time,omitempty"`
	Address          string     `json:"address"`
	ModerationStatus string     `json:"moderation_status"`
	ModerationScore  *float64   `json:"moderation_score,omitempty"`
	ImageURL         string     `json:"image_url"`
	DonorID          uint       `json:"donor_id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toAnnouncementResponse(a *models.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:               a.ID,
		Title:            a.Title,
		Description:      a.Description,
		Type:             a.Type,
		Quantity:         a.Quantity,
		FoodType:         a.FoodType,
		ExpiryDate:       a.ExpiryDate.Format(expiryDateLayout),
		PickupTime:       a.PickupTime,
		Address:          a.Address,
		ModerationStatus: a.ModerationStatus,
		ModerationScore:  a.ModerationScore,
		ImageURL:         "/api/files/" + storage.FolderAnnouncements + "/" + a.ImageKey,
		DonorID:          a.DonorID,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// CreateAnnouncement handles POST /api/announcements. The request is
// multipart form data with an imageFile part. The response always carries
// PENDING_REVIEW; classification runs in the background.
func (s *Server) CreateAnnouncement(c *fiber.Ctx) error {
	in := service.CreateAnnouncementInput{
		DonorID:     currentUserID(c),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Type:        c.FormValue("type"),
		FoodType:    c.FormValue("foodType"),
		Address:     c.FormValue("address"),
	}

	if v := c.FormValue("quantity"); v != "" {
		qty, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid quantity"))
		}
		in.Quantity = qty
	} else {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Quantity is required"))
	}

	expiry, err := parseExpiryDate(c.FormValue("expiryDate"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	in.ExpiryDate = expiry

	if v := c.FormValue("pickupTime"); v != "" {
		pickup, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid pickup time"))
		}
		in.PickupTime = &pickup
	}

	name, data, ferr := readFormFile(c, "imageFile")
	if ferr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, ferr)
	}
	if data == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("An image is required"))
	}
	in.ImageName = name
	in.ImageData = data

	a, err2 := s.announcementSvc.Create(c.UserContext(), in)
	if err2 != nil {
		return models.RespondWithError(c, mapServiceError(err2), err2)
	}

	return c.Status(fiber.StatusCreated).JSON(toAnnouncementResponse(a))
}

// UpdateAnnouncement handles PUT /api/announcements/:id. All fields are
// optional; a new imageFile part replaces the stored image.
func (s *Server) UpdateAnnouncement(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	in := service.UpdateAnnouncementInput{
		ID:          id,
		CallerID:    currentUserID(c),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Type:        c.FormValue("type"),
		FoodType:    c.FormValue("foodType"),
		Address:     c.FormValue("address"),
	}

	if v := c.FormValue("quantity"); v != "" {
		qty, qerr := strconv.ParseFloat(v, 64)
		if qerr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid quantity"))
		}
		in.Quantity = &qty
	}

	if v := c.FormValue("expiryDate"); v != "" {
		expiry, derr := parseExpiryDate(v)
		if derr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, derr)
		}
		in.ExpiryDate = &expiry
	}

	if v := c.FormValue("pickupTime"); v != "" {
		pickup, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid pickup time"))
		}
		in.PickupTime = &pickup
	}

	if name, data, ferr := readFormFile(c, "imageFile"); ferr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, ferr)
	} else if data != nil {
		in.ImageName = name
		in.ImageData = data
	}

	a, err2 := s.announcementSvc.Update(c.UserContext(), in)
	if err2 != nil {
		return models.RespondWithError(c, mapServiceError(err2), err2)
	}

	return c.JSON(toAnnouncementResponse(a))
}

// DeleteAnnouncement handles DELETE /api/announcements/:id.
func (s *Server) DeleteAnnouncement(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	if err := s.announcementSvc.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"message": "Announcement deleted"})
}

// GetAnnouncement handles GET /api/announcements/:id.
func (s *Server) GetAnnouncement(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	a, err := s.announcementSvc.GetByID(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(toAnnouncementResponse(a))
}

func parseExpiryDate(v string) (time.Time, *models.AppError) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, models.NewValidationError("Expiry date is required")
	}
	t, err := time.ParseInLocation(expiryDateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, models.NewValidationError("Expiry date must be formatted as YYYY-MM-DD")
	}
	return t, nil
}
