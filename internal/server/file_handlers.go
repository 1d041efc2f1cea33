package server

import (
	"errors"
	"net/http"

	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// ServeFile handles GET /api/files/:folder/:filename, streaming a stored
// object back to the client. Only known folders are served.
func (s *Server) ServeFile(c *fiber.Ctx) error {
	folder := c.Params("folder")
	if folder != storage.FolderAnnouncements && folder != storage.FolderUsers {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("File", c.Params("filename")))
	}

	filename := c.Params("filename")
	data, err := s.store.Load(folder, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("File", filename))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Set(fiber.HeaderContentType, http.DetectContentType(data))
	c.Set(fiber.HeaderContentDisposition, "inline")
	return c.Send(data)
}
