package server

import (
	"io"
	"strings"
	"time"

	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// SignupRequest holds the multipart form fields for registration.
type SignupRequest struct {
	Name     string `validate:"required,min=2,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
	Phone    string `validate:"omitempty,max=30"`
	Address  string `validate:"required,max=255"`
}

// SigninRequest is the JSON login payload.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned after a successful signup or signin.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID              uint      `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Address         string    `json:"address,omitempty"`
	Role            string    `json:"role"`
	Verified        bool      `json:"verified"`
	DonationCount   int       `json:"donation_count"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Address:       u.Address,
		Role:          u.Role,
		Verified:      u.Verified,
		DonationCount: u.DonationCount,
		CreatedAt:     u.CreatedAt,
	}
	if u.ProfileImageKey != "" {
		resp.ProfileImageURL = "/api/files/" + storage.FolderUsers + "/" + u.ProfileImageKey
	}
	return resp
}

// Signup handles POST /api/auth/signup. Registration is multipart: account
// fields plus an optional profile image and verification document. New
// accounts are merchants awaiting admin verification.
func (s *Server) Signup(c *fiber.Ctx) error {
	req := SignupRequest{
		Name:     strings.TrimSpace(c.FormValue("name")),
		Email:    strings.ToLower(strings.TrimSpace(c.FormValue("email"))),
		Password: c.FormValue("password"),
		Phone:    strings.TrimSpace(c.FormValue("phone")),
		Address:  strings.TrimSpace(c.FormValue("address")),
	}
	if err := s.validate.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid signup data: "+err.Error()))
	}

	existing, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if existing != nil {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewValidationError("Email already registered"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Phone:    req.Phone,
		Address:  req.Address,
		Role:     models.RoleMerchant,
		Verified: false,
	}

	if name, data, ferr := readFormFile(c, "profileImage"); ferr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, ferr)
	} else if data != nil {
		key, serr := s.store.Save(storage.FolderUsers, name, data)
		if serr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(serr))
		}
		user.ProfileImageKey = key
	}

	if name, data, ferr := readFormFile(c, "verificationDocument"); ferr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, ferr)
	} else if data != nil {
		key, serr := s.store.Save(storage.FolderUsers, name, data)
		if serr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(serr))
		}
		user.VerificationDocKey = key
	}

	if err := s.userRepo.Create(c.UserContext(), user); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Signin handles POST /api/auth/signin.
func (s *Server) Signin(c *fiber.Ctx) error {
	var req SigninRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	user, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid credentials"))
	}

	token, err := s.generateToken(user.ID, user.Role)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(AuthResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// readFormFile reads an optional multipart file field. It returns nil data
// when the field is absent.
func readFormFile(c *fiber.Ctx, field string) (string, []byte, *models.AppError) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", nil, nil
	}

	src, err := file.Open()
	if err != nil {
		return "", nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, models.NewValidationError("Unable to read uploaded file")
	}
	return file.Filename, data, nil
}
