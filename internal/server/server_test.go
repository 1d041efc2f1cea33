package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/replate/replate-backend/internal/config"
	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/repository"
	"github.com/replate/replate-backend/internal/service"
	"github.com/replate/replate-backend/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Every pooled connection gets its own :memory: database; keep one.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Announcement{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}

// newTestServer builds a Server over in-memory sqlite and a temp-dir storage
// gateway. Classification is not scheduled (no queue), so created
// announcements stay PENDING_REVIEW.
func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()

	db := setupHandlerTestDB(t)
	store, err := storage.NewLocalGateway(t.TempDir())
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	s := &Server{
		config:          &config.Config{JWTSecret: "handler-test-secret-0123456789abcdef"},
		db:              db,
		store:           store,
		userRepo:        userRepo,
		announcementSvc: service.NewAnnouncementService(announcementRepo, userRepo, store, nil),
		adminSvc:        service.NewAdminService(announcementRepo, userRepo, nil),
		validate:        validator.New(),
	}
	return s, db
}

// newTestApp registers routes with a middleware that injects the given
// identity, standing in for AuthRequired.
func newTestApp(s *Server, userID uint, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		c.Locals("role", role)
		return c.Next()
	})

	app.Post("/api/announcements", s.CreateAnnouncement)
	app.Put("/api/announcements/:id", s.UpdateAnnouncement)
	app.Delete("/api/announcements/:id", s.DeleteAnnouncement)
	app.Get("/api/announcements/:id", s.GetAnnouncement)

	admin := app.Group("/api/admin", s.RoleRequired(models.RoleAdmin))
	admin.Get("/announcements/pending", s.GetPendingAnnouncements)
	admin.Put("/announcements/moderate/:id", s.ModerateAnnouncement)
	admin.Get("/users/pending", s.GetPendingUsers)
	admin.Put("/users/validate/:id", s.ValidateUser)

	app.Get("/api/files/:folder/:filename", s.ServeFile)
	return app
}

func seedMerchant(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	u := &models.User{
		Name:     "Merchant",
		Email:    email,
		Password: string(hashed),
		Address:  "1 Market Square",
		Role:     models.RoleMerchant,
		Verified: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return u
}

func seedAdmin(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	hashed, _ := bcrypt.GenerateFromPassword([]byte("admin-password"), bcrypt.MinCost)
	u := &models.User{
		Name:     "Admin",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
		Verified: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return u
}

type announcementForm struct {
	title       string
	description string
	typ         string
	quantity    string
	foodType    string
	expiryDate  string
	address     string
	imageName   string
	imageData   []byte
}

func defaultAnnouncementForm() announcementForm {
	return announcementForm{
		title:       "Surplus vegetables",
		description: "Crates of carrots and potatoes",
		typ:         models.TypeDonation,
		quantity:    "12.5",
		foodType:    "Produce",
		expiryDate:  time.Now().AddDate(0, 0, 5).Format(expiryDateLayout),
		address:     "1 Market Square",
		imageName:   "veg.jpg",
		imageData:   []byte("fake-jpeg-bytes"),
	}
}

func multipartAnnouncementRequest(t *testing.T, method, target string, form announcementForm) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fields := map[string]string{
		"title":       form.title,
		"description": form.description,
		"type":        form.typ,
		"quantity":    form.quantity,
		"foodType":    form.foodType,
		"expiryDate":  form.expiryDate,
		"address":     form.address,
	}
	for k, v := range fields {
		if v != "" {
			if err := w.WriteField(k, v); err != nil {
				t.Fatalf("write field %s: %v", k, err)
			}
		}
	}
	if form.imageData != nil {
		part, err := w.CreateFormFile("imageFile", form.imageName)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := part.Write(form.imageData); err != nil {
			t.Fatalf("write image part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeAnnouncement(t *testing.T, resp *http.Response) AnnouncementResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out AnnouncementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode announcement response: %v", err)
	}
	return out
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// drainWorker runs jobs from the worker pool until the queue is empty.
func drainWorker(t *testing.T, w *service.ModerationWorker) {
	t.Helper()
	w.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Shutdown(ctx); err != nil {
		t.Fatalf("worker shutdown: %v", err)
	}
}
