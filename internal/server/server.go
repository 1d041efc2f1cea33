// Package server contains HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/replate/replate-backend/internal/cache"
	"github.com/replate/replate-backend/internal/config"
	"github.com/replate/replate-backend/internal/database"
	"github.com/replate/replate-backend/internal/mail"
	"github.com/replate/replate-backend/internal/middleware"
	"github.com/replate/replate-backend/internal/models"
	"github.com/replate/replate-backend/internal/repository"
	"github.com/replate/replate-backend/internal/service"
	"github.com/replate/replate-backend/internal/storage"
	"github.com/replate/replate-backend/internal/vision"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	tokenIssuer   = "replate-api"
	tokenAudience = "replate-client"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	store           storage.Gateway
	userRepo        repository.UserRepository
	announcementSvc *service.AnnouncementService
	adminSvc        *service.AdminService
	worker          *service.ModerationWorker
	validate        *validator.Validate

	workerCancel context.CancelFunc
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if cfg.AdminPassword != "" {
		if err := database.EnsureAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("admin seed failed: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.Client()

	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)

	classifier := vision.NewHTTPClassifier(cfg.ClassifierURL,
		time.Duration(cfg.ClassifierTimeoutMS)*time.Millisecond)

	worker := service.NewModerationWorker(announcementRepo, store, classifier,
		cfg.ModerationThreshold, cfg.ModerationWorkers, cfg.ModerationQueueSize,
		time.Duration(cfg.ClassifierTimeoutMS)*time.Millisecond*2)

	// A nil *SMTPMailer must stay a nil interface so notification sending
	// is skipped cleanly.
	var mailer mail.Mailer
	if m := mail.NewSMTPMailer(cfg); m != nil {
		mailer = m
	}

	return &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		store:           store,
		userRepo:        userRepo,
		announcementSvc: service.NewAnnouncementService(announcementRepo, userRepo, store, worker),
		adminSvc:        service.NewAdminService(announcementRepo, userRepo, mailer),
		worker:          worker,
		validate:        validator.New(),
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Request ID for tracing
	app.Use(requestid.New())

	// Panic recovery
	app.Use(recover.New())

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware
	app.Use(middleware.RequestLogger(slog.Default()))

	// CORS middleware
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health check
	api.Get("/", s.HealthCheck)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, "signup", 3, 10*time.Minute), s.Signup)
	auth.Post("/signin", middleware.RateLimit(s.redis, "signin", 10, 5*time.Minute), s.Signin)

	// Stored files (announcement images, profile images)
	api.Get("/files/:folder/:filename", s.ServeFile)

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	announcements := protected.Group("/announcements")
	announcements.Post("/", middleware.RateLimit(s.redis, "create_announcement", 10, time.Minute), s.CreateAnnouncement)
	announcements.Put("/:id", s.UpdateAnnouncement)
	announcements.Delete("/:id", s.DeleteAnnouncement)
	announcements.Get("/:id", s.GetAnnouncement)

	admin := protected.Group("/admin", s.RoleRequired(models.RoleAdmin))
	admin.Get("/announcements/pending", s.GetPendingAnnouncements)
	admin.Put("/announcements/moderate/:id", s.ModerateAnnouncement)
	admin.Get("/users/pending", s.GetPendingUsers)
	admin.Put("/users/validate/:id", s.ValidateUser)
}

// HealthCheck handles health check requests
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "Replate",
		"version": "1.0.0",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(s.config.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token claims"))
		}

		if issuer, issuerOk := claims["iss"].(string); !issuerOk || issuer != tokenIssuer {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token issuer"))
		}
		if audience, audienceOk := claims["aud"].(string); !audienceOk || audience != tokenAudience {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token audience"))
		}

		sub, ok := claims["sub"].(string)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid subject claim"))
		}

		userID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		role, _ := claims["role"].(string)

		c.Locals("userID", uint(userID))
		c.Locals("role", role)

		return c.Next()
	}
}

// RoleRequired returns middleware that rejects callers without the given role.
// It must run after AuthRequired.
func (s *Server) RoleRequired(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		callerRole, _ := c.Locals("role").(string)
		if callerRole != role {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Insufficient permissions"))
		}
		return c.Next()
	}
}

// generateToken creates a signed JWT for the given user.
func (s *Server) generateToken(userID uint, role string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"iss":  tokenIssuer,
		"aud":  tokenAudience,
		"exp":  now.Add(time.Hour * 24 * 7).Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// StartWorkers launches the background moderation worker pool.
func (s *Server) StartWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.workerCancel = cancel
	s.worker.Start(ctx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.worker != nil {
		if err := s.worker.Shutdown(ctx); err != nil {
			slog.Warn("error shutting down moderation workers", slog.String("error", err.Error()))
		}
	}
	if s.workerCancel != nil {
		s.workerCancel()
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			slog.Warn("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			slog.Warn("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	slog.Info("Server shutdown complete")
	return nil
}
