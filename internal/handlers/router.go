package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"redas-backend/internal/config"
	"redas-backend/internal/middleware"
	"redas-backend/internal/repository"
	"redas-backend/internal/service"
	"redas-backend/internal/storage"
	"redas-backend/internal/workflow"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Reports       *service.ReportService
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	Store         storage.Store // optional
	Health        func() map[string]string
	Log           *zap.Logger
}

// NewRouter builds the full API router.
func NewRouter(cfg *config.Config, d Deps) http.Handler {
	authHandler := NewAuthHandler(d.Users, cfg.JWTSecret, d.Log)
	reportHandler := NewReportHandler(d.Reports, d.Store, d.Log)
	notificationHandler := NewNotificationHandler(d.Notifications, d.Log)
	userHandler := NewUserManagementHandler(d.Users, d.Log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("REDAS Report Review API"))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "up"}
		if d.Health != nil {
			health = d.Health()
		}
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		JSON(w, status, health)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.PerMinute(cfg.RateLimit.Auth))
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.CurrentRole(d.Users, d.Log))

		r.Get("/api/auth/me", authHandler.GetMe)

		// Reports. Role checks for each action live in the service.
		r.Route("/api/reports", func(r chi.Router) {
			r.Get("/", reportHandler.List)
			r.Get("/statistics", reportHandler.Statistics)

			r.Group(func(r chi.Router) {
				r.Use(middleware.PerMinute(cfg.RateLimit.Heavy))
				r.Get("/export", reportHandler.Export)
				r.Post("/export/archive", reportHandler.Archive)
			})

			r.Get("/{id}", reportHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.PerMinute(cfg.RateLimit.Write))
				r.Post("/", reportHandler.Create)
				r.Put("/{id}", reportHandler.Update)
				r.Delete("/{id}", reportHandler.Delete)
				r.Post("/{id}/vet", reportHandler.Vet)
				r.Post("/{id}/approve", reportHandler.Approve)
				r.Post("/{id}/reject", reportHandler.Reject)
			})
		})

		// Notifications (caller's own inbox)
		r.Get("/api/notifications", notificationHandler.List)
		r.Get("/api/notifications/unread-count", notificationHandler.UnreadCount)
		r.Post("/api/notifications/mark-all-read", notificationHandler.MarkAllRead)
		r.Post("/api/notifications/{id}/mark-read", notificationHandler.MarkRead)
		r.Delete("/api/notifications/read/all", notificationHandler.DeleteRead)
		r.Delete("/api/notifications/{id}", notificationHandler.Delete)

		// Archived exports and user management are approver-only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(workflow.ApproverRoles...))

			if d.Store != nil {
				r.Get("/api/files/*", NewFileHandler(d.Store, d.Log).ServeFile)
			}
			r.Get("/api/users", userHandler.List)
			r.Put("/api/users/{id}/role", userHandler.UpdateRole)
		})
	})

	return r
}
