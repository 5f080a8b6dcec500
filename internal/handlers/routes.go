package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/metrics"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/middleware"
	"github.com/Windi-Fikriyansyah/platfrom_be_missions/internal/models"
)

type Server struct {
	Auth     *AuthHandler
	Google   *GoogleOAuthHandler // nil disables the Google routes
	Missions *MissionHandler
	Payments *PaymentHandler
	Reviews  *ReviewHandler
	Messages *MessageHandler
	Category *CategoryHandler
	Wallet   *WalletHandler
	Health   *HealthHandler

	Guard   *middleware.Guard
	Limiter *middleware.RateLimiter // optional
	Log     logrus.FieldLogger

	AllowOrigins string
}

// NewApp builds the fiber app with the full /api surface.
func NewApp(s Server) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(s.Log),
		AppName:      "missions-api",
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(s.Log))
	if s.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     s.AllowOrigins,
			AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			ExposeHeaders:    "Content-Length",
			AllowCredentials: true,
		}))
	}

	app.Get("/healthz", s.Health.Healthz)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := app.Group("/api")
	if s.Limiter != nil {
		api.Use(s.Limiter.Handler())
	}

	auth := s.Guard.RequireAuth()
	client := s.Guard.RequireRole(models.RoleClient)
	freelance := s.Guard.RequireRole(models.RoleFreelance)

	// public
	api.Post("/auth/register", s.Auth.Register)
	api.Post("/auth/login", s.Auth.Login)
	api.Post("/auth/logout", s.Auth.Logout)
	if s.Google != nil {
		api.Get("/auth/google/start", s.Google.Start)
		api.Get("/auth/google/callback", s.Google.Callback)
	}
	api.Post("/payments/callback", s.Payments.Callback)
	api.Get("/users/:id/reviews", s.Reviews.ListForUser)
	api.Get("/categories", s.Category.List)

	// account
	api.Get("/me", auth, s.Auth.Me)
	api.Patch("/me", auth, s.Auth.UpdateMe)
	api.Delete("/me", auth, s.Auth.DeleteMe)
	api.Get("/wallet", auth, s.Wallet.Statement)
	api.Get("/dashboard", auth, s.Wallet.Dashboard)

	// missions
	api.Get("/missions", s.Missions.List)
	api.Get("/missions/mine", client, s.Missions.Mine)
	api.Get("/missions/:id", s.Missions.Get)
	api.Post("/missions", client, s.Missions.Create)
	api.Patch("/missions/:id", auth, s.Missions.Update)
	api.Delete("/missions/:id", auth, s.Missions.Delete)
	api.Post("/missions/:id/applications", freelance, s.Missions.Apply)
	api.Get("/missions/:id/applications", auth, s.Missions.ListApplications)
	api.Get("/applications/mine", freelance, s.Missions.MyApplications)
	api.Post("/missions/:id/assign", auth, s.Missions.Assign)
	api.Post("/missions/:id/complete", auth, s.Missions.Complete)

	// payments
	api.Post("/missions/:id/payments", auth, s.Payments.Initiate)
	api.Get("/payments", auth, s.Payments.List)
	api.Get("/payments/:id", auth, s.Payments.Get)

	// reviews
	api.Post("/missions/:id/reviews", auth, s.Reviews.Submit)

	// messages
	api.Post("/messages", auth, s.Messages.Send)
	api.Get("/messages/unread", auth, s.Messages.Unread)
	api.Get("/messages/:userId", auth, s.Messages.Conversation)
	api.Patch("/messages/:userId/read", auth, s.Messages.MarkRead)

	return app
}
