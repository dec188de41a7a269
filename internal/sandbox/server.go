package sandbox

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/refera-net/refera/internal/config"
)

// Deps aggregates the dependencies the sandbox needs. Nil Users/Intents fall
// back to in-memory implementations.
type Deps struct {
	Cfg     config.Config
	Users   UserRepository
	Intents IntentStore
	Logger  *slog.Logger
}

// Server wraps the Fiber application implementing the platform contract and
// the simulated processor.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the sandbox server and wires its routes.
func New(d Deps) *Server {
	if d.Users == nil {
		d.Users = NewMemoryUserRepository()
	}
	if d.Intents == nil {
		d.Intents = NewMemoryIntentStore()
	}

	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName + " sandbox",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Error responses use the backend's detail shape so the client
		// gateway can surface the message verbatim.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"detail": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	issuer := NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.RefreshSecret, d.Cfg.AccessTTL, d.Cfg.RefreshTTL)
	h := &handlers{users: d.Users, intents: d.Intents, issuer: issuer, logger: d.Logger}

	app.Post("/users/register/", h.initiateRegistration)
	app.Post("/users/register/confirm/", h.confirmRegistration)
	app.Post("/users/login/", h.login)

	app.Get("/users/profile/", h.requireAuth, h.profile)
	app.Get("/dashboard/stats/", h.requireAuth, h.dashboardStats)

	// Simulated payment processor. No bearer credential: the client confirms
	// with the intent's secret alone.
	app.Post("/v1/payment_intents/:id/confirm", h.processorConfirm)

	return &Server{app: app, cfg: d.Cfg}
}

// App exposes the Fiber application for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server on the configured address.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Listener serves on a caller-provided listener, used by end-to-end tests.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
