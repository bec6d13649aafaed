// Package server exposes the REST API backend: the network-backed
// alternative to the device-local store, with the same register/login and
// links/passwords/events contract the client facade consumes.
package server

import (
	"time"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/kvstore"
)

// tokenTTL bounds issued bearer tokens.
const tokenTTL = 7 * 24 * time.Hour

// Server wires storage and handlers into a fiber application.
type Server struct {
	app     *fiber.App
	log     *zap.Logger
	store   *storage
	signKey []byte
}

// New assembles the API server over the given storage medium.
func New(kv kvstore.Store, log *zap.Logger, signKey []byte) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		log:     log,
		store:   newStorage(kv),
		signKey: signKey,
	}

	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	s.app.Use(recover.New())
	s.app.Use(m.middleware())
	s.app.Use(s.requestLogger())

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	auth := api.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Post("/login", s.handleLogin)

	protected := api.Group("", s.jwtProtected())
	protected.Get("/links", s.handleGetLinks)
	protected.Post("/links", s.handleAddLink)
	protected.Delete("/links/:id", s.handleDeleteLink)

	protected.Get("/passwords", s.handleGetPasswords)
	protected.Post("/passwords", s.handleAddPassword)
	protected.Delete("/passwords/:id", s.handleDeletePassword)

	protected.Get("/events", s.handleGetEvents)
	protected.Post("/events", s.handleAddEvent)
	protected.Put("/events/:id", s.handleUpdateEvent)
	protected.Delete("/events/:id", s.handleDeleteEvent)

	return s
}

// App exposes the fiber application for in-process testing.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until shutdown.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// requestLogger logs one structured line per request.
func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		s.log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)),
		)
		return err
	}
}

// jwtProtected guards the data routes with bearer-token auth.
func (s *Server) jwtProtected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: s.signKey},
		ErrorHandler: func(c *fiber.Ctx, _ error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Please authenticate",
			})
		},
	})
}

// issueToken signs a bearer token for the given user id.
func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
}

// authedUserID extracts the subject of the verified bearer token.
func authedUserID(c *fiber.Ctx) string {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
