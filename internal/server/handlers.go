package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/errs"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// authUser is the user shape returned to clients; it never carries the hash.
type authUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

func errResponse(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}

// handleRegister creates an account and returns the user with a bearer token.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return errResponse(c, fiber.StatusBadRequest, "Name, email and password are required")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, "Internal server error")
	}
	u, err := s.store.createUser(c.Context(), req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return errResponse(c, fiber.StatusConflict, "User already exists")
		}
		return errResponse(c, fiber.StatusInternalServerError, "Internal server error")
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, "Internal server error")
	}
	s.log.Info("user registered", zap.String("userID", u.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":  authUser{ID: u.ID, Name: u.Name, Email: u.Email, IsAuthenticated: true},
		"token": token,
	})
}

// handleLogin verifies credentials and returns the user with a bearer token.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	u, err := s.store.userByEmail(c.Context(), req.Email)
	if err != nil || !verifyPassword(req.Password, u.PwdHash) {
		// same response for unknown email and wrong password
		return errResponse(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(fiber.Map{
		"user":  authUser{ID: u.ID, Name: u.Name, Email: u.Email, IsAuthenticated: true},
		"token": token,
	})
}

// --- links ---

func (s *Server) handleGetLinks(c *fiber.Ctx) error {
	docs, err := s.store.links.GetAll(c.Context(), authedUserID(c))
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []linkDoc{}
	}
	return c.JSON(docs)
}

func (s *Server) handleAddLink(c *fiber.Ctx) error {
	var doc linkDoc
	if err := c.BodyParser(&doc); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	doc.UserID = authedUserID(c)
	if doc.CreatedAt == 0 {
		doc.CreatedAt = time.Now().UnixMilli()
	}
	stored, err := s.store.links.Add(c.Context(), doc.UserID, doc)
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

func (s *Server) handleDeleteLink(c *fiber.Ctx) error {
	if err := s.store.links.Delete(c.Context(), authedUserID(c), c.Params("id")); err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}

// --- passwords ---

func (s *Server) handleGetPasswords(c *fiber.Ctx) error {
	docs, err := s.store.passwords.GetAll(c.Context(), authedUserID(c))
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []passwordDoc{}
	}
	return c.JSON(docs)
}

func (s *Server) handleAddPassword(c *fiber.Ctx) error {
	var doc passwordDoc
	if err := c.BodyParser(&doc); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	doc.UserID = authedUserID(c)
	if doc.LastUpdated == 0 {
		doc.LastUpdated = time.Now().UnixMilli()
	}
	stored, err := s.store.passwords.Add(c.Context(), doc.UserID, doc)
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

func (s *Server) handleDeletePassword(c *fiber.Ctx) error {
	if err := s.store.passwords.Delete(c.Context(), authedUserID(c), c.Params("id")); err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}

// --- events ---

func (s *Server) handleGetEvents(c *fiber.Ctx) error {
	docs, err := s.store.events.GetAll(c.Context(), authedUserID(c))
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []eventDoc{}
	}
	return c.JSON(docs)
}

func (s *Server) handleAddEvent(c *fiber.Ctx) error {
	var doc eventDoc
	if err := c.BodyParser(&doc); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	doc.UserID = authedUserID(c)
	stored, err := s.store.events.Add(c.Context(), doc.UserID, doc)
	if err != nil {
		return errResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

// handleUpdateEvent replaces the event in place; a missing id is a silent
// no-op, mirroring the tolerant-update contract of the storage layer.
func (s *Server) handleUpdateEvent(c *fiber.Ctx) error {
	var doc eventDoc
	if err := c.BodyParser(&doc); err != nil {
		return errResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	doc.ID = c.Params("id")
	doc.UserID = authedUserID(c)
	if err := s.store.events.Update(c.Context(), doc.UserID, doc); err != nil {
		return errResponse(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(doc)
}

func (s *Server) handleDeleteEvent(c *fiber.Ctx) error {
	if err := s.store.events.Delete(c.Context(), authedUserID(c), c.Params("id")); err != nil {
		return errResponse(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}
