package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/carebridge/realtime-service/internal/auth"
	"github.com/carebridge/realtime-service/internal/chat"
	"github.com/carebridge/realtime-service/internal/models"
	"github.com/carebridge/realtime-service/internal/repository"
)

// Gateway is the slice of the realtime core the HTTP surface needs.
type Gateway interface {
	Send(ctx context.Context, m *models.Message) (*models.Message, error)
	MarkDelivered(ctx context.Context, messageIDs []string) error
	MarkRead(ctx context.Context, messageIDs []string) error
	History(ctx context.Context, doctorID, patientID string, limit int64, before time.Time) ([]*models.Message, error)
	PresenceStatus(ctx context.Context, userID string) (bool, error)
	OnlineUsers() ([]string, error)
}

type Server struct {
	gw  Gateway
	log *zap.SugaredLogger
}

// New builds the fiber app. socketHandler runs each upgraded connection; it
// is injected so the HTTP wiring stays independent of the socket transport.
func New(gw Gateway, validator *auth.Validator, log *zap.SugaredLogger, socketHandler func(*fiberws.Conn)) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(Recovery(log))
	s := &Server{gw: gw, log: log}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(socketHandler))

	api := app.Group("/api/v1", RequireAuth(validator))
	api.Post("/messages", s.sendMessage)
	api.Post("/messages/delivered", s.markDelivered)
	api.Post("/messages/read", s.markRead)
	api.Get("/threads/:doctorId/:patientId/messages", s.threadHistory)
	api.Get("/presence/online", s.onlineUsers)
	api.Get("/presence/:userId", s.checkStatus)

	return app
}

type sendRequest struct {
	DoctorID   string      `json:"doctorId"`
	PatientID  string      `json:"patientId"`
	SenderRole models.Role `json:"senderRole"`
	Text       string      `json:"text"`
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	msg, err := s.gw.Send(c.Context(), &models.Message{
		DoctorID:   req.DoctorID,
		PatientID:  req.PatientID,
		SenderRole: req.SenderRole,
		Text:       req.Text,
	})
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, chat.ErrEligibilityDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		s.log.Errorw("send failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

type statusRequest struct {
	MessageIDs []string `json:"messageIds"`
}

func (s *Server) markDelivered(c *fiber.Ctx) error {
	return s.markStatus(c, s.gw.MarkDelivered)
}

func (s *Server) markRead(c *fiber.Ctx) error {
	return s.markStatus(c, s.gw.MarkRead)
}

func (s *Server) markStatus(c *fiber.Ctx, apply func(context.Context, []string) error) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	err := apply(c.Context(), req.MessageIDs)
	switch {
	case errors.Is(err, chat.ErrNoMessageIDs), errors.Is(err, repository.ErrNoValidIDs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no valid message ids"})
	case err != nil:
		s.log.Errorw("status update failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

func (s *Server) threadHistory(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid before timestamp"})
		}
		before = t
	}
	msgs, err := s.gw.History(c.Context(), c.Params("doctorId"), c.Params("patientId"), limit, before)
	if err != nil {
		s.log.Errorw("history fetch failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (s *Server) onlineUsers(c *fiber.Ctx) error {
	ids, err := s.gw.OnlineUsers()
	if errors.Is(err, chat.ErrNotInitialized) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"online": ids})
}

func (s *Server) checkStatus(c *fiber.Ctx) error {
	userID := c.Params("userId")
	online, err := s.gw.PresenceStatus(c.Context(), userID)
	if errors.Is(err, chat.ErrNotInitialized) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.JSON(fiber.Map{"userId": userID, "isOnline": online})
}
