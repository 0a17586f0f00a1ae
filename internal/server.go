package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Answerer is what the chat boundary needs from the core: a question and a
// correlation ID in, an answer out.
type Answerer interface {
	Answer(ctx context.Context, chatID, question string) (string, error)
}

// Server is the reference chat front end: a minimal HTTP boundary that maps
// requests onto the orchestrator and error kinds onto user-safe messages.
type Server struct {
	app      *fiber.App
	answerer Answerer
	ready    func() bool
	size     func() int
	validate *validator.Validate
	logger   *slog.Logger
}

type askRequest struct {
	ChatID   string `json:"chat_id"`
	Question string `json:"question" validate:"required"`
}

type askResponse struct {
	ChatID string `json:"chat_id"`
	Answer string `json:"answer"`
}

type errorResponse struct {
	ChatID string `json:"chat_id,omitempty"`
	Error  string `json:"error"`
}

func NewServer(answerer Answerer, ready func() bool, size func() int, logger *slog.Logger) *Server {
	s := &Server{
		answerer: answerer,
		ready:    ready,
		size:     size,
		validate: validator.New(),
		logger:   logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Get("/healthz", s.handleHealth)
	app.Post("/api/v1/ask", s.handleAsk)

	s.app = app
	return s
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("chat endpoint listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"ready":    s.ready(),
		"segments": s.size(),
	})
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req askRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}
	if err := s.validate.Struct(&req); err != nil {
		return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{Error: "question is required"})
	}

	chatID := req.ChatID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	answer, err := s.answerer.Answer(c.UserContext(), chatID, req.Question)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrIndexNotReady) || errors.Is(err, ErrRateLimited) {
			status = http.StatusServiceUnavailable
		}
		// The cause was already logged by the orchestrator; only the
		// user-safe message leaves the process.
		return c.Status(status).JSON(errorResponse{
			ChatID: chatID,
			Error:  UserMessage(err),
		})
	}

	return c.JSON(askResponse{
		ChatID: chatID,
		Answer: answer,
	})
}
