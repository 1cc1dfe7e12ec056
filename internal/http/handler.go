// Package http serves a read-only admin API over the live game sessions.
package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/render"
	"github.com/Dzavoy/Discord-Chess-Bot/internal/service"
)

const rateLimitRate = 10 // req/sec

type HTTPHandler struct {
	svc *service.Service
}

func NewHTTPHandler(svc *service.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func NewFiberApp(svc *service.Service, devMode bool) *fiber.App {
	h := NewHTTPHandler(svc)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		ReadTimeout:  10 * time.Second,
		// long polls hold the response for up to service.WaitTimeout
		WriteTimeout:          service.WaitTimeout + 5*time.Second,
		IdleTimeout:           30 * time.Second,
		DisableStartupMessage: true,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check (no rate limit)
	app.Get("/health", h.Health)

	maxReq := rateLimitRate
	if devMode {
		maxReq = rateLimitRate * 2
	}
	api := app.Group("/api/v1", rateLimiter(maxReq))

	api.Get("/games", h.ListGames)
	api.Get("/games/:channelId", channelParam, h.GetGame)
	api.Get("/games/:channelId/board", channelParam, h.GetBoard)

	return app
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.CodeInternalError,
	}

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		response.Error = fe.Message
		switch code {
		case fiber.StatusNotFound:
			response.Code = core.CodeGameNotFound
		case fiber.StatusBadRequest:
			response.Code = core.CodeInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.CodeRateLimitExceeded
		}
	case errors.Is(err, core.ErrGameNotFound):
		code = fiber.StatusNotFound
		response.Error = err.Error()
		response.Code = core.CodeGameNotFound
	}

	return c.Status(code).JSON(response)
}

// Health reports liveness, session count and archive state
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:   "healthy",
		Time:     time.Now().Unix(),
		Sessions: h.svc.Count(),
		Storage:  h.svc.StorageHealth(),
	})
}

// ListGames returns every live session ordered by channel id
func (h *HTTPHandler) ListGames(c *fiber.Ctx) error {
	snaps := h.svc.Snapshots()
	resp := GamesResponse{Games: make([]GameResponse, 0, len(snaps)), Count: len(snaps)}
	for _, snap := range snaps {
		resp.Games = append(resp.Games, newGameResponse(snap))
	}
	return c.JSON(resp)
}

// GetGame returns a channel's game. With wait=true it long-polls until the
// game moves past version.
func (h *HTTPHandler) GetGame(c *fiber.Ctx) error {
	channelID := c.Locals(channelKey).(string)

	var q gameQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid query",
			Code:    core.CodeInvalidRequest,
			Details: err.Error(),
		})
	}

	if !q.Wait {
		snap, err := h.svc.Lookup(channelID)
		if err != nil {
			return err
		}
		return c.JSON(newGameResponse(snap))
	}

	snap, err := h.svc.WaitForChange(c.UserContext(), channelID, q.Version)
	if err != nil {
		return err
	}
	return c.JSON(newGameResponse(snap))
}

// GetBoard returns a channel's board as ASCII, emoji names or unicode glyphs
func (h *HTTPHandler) GetBoard(c *fiber.Ctx) error {
	channelID := c.Locals(channelKey).(string)

	var q boardQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(core.ErrorResponse{
			Error:   "invalid query",
			Code:    core.CodeInvalidRequest,
			Details: err.Error(),
		})
	}
	if resp := checkRequest(&q); resp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
	if q.Format == "" {
		q.Format = "ascii"
	}

	snap, err := h.svc.Lookup(channelID)
	if err != nil {
		return err
	}

	resp := BoardResponse{FEN: snap.FEN, Format: q.Format}
	switch q.Format {
	case "raw":
		resp.Board = render.Raw(snap.Board)
	case "emoji":
		noEmoji := func(string) (string, bool) { return "", false }
		resp.Board, err = render.Text(snap.Board, render.WithFallback(noEmoji), q.Border)
		if err != nil {
			return err
		}
	default:
		resp.Board = snap.Board.ToASCII()
	}
	return c.JSON(resp)
}
