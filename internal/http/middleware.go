package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/core"
)

const channelKey = "channelID"

// rateLimiter allows maxReq requests per second per client
func rateLimiter(maxReq int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          maxReq,
		Expiration:   1 * time.Second,
		KeyGenerator: clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.CodeRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	})
}

// clientKey prefers the first X-Forwarded-For hop over the remote address
func clientKey(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	return c.IP()
}

// channelParam validates :channelId and stores it for the handlers
func channelParam(c *fiber.Ctx) error {
	params := channelParams{ChannelID: c.Params("channelId")}
	if resp := checkRequest(&params); resp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}
	c.Locals(channelKey, params.ChannelID)
	return c.Next()
}
