package router

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func HttpRealIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if xForwardedFor := c.Get(http.CanonicalHeaderKey("X-Forwarded-For")); xForwardedFor != "" {
			first, _, _ := strings.Cut(xForwardedFor, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				c.Locals("remote_ip", ip)
			}
		} else if xRealIP := c.Get(http.CanonicalHeaderKey("X-Real-IP")); xRealIP != "" {
			c.Locals("remote_ip", strings.TrimSpace(xRealIP))
		}
		return c.Next()
	}
}

// HttpRequestID tags every request with an X-Request-ID, reusing the one sent
// by the client, and stores it under the "request_id" local for logging.
func HttpRequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: "request_id",
	})
}
