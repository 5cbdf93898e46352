package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
)

// HttpCacheInMemory caches GET responses for ttl. Paths starting with one of
// the skip prefixes are always served live. Entries are keyed by path and
// Authorization header so a cached body is never served across tokens.
func HttpCacheInMemory(ttl time.Duration, skip ...string) fiber.Handler {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return cache.New(cache.Config{
		Next: func(c *fiber.Ctx) bool {
			if c.Method() != fiber.MethodGet {
				return true
			}
			for _, prefix := range skip {
				if strings.HasPrefix(c.Path(), prefix) {
					return true
				}
			}
			return false
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Path() + "|" + c.Get(fiber.HeaderAuthorization)
		},
		Expiration: ttl,
	})
}
