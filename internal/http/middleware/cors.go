package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"pdfupload/internal/config"
)

// CORS applies the configured cross-origin policy.
// A wildcard origin combined with credentials is served by echoing the
// request Origin, since browsers reject "*" on credentialed responses.
func CORS(cfg config.CORSConfig) fiber.Handler {
	c := cors.Config{
		AllowMethods:     strings.Join(expandWildcard(cfg.AllowMethods, allMethods), ","),
		AllowHeaders:     strings.Join(cfg.AllowHeaders, ","),
		AllowCredentials: cfg.AllowCredentials,
	}
	if c.AllowHeaders == "*" {
		// Empty makes fiber reflect Access-Control-Request-Headers.
		c.AllowHeaders = ""
	}

	origins := strings.Join(cfg.AllowOrigins, ",")
	if origins == "*" && cfg.AllowCredentials {
		c.AllowOriginsFunc = func(string) bool { return true }
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

var allMethods = []string{
	fiber.MethodGet,
	fiber.MethodPost,
	fiber.MethodHead,
	fiber.MethodPut,
	fiber.MethodDelete,
	fiber.MethodPatch,
	fiber.MethodOptions,
}

func expandWildcard(values, all []string) []string {
	for _, v := range values {
		if v == "*" {
			return all
		}
	}
	return values
}
