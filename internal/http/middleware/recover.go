package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Recover turns panics into errors for the global error handler and logs the stack.
func Recover() fiber.Handler {
	return fiberrecover.New(fiberrecover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			zerolog.Ctx(c.UserContext()).Error().
				Interface("panic", e).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
		},
	})
}
