package middleware

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"pdfupload/internal/logging"
)

// Logger logs each HTTP request as one JSON line with request_id, method,
// path, status and latency (milliseconds). It also stores a request-scoped
// logger in the user context so zerolog.Ctx picks up the request_id downstream.
// It must run after RequestID.
func Logger(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		reqLogger := logger.With().Str("request_id", rid).Logger()
		c.SetUserContext(reqLogger.WithContext(c.UserContext()))

		err := c.Next()

		reqLogger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", responseStatus(c, err)).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Msg("http_request")

		return err
	}
}

// LoggerWithWriter is Logger with a fresh JSON logger writing to w, timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logging.New(w, loc, "info"))
}

// responseStatus returns the status the error handler will send when err is
// non-nil, since it runs only after the middleware chain unwinds.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
