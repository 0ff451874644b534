package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pdfupload/internal/http/middleware"
)

// errorPayload is the error response body. Detail is human readable; the
// HTTP status is the only machine-readable signal.
type errorPayload struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes the standard JSON error body with the given status.
func writeError(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(errorPayload{
		Detail:    detail,
		RequestID: requestIDFromCtx(c),
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
// Only *fiber.Error messages reach the client; anything else becomes a generic 500.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var e *fiber.Error
		if errors.As(err, &e) {
			return writeError(c, e.Code, e.Message)
		}
		return writeError(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
}
