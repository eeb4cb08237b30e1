package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/enviro-meter/firewatch/internal/pkg/logging"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDLogMiddleware builds a per-request *slog.Logger with the Fiber
// request ID baked in and stores it in the user context, where the pipeline
// services pick it up via logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, ok := c.Locals("requestid").(string)
		if !ok || rid == "" {
			return c.Next()
		}

		reqLogger := slog.Default().With("request_id", rid)

		// Root the user context in the request context so downstream work
		// stops when the connection does.
		ctx := context.WithValue(c.Context(), requestIDKey, rid)
		ctx = logging.IntoContext(ctx, reqLogger)
		c.SetUserContext(ctx)

		return c.Next()
	}
}
