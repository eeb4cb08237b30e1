package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/enviro-meter/firewatch/internal/core/domain"
)

// APIError is the uniform error envelope. The human-readable message
// travels under the "error" key, which is what map frontends key off.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errInvalidInput returns a 400 error.
func errInvalidInput(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "invalid_input", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// mapDomainError translates pipeline errors into the envelope. Each failure
// mode keeps its own code so callers can tell an acquisition problem from an
// inference one, and provider messages pass through unmodified.
func mapDomainError(c *fiber.Ctx, err error) error {
	var invalid *domain.InvalidInputError
	var auth *domain.AuthenticationError
	var provider *domain.ProviderRequestError
	var persist *domain.PersistenceError
	var inference *domain.InferenceUnavailableError

	switch {
	case errors.As(err, &invalid):
		return errInvalidInput(c, invalid.Error())

	case errors.As(err, &auth):
		slog.Error("imagery provider authentication failed",
			"status", auth.Status, "detail", auth.Detail, "error", auth.Err)
		return newError(c, fiber.StatusBadGateway, "auth_failed",
			"imagery provider authentication failed")

	case errors.As(err, &provider):
		return newError(c, fiber.StatusBadGateway, "provider_error", provider.Error())

	case errors.As(err, &persist):
		slog.Error("image persistence failed",
			"op", persist.Op, "path", persist.Path, "error", persist.Err)
		return newError(c, fiber.StatusInternalServerError, "persistence_error",
			"failed to store fetched image")

	case errors.As(err, &inference):
		return newError(c, fiber.StatusBadGateway, "inference_unavailable", inference.Error())

	default:
		return errInternal(c, err.Error())
	}
}
