package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`            // bad_request, not_found, validation_failed, ...
	Message   string `json:"message"`         // Human-readable message
	Field     string `json:"field,omitempty"` // set for validation errors
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

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "unavailable", msg)
}

// errFromDomain maps service errors onto HTTP responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		reqID, _ := c.Locals("requestid").(string)
		return c.Status(422).JSON(APIError{
			Status:    422,
			Code:      "validation_failed",
			Message:   verr.Message,
			Field:     verr.Field,
			RequestID: reqID,
		})
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return newError(c, 400, "index_out_of_range", err.Error())
	case errors.Is(err, domain.ErrSuperseded):
		return errConflict(c, err.Error())
	case errors.Is(err, domain.ErrNoFeasibleTrip):
		return newError(c, 422, "no_feasible_trip", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, 504, "timeout", err.Error())
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, err.Error())
	}
}
