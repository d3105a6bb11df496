package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/example/bazaar/internal/services"
)

var validate = validator.New()

// validateBody parses the request body into dst and runs struct validation.
func validateBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("%s failed on '%s' validation", fe.Field(), fe.Tag()))
		}
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

// respondServiceError translates engine sentinels into HTTP responses.
// Anything unrecognized bubbles up to the fiber error handler as a 500.
func respondServiceError(c *fiber.Ctx, err error) error {
	var stockErr *services.InsufficientStockError
	if errors.As(err, &stockErr) {
		// Carries current stock so the client can clamp the quantity.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":         false,
			"error":           "insufficient stock",
			"product_id":      stockErr.ProductID,
			"available_stock": stockErr.Available,
		})
	}

	switch {
	case errors.Is(err, services.ErrConcurrencyConflict):
		return fiber.NewError(fiber.StatusConflict, "cart was modified by another request, re-fetch and retry")
	case errors.Is(err, services.ErrInsufficientStock):
		return fiber.NewError(fiber.StatusConflict, "insufficient stock")
	case errors.Is(err, services.ErrEmptyCart):
		return fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	case errors.Is(err, services.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "invalid status transition")
	case errors.Is(err, services.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, services.ErrInvalidOAuthState),
		errors.Is(err, services.ErrTokenReused),
		errors.Is(err, services.ErrTokenExpired):
		return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}
	return err
}
