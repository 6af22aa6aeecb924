package handlers

import (
	"errors"

	"puzzle-bar/services"
	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
)

// respondError writes the JSON error response for a service error.
func respondError(c *fiber.Ctx, err error) error {
	var (
		notFound   *services.NotFoundError
		duplicate  *services.DuplicateParticipantError
		redemption *services.InvalidRedemptionError
		cart       *services.InvalidCartError
		session    *services.PaymentSessionError
		failed     *services.PaymentFailedError
		transition *services.InvalidTransitionError
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFound.Error(), "entity": notFound.Entity})
	case errors.As(err, &duplicate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": duplicate.Error(), "entity": "participant"})
	case errors.As(err, &redemption):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  redemption.Error(),
			"entity": "redemption",
			"max":    redemption.Max,
		})
	case errors.As(err, &cart):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": cart.Error(), "entity": "cart"})
	case errors.As(err, &session):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment provider unavailable", "entity": "payment"})
	case errors.As(err, &failed):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": failed.Error(), "entity": "order"})
	case errors.As(err, &transition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": transition.Error(), "entity": "order"})
	case errors.As(err, &fiberErr):
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	utils.LogError("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
