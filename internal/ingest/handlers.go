package ingest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:id/location", authMiddleware, func(c *fiber.Ctx) error {
		var req Sample
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.DriverID = c.Params("id")

		result, err := svc.Accept(c.Context(), req)
		if err != nil {
			if errors.Is(err, ErrUnknownDriver) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		// Rejections are soft: the client gets the reason, not an error.
		return c.JSON(result)
	})
}
