package trip

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Record
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.StationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "station_id required")
		}
		t, err := svc.CreateTrip(c.Context(), req)
		if err != nil {
			if errors.Is(err, ErrBadCoordinates) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		stationID := c.Query("station_id")
		if stationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "station_id required")
		}
		trips, err := svc.ListByStation(c.Context(), stationID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trips)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		t, err := svc.GetTrip(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrTripNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(t)
	})

	r.Post("/:id/accept", authMiddleware, func(c *fiber.Ctx) error {
		driverID, _ := c.Locals("driver_id").(string)
		if driverID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "driver identity required")
		}
		t, err := svc.Accept(c.Context(), c.Params("id"), driverID)
		if err != nil {
			switch {
			case errors.Is(err, ErrTripNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrTripUnavailable):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, ErrStationMismatch), errors.Is(err, ErrDriverUnknown):
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(t)
	})

	r.Post("/:id/decline", authMiddleware, func(c *fiber.Ctx) error {
		driverID, _ := c.Locals("driver_id").(string)
		if driverID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "driver identity required")
		}
		if err := svc.Decline(c.Context(), c.Params("id"), driverID); err != nil {
			switch {
			case errors.Is(err, ErrTripNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrWrongStatus), errors.Is(err, ErrNotCandidate):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/complete", authMiddleware, func(c *fiber.Ctx) error {
		driverID, _ := c.Locals("driver_id").(string)
		if driverID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "driver identity required")
		}
		t, err := svc.Complete(c.Context(), c.Params("id"), driverID)
		if err != nil {
			switch {
			case errors.Is(err, ErrTripNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrNotOwner):
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			case errors.Is(err, ErrWrongStatus):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(t)
	})
}
