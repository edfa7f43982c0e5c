package driver

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
)

// FeedPublisher pushes row-change events after state mutations so live
// views track online flips and zone moves. Satisfied by feed.Publisher;
// nil disables publishing.
type FeedPublisher interface {
	Publish(ctx context.Context, stationID, table, eventType string, oldRow, newRow any) error
}

func RegisterRoutes(r fiber.Router, store *Store, pub FeedPublisher, authMiddleware fiber.Handler) {
	publish := func(ctx context.Context, eventType string, oldRow any, d State) {
		if pub == nil {
			return
		}
		_ = pub.Publish(ctx, d.StationID, "drivers", eventType, oldRow, d)
	}

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req State
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.StationID == "" || req.Name == "" || req.Phone == "" {
			return fiber.NewError(fiber.StatusBadRequest, "station_id, name and phone required")
		}
		d, err := store.Create(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		publish(c.Context(), "insert", nil, d)
		return c.Status(fiber.StatusCreated).JSON(d)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		stationID := c.Query("station_id")
		if stationID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "station_id required")
		}
		drivers, err := store.ListByStation(c.Context(), stationID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(drivers)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		d, err := store.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(d)
	})

	setOnline := func(c *fiber.Ctx, online bool) error {
		id := c.Params("id")
		before, err := store.Get(c.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if err := store.SetOnline(c.Context(), id, online); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		after := before
		after.Online = online
		publish(c.Context(), "update", before, after)
		return c.JSON(after)
	}

	r.Post("/:id/online", authMiddleware, func(c *fiber.Ctx) error {
		return setOnline(c, true)
	})

	r.Post("/:id/offline", authMiddleware, func(c *fiber.Ctx) error {
		return setOnline(c, false)
	})

	r.Post("/:id/zone", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			ZoneID *string `json:"zone_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		id := c.Params("id")
		before, err := store.Get(c.Context(), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if err := store.AssignZone(c.Context(), id, req.ZoneID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		after := before
		after.ZoneID = req.ZoneID
		publish(c.Context(), "update", before, after)
		return c.JSON(after)
	})
}
