package stream

import (
	"encoding/json"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/marker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SnapshotFunc returns the full station state sent as the first frame of
// every new connection.
type SnapshotFunc func(stationID string) (any, error)

// MarkerSource returns the latest persisted marker targets for a station.
// The per-connection ticker interpolates between successive results.
type MarkerSource func(stationID string) []Target

type Target struct {
	DriverID string
	Pos      marker.Position
	Heading  float64
}

type Options struct {
	Snapshot      SnapshotFunc
	Markers       MarkerSource
	FrameInterval time.Duration
	MarkerConfig  marker.Config
}

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func RegisterRoutes(r fiber.Router, hub *Hub, opts Options) {
	interval := opts.FrameInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	r.Get("/ws/:stationID", websocket.New(func(c *websocket.Conn) {
		stationID := c.Params("stationID")
		client := hub.Register(stationID, uuid.NewString())
		defer hub.Unregister(client)

		if opts.Snapshot != nil {
			if snap, err := opts.Snapshot(stationID); err == nil {
				if payload, err := json.Marshal(frame{Type: "snapshot", Data: snap}); err == nil {
					if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				}
			}
		}

		quit := make(chan struct{})
		done := make(chan struct{})
		go writeLoop(c, client, stationID, opts, interval, quit, done)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		close(quit)
		<-done
	}))
}

// writeLoop is the single writer for the connection: broadcast payloads
// pass through as-is, marker frames are sampled on the ticker.
func writeLoop(c *websocket.Conn, client *Client, stationID string, opts Options, interval time.Duration, quit, done chan struct{}) {
	defer close(done)

	var tracks *marker.TrackSet
	var tick <-chan time.Time
	if opts.Markers != nil {
		tracks = marker.NewTrackSet(opts.MarkerConfig)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-quit:
			return
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case now := <-tick:
			targets := opts.Markers(stationID)
			seen := make(map[string]struct{}, len(targets))
			for _, target := range targets {
				tracks.SetTarget(target.DriverID, target.Pos, target.Heading)
				seen[target.DriverID] = struct{}{}
			}
			tracks.Retain(seen)
			frames := tracks.Frames(now)
			if len(frames) == 0 {
				continue
			}
			payload, err := json.Marshal(frame{Type: "markers", Data: frames})
			if err != nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
