package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/feed"
	"github.com/Matanel980/TaxiBot-sub003/internal/marker"
	"github.com/Matanel980/TaxiBot-sub003/internal/presence"
	"github.com/Matanel980/TaxiBot-sub003/internal/stream"
	"github.com/Matanel980/TaxiBot-sub003/internal/trip"
	"github.com/Matanel980/TaxiBot-sub003/internal/view"
	"github.com/Matanel980/TaxiBot-sub003/internal/zone"
)

var errNoDatabase = errors.New("database unavailable")

// station is the live serving state for one taxi station: its aggregated
// view, presence tracker and the feed consumer keeping them current.
type station struct {
	view    *view.View
	tracker *presence.Tracker
	cancel  context.CancelFunc
}

func (s *Server) station(stationID string) *station {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stations[stationID]; ok {
		return st
	}

	v := view.New(view.Loaders{
		Drivers: func(ctx context.Context) ([]driver.State, error) {
			if s.DB == nil {
				return nil, errNoDatabase
			}
			return s.drivers.ListByStation(ctx, stationID)
		},
		Trips: func(ctx context.Context) ([]trip.Record, error) {
			if s.DB == nil {
				return nil, errNoDatabase
			}
			return s.trips.ListByStation(ctx, stationID)
		},
		Zones: func(ctx context.Context) ([]zone.Zone, error) {
			if s.DB == nil {
				return nil, errNoDatabase
			}
			return s.zones.ListByStation(ctx, stationID)
		},
	})

	tracker := presence.NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	st := &station{view: v, tracker: tracker, cancel: cancel}

	if s.Redis != nil {
		sink := &relaySink{view: v, hub: s.Stream, stationID: stationID}
		sub := feed.NewSubscriber(s.Redis, stationID, sink, s.Cfg.ResyncDebounce, s.Log)
		go sub.Run(ctx)
		go tracker.Listen(ctx, s.Redis, stationID, s.Log)
		go presence.SyncLoop(ctx, s.Redis, stationID, s.Cfg.HeartbeatTTL/3, s.Log)
	} else if s.DB != nil {
		v.Resync(ctx)
	}

	s.stations[stationID] = st
	return st
}

// snapshot is the first frame of every stream connection.
func (s *Server) snapshot(stationID string) (any, error) {
	st := s.station(stationID)
	st.view.SetPresence(st.tracker.Snapshot())
	return st.view.Snapshot(), nil
}

// markers feeds the per-connection interpolation ticker with the latest
// persisted driver positions.
func (s *Server) markers(stationID string) []stream.Target {
	snap := s.station(stationID).view.Snapshot()

	targets := make([]stream.Target, 0, len(snap.Drivers))
	for id, d := range snap.Drivers {
		if !d.HasFix() {
			continue
		}
		targets = append(targets, stream.Target{
			DriverID: id,
			Pos:      marker.Position{Lat: *d.Lat, Lng: *d.Lng},
			Heading:  d.Heading,
		})
	}
	return targets
}

// relaySink applies feed events to the station view and relays effective
// changes to connected observers as patch frames. No-op patches stop
// here; observers never see them.
type relaySink struct {
	view      *view.View
	hub       *stream.Hub
	stationID string
}

type patchFrame struct {
	Type  string `json:"type"`
	Table string `json:"table,omitempty"`
	Data  any    `json:"data"`
}

func (r *relaySink) ApplyDriverPatch(d driver.State) bool {
	if !r.view.ApplyDriverPatch(d) {
		return false
	}
	r.broadcast(patchFrame{Type: "patch", Table: "drivers", Data: d})
	return true
}

func (r *relaySink) ApplyTripPatch(t trip.Record) bool {
	if !r.view.ApplyTripPatch(t) {
		return false
	}
	r.broadcast(patchFrame{Type: "patch", Table: "trips", Data: t})
	return true
}

func (r *relaySink) ApplyZonePatch(z zone.Zone) bool {
	if !r.view.ApplyZonePatch(z) {
		return false
	}
	r.broadcast(patchFrame{Type: "patch", Table: "zones", Data: z})
	return true
}

func (r *relaySink) Driver(id string) (driver.State, bool) {
	return r.view.Driver(id)
}

func (r *relaySink) Resync(ctx context.Context) {
	r.view.Resync(ctx)
	r.broadcast(patchFrame{Type: "resync", Data: r.view.Snapshot()})
}

func (r *relaySink) broadcast(f patchFrame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	r.hub.Broadcast(r.stationID, payload)
}
