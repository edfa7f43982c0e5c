package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/observability"
	"github.com/Matanel980/TaxiBot-sub003/internal/shared/geo"
	"github.com/Matanel980/TaxiBot-sub003/internal/trip"
	"github.com/Matanel980/TaxiBot-sub003/internal/zone"

	"github.com/redis/go-redis/v9"
)

// Sink is the aggregated view the subscriber patches into. Satisfied by
// *view.View.
type Sink interface {
	ApplyDriverPatch(d driver.State) bool
	ApplyTripPatch(t trip.Record) bool
	ApplyZonePatch(z zone.Zone) bool
	Driver(id string) (driver.State, bool)
	Resync(ctx context.Context)
}

// Subscriber consumes a station's change feed and keeps the view
// current. Driver rows are re-validated on the way in: a write that
// slipped past ingestion validation must not corrupt display state.
type Subscriber struct {
	rdb       *redis.Client
	stationID string
	sink      Sink
	debounce  time.Duration
	log       *slog.Logger

	mu          sync.Mutex
	resyncTimer *time.Timer
}

func NewSubscriber(rdb *redis.Client, stationID string, sink Sink, debounce time.Duration, log *slog.Logger) *Subscriber {
	if debounce <= 0 {
		debounce = 400 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{rdb: rdb, stationID: stationID, sink: sink, debounce: debounce, log: log}
}

// Run consumes until the context ends, resubscribing with capped
// backoff after transient drops. The view keeps serving its last-known
// state while disconnected; stale data beats an empty board.
func (s *Subscriber) Run(ctx context.Context) {
	delay := time.Second
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn("change feed dropped, resubscribing", "station_id", s.stationID, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	pubsub := s.rdb.PSubscribe(ctx, channelPattern(s.stationID))
	defer pubsub.Close()

	// A reconnect may have missed events; reconcile once on (re)attach.
	s.ForceResync(ctx)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn("malformed feed event", "channel", msg.Channel, "error", err)
				continue
			}
			if ev.Table == "" {
				ev.Table = tableFromChannel(msg.Channel)
			}
			s.Handle(ev)
		}
	}
}

// Handle applies one event. Exported so transports other than redis can
// drive the same dispatch logic.
func (s *Subscriber) Handle(ev Event) {
	observability.FeedEvents.WithLabelValues(ev.Table, ev.Type).Inc()

	switch ev.Table {
	case "drivers":
		s.handleDriver(ev)
	case "trips":
		s.handleTrip(ev)
	case "zones":
		s.handleZone(ev)
	}
}

func (s *Subscriber) handleDriver(ev Event) {
	switch ev.Type {
	case TypeUpdate:
		var d driver.State
		if err := json.Unmarshal(ev.New, &d); err != nil || d.ID == "" {
			s.log.Warn("undecodable driver row", "error", err)
			return
		}
		s.sink.ApplyDriverPatch(s.sanitizeDriver(d))
	case TypeInsert, TypeDelete:
		// Membership changed; a bulk re-fetch is simpler and safer
		// than incremental patching here.
		s.scheduleResync()
	}
}

// sanitizeDriver synthesizes a corrected record when a row carries
// invalid coordinates: the last-known-valid position is retained and
// merged with the other changed fields, so a GPS glitch never makes a
// marker vanish or jump to the origin.
func (s *Subscriber) sanitizeDriver(d driver.State) driver.State {
	if d.Lat != nil && d.Lng != nil && geo.ValidCoordinates(*d.Lat, *d.Lng) {
		return d
	}

	current, ok := s.sink.Driver(d.ID)
	if ok && current.HasFix() {
		s.log.Warn("invalid coordinates in feed event, retaining last valid position", "driver_id", d.ID)
		d.Lat = current.Lat
		d.Lng = current.Lng
		return d
	}

	// No previous fix to fall back on: carry the row minus position.
	d.Lat = nil
	d.Lng = nil
	return d
}

func (s *Subscriber) handleTrip(ev Event) {
	switch ev.Type {
	case TypeInsert, TypeUpdate:
		var t trip.Record
		if err := json.Unmarshal(ev.New, &t); err != nil || t.ID == "" {
			s.log.Warn("undecodable trip row", "error", err)
			return
		}
		s.sink.ApplyTripPatch(t)
	case TypeDelete:
		s.scheduleResync()
	}
}

func (s *Subscriber) handleZone(ev Event) {
	switch ev.Type {
	case TypeInsert, TypeUpdate:
		var z zone.Zone
		if err := json.Unmarshal(ev.New, &z); err != nil || z.ID == "" {
			s.log.Warn("undecodable zone row", "error", err)
			return
		}
		s.sink.ApplyZonePatch(z)
	case TypeDelete:
		s.scheduleResync()
	}
}

// scheduleResync debounces bulk re-fetches so a burst of membership
// changes coalesces into one.
func (s *Subscriber) scheduleResync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resyncTimer != nil {
		s.resyncTimer.Reset(s.debounce)
		return
	}
	s.resyncTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.resyncTimer = nil
		s.mu.Unlock()

		s.ForceResync(context.Background())
	})
}

// ForceResync reconciles immediately, bypassing the debounce. Used on
// reconnect and on explicit visibility-recovery triggers.
func (s *Subscriber) ForceResync(ctx context.Context) {
	observability.FeedResyncs.Inc()
	s.sink.Resync(ctx)
}
