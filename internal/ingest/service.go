package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/observability"
	"github.com/Matanel980/TaxiBot-sub003/internal/shared/geo"

	"github.com/jackc/pgx/v5"
)

var ErrUnknownDriver = errors.New("unknown driver")

// FeedPublisher pushes the change event that lets every connected
// observer learn of a persisted update. It is the only path out of
// ingestion; nothing here calls the display pipeline directly.
type FeedPublisher interface {
	Publish(ctx context.Context, stationID, table, eventType string, oldRow, newRow any) error
}

// Archiver records accepted samples for offline analysis, best effort.
type Archiver interface {
	Archive(ctx context.Context, s Sample) error
}

type Gates struct {
	MinMoveMeters    float64
	MinWriteInterval time.Duration
	MinHeadingDelta  float64
}

func (g Gates) withDefaults() Gates {
	if g.MinMoveMeters == 0 {
		g.MinMoveMeters = 10
	}
	if g.MinWriteInterval == 0 {
		g.MinWriteInterval = 5 * time.Second
	}
	if g.MinHeadingDelta == 0 {
		g.MinHeadingDelta = 5
	}
	return g
}

type Service struct {
	drivers  *driver.Store
	pub      FeedPublisher
	archiver Archiver
	gates    Gates
	log      *slog.Logger
	now      func() time.Time

	// Heartbeat, when set, records driver liveness for every valid
	// sample, including throttled ones. A stationary driver still
	// reports, and reporting is the liveness signal.
	Heartbeat func(ctx context.Context, stationID, driverID string)
}

func NewService(drivers *driver.Store, pub FeedPublisher, archiver Archiver, gates Gates, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		drivers:  drivers,
		pub:      pub,
		archiver: archiver,
		gates:    gates.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// Accept filters and throttles one raw sample. Both gates must pass
// before a position write: movement below the threshold is GPS noise,
// and writes inside the interval would amplify a high-frequency stream.
// Invalid samples are dropped softly; the stored position is never
// overwritten with garbage.
func (s *Service) Accept(ctx context.Context, sample Sample) (Result, error) {
	if !geo.ValidCoordinates(sample.Lat, sample.Lng) {
		observability.SamplesRejected.WithLabelValues("invalid_coordinates").Inc()
		s.log.Warn("rejected sample with invalid coordinates",
			"driver_id", sample.DriverID, "lat", sample.Lat, "lng", sample.Lng)
		return Result{Outcome: OutcomeRejected, Reason: "invalid-coordinates"}, nil
	}
	observability.SamplesAccepted.Inc()

	before, err := s.drivers.Get(ctx, sample.DriverID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrUnknownDriver
		}
		return Result{}, fmt.Errorf("load driver: %w", err)
	}

	if s.Heartbeat != nil {
		s.Heartbeat(ctx, before.StationID, sample.DriverID)
	}

	now := s.now()
	heading := before.Heading
	if sample.Heading != nil {
		heading = geo.NormalizeHeading(*sample.Heading)
	}

	if s.shouldPersistPosition(before, sample, now) {
		if err := s.drivers.UpdatePosition(ctx, sample.DriverID, sample.Lat, sample.Lng, heading, now); err != nil {
			return Result{}, fmt.Errorf("persist position: %w", err)
		}
		observability.SamplesPersisted.Inc()
		after := before
		after.Lat = &sample.Lat
		after.Lng = &sample.Lng
		after.Heading = heading
		after.LastUpdate = &now
		s.afterPersist(ctx, before, after, sample)
		return Result{Outcome: OutcomePersisted}, nil
	}

	if s.shouldPersistHeading(before, sample, heading, now) {
		if err := s.drivers.UpdateHeading(ctx, sample.DriverID, heading, now); err != nil {
			return Result{}, fmt.Errorf("persist heading: %w", err)
		}
		observability.SamplesPersisted.Inc()
		after := before
		after.Heading = heading
		after.LastUpdate = &now
		s.afterPersist(ctx, before, after, sample)
		return Result{Outcome: OutcomeHeadingOnly}, nil
	}

	observability.SamplesThrottled.Inc()
	return Result{Outcome: OutcomeThrottled}, nil
}

func (s *Service) shouldPersistPosition(before driver.State, sample Sample, now time.Time) bool {
	if !before.HasFix() || before.LastUpdate == nil {
		// First fix always writes.
		return true
	}
	dist := geo.HaversineMeters(*before.Lat, *before.Lng, sample.Lat, sample.Lng)
	elapsed := now.Sub(*before.LastUpdate)
	return dist >= s.gates.MinMoveMeters && elapsed >= s.gates.MinWriteInterval
}

func (s *Service) shouldPersistHeading(before driver.State, sample Sample, heading float64, now time.Time) bool {
	if sample.Heading == nil {
		return false
	}
	if math.Abs(geo.ShortestAngleDelta(before.Heading, heading)) < s.gates.MinHeadingDelta {
		return false
	}
	if before.LastUpdate == nil {
		return true
	}
	return now.Sub(*before.LastUpdate) >= s.gates.MinWriteInterval
}

// afterPersist fans the write out: a change event for live observers
// and an archive record for offline analysis. Both are best effort;
// the persisted row is already the source of truth.
func (s *Service) afterPersist(ctx context.Context, before, after driver.State, sample Sample) {
	if s.pub != nil {
		if err := s.pub.Publish(ctx, before.StationID, "drivers", "update", before, after); err != nil {
			s.log.Warn("driver change publish failed", "driver_id", sample.DriverID, "error", err)
		}
	}
	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, sample); err != nil {
			s.log.Warn("sample archive failed", "driver_id", sample.DriverID, "error", err)
		}
	}
}
