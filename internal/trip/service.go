package trip

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/db"
	"github.com/Matanel980/TaxiBot-sub003/internal/observability"
	"github.com/Matanel980/TaxiBot-sub003/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrTripUnavailable = errors.New("trip no longer available")
	ErrNotOwner        = errors.New("trip assigned to a different driver")
	ErrWrongStatus     = errors.New("trip is not in the required status")
	ErrNotCandidate    = errors.New("driver is not the offered candidate")
	ErrStationMismatch = errors.New("driver and trip belong to different stations")
	ErrDriverUnknown   = errors.New("driver not found")
	ErrBadCoordinates  = errors.New("invalid pickup or destination coordinates")
)

// FeedPublisher pushes row-change events so connected dashboards learn
// of trip mutations. Satisfied by feed.Publisher; nil disables publishing.
type FeedPublisher interface {
	Publish(ctx context.Context, stationID, table, eventType string, oldRow, newRow any) error
}

type Service struct {
	db  db.Querier
	pub FeedPublisher
	log *slog.Logger
	now func() time.Time
}

func NewService(db db.Querier, pub FeedPublisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, pub: pub, log: log, now: time.Now}
}

func (s *Service) CreateTrip(ctx context.Context, input Record) (Record, error) {
	if !geo.ValidCoordinates(input.PickupLat, input.PickupLng) || !geo.ValidCoordinates(input.DestLat, input.DestLng) {
		return Record{}, ErrBadCoordinates
	}

	input.ID = uuid.NewString()
	input.Status = StatusPending
	input.DriverID = nil
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, station_id, status, pickup_lat, pickup_lng, dest_lat, dest_lng)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, input.ID, input.StationID, input.Status, input.PickupLat, input.PickupLng, input.DestLat, input.DestLng)
	if err := row.Scan(&input.CreatedAt, &input.UpdatedAt); err != nil {
		return Record{}, err
	}

	s.publish(ctx, input.StationID, "insert", nil, input)
	return input, nil
}

func (s *Service) GetTrip(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, station_id, status, driver_id, pickup_lat, pickup_lng, dest_lat, dest_lng, created_at, updated_at, accepted_at
		FROM trips WHERE id=$1
	`, id)
	var t Record
	if err := row.Scan(&t.ID, &t.StationID, &t.Status, &t.DriverID, &t.PickupLat, &t.PickupLng, &t.DestLat, &t.DestLng, &t.CreatedAt, &t.UpdatedAt, &t.AcceptedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrTripNotFound
		}
		return Record{}, err
	}
	return t, nil
}

func (s *Service) ListByStation(ctx context.Context, stationID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, station_id, status, driver_id, pickup_lat, pickup_lng, dest_lat, dest_lng, created_at, updated_at, accepted_at
		FROM trips WHERE station_id=$1
		ORDER BY created_at DESC
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Record
	for rows.Next() {
		var t Record
		if err := rows.Scan(&t.ID, &t.StationID, &t.Status, &t.DriverID, &t.PickupLat, &t.PickupLng, &t.DestLat, &t.DestLng, &t.CreatedAt, &t.UpdatedAt, &t.AcceptedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// Accept claims a pending trip for a driver. Correctness under N
// concurrent attempts rests entirely on the conditional update: the
// status='pending' predicate is evaluated atomically by the store, so
// exactly one attempt affects a row and everyone else sees zero rows.
func (s *Service) Accept(ctx context.Context, tripID, driverID string) (Record, error) {
	observability.AcceptAttempts.Inc()

	before, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return Record{}, err
	}

	driverStation, err := s.driverStation(ctx, driverID)
	if err != nil {
		return Record{}, err
	}
	if driverStation != before.StationID {
		return Record{}, ErrStationMismatch
	}

	now := s.now()
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status='active', driver_id=$2, accepted_at=$3, updated_at=$3
		WHERE id=$1 AND status='pending' AND (driver_id IS NULL OR driver_id=$2)
	`, tripID, driverID, now)
	if err != nil {
		return Record{}, err
	}
	if tag.RowsAffected() == 0 {
		observability.AcceptConflicts.Inc()
		// Re-read only to tell "claimed by someone else" apart from
		// "row gone"; the outcome was already decided above.
		if _, err := s.GetTrip(ctx, tripID); errors.Is(err, ErrTripNotFound) {
			return Record{}, ErrTripNotFound
		}
		return Record{}, ErrTripUnavailable
	}

	after, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return Record{}, err
	}
	s.publish(ctx, after.StationID, "update", before, after)
	return after, nil
}

// Complete moves an active trip to its terminal state. Only the assigned
// driver may call it.
func (s *Service) Complete(ctx context.Context, tripID, driverID string) (Record, error) {
	before, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return Record{}, err
	}
	if before.DriverID == nil || *before.DriverID != driverID {
		return Record{}, ErrNotOwner
	}
	if before.Status != StatusActive {
		return Record{}, ErrWrongStatus
	}

	now := s.now()
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status='completed', updated_at=$3
		WHERE id=$1 AND status='active' AND driver_id=$2
	`, tripID, driverID, now)
	if err != nil {
		return Record{}, err
	}
	if tag.RowsAffected() == 0 {
		return Record{}, ErrWrongStatus
	}

	after, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return Record{}, err
	}
	s.publish(ctx, after.StationID, "update", before, after)
	return after, nil
}

// Decline clears a candidate offer on a still-pending trip so it can be
// re-offered. Status does not change.
func (s *Service) Decline(ctx context.Context, tripID, driverID string) error {
	before, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if before.Status != StatusPending {
		return ErrWrongStatus
	}
	if before.DriverID == nil || *before.DriverID != driverID {
		return ErrNotCandidate
	}

	now := s.now()
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET driver_id=NULL, updated_at=$3
		WHERE id=$1 AND status='pending' AND driver_id=$2
	`, tripID, driverID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotCandidate
	}

	after := before
	after.DriverID = nil
	after.UpdatedAt = now
	s.publish(ctx, after.StationID, "update", before, after)
	return nil
}

// Offer marks a driver as the candidate for a pending trip without
// activating it; acceptance still has to confirm.
func (s *Service) Offer(ctx context.Context, tripID, driverID string) error {
	before, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if before.Status != StatusPending {
		return ErrWrongStatus
	}

	now := s.now()
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET driver_id=$2, updated_at=$3
		WHERE id=$1 AND status='pending' AND driver_id IS NULL
	`, tripID, driverID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTripUnavailable
	}

	after := before
	after.DriverID = &driverID
	after.UpdatedAt = now
	s.publish(ctx, after.StationID, "update", before, after)
	return nil
}

func (s *Service) driverStation(ctx context.Context, driverID string) (string, error) {
	var station string
	err := s.db.QueryRow(ctx, `SELECT station_id FROM drivers WHERE id=$1`, driverID).Scan(&station)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrDriverUnknown
		}
		return "", err
	}
	return station, nil
}

func (s *Service) publish(ctx context.Context, stationID, eventType string, oldRow, newRow any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, stationID, "trips", eventType, oldRow, newRow); err != nil {
		s.log.Warn("trip change publish failed", "station_id", stationID, "error", err)
	}
}
