package driver

import (
	"context"
	"errors"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("driver not found")

type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, input State) (State, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO drivers (id, station_id, name, phone, online, heading)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.StationID, input.Name, input.Phone, input.Online, input.Heading)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return State{}, err
	}
	return input, nil
}

func (s *Store) Get(ctx context.Context, id string) (State, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, station_id, name, phone, zone_id, lat, lng, COALESCE(heading,0), online, last_update, created_at
		FROM drivers WHERE id=$1
	`, id)
	var d State
	if err := row.Scan(&d.ID, &d.StationID, &d.Name, &d.Phone, &d.ZoneID, &d.Lat, &d.Lng, &d.Heading, &d.Online, &d.LastUpdate, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{}, ErrNotFound
		}
		return State{}, err
	}
	return d, nil
}

func (s *Store) ListByStation(ctx context.Context, stationID string) ([]State, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, station_id, name, phone, zone_id, lat, lng, COALESCE(heading,0), online, last_update, created_at
		FROM drivers WHERE station_id=$1
		ORDER BY created_at
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []State
	for rows.Next() {
		var d State
		if err := rows.Scan(&d.ID, &d.StationID, &d.Name, &d.Phone, &d.ZoneID, &d.Lat, &d.Lng, &d.Heading, &d.Online, &d.LastUpdate, &d.CreatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

// UpdatePosition writes a validated fix through to storage. Callers are
// responsible for coordinate validation; this never receives the (0,0)
// sentinel.
func (s *Store) UpdatePosition(ctx context.Context, id string, lat, lng, heading float64, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET lat=$2, lng=$3, heading=$4, last_update=$5
		WHERE id=$1
	`, id, lat, lng, heading, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateHeading persists a heading change while the position stays put,
// e.g. a stationary vehicle turning.
func (s *Store) UpdateHeading(ctx context.Context, id string, heading float64, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET heading=$2, last_update=$3
		WHERE id=$1
	`, id, heading, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetOnline(ctx context.Context, id string, online bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET online=$2 WHERE id=$1`, id, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AssignZone(ctx context.Context, id string, zoneID *string) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET zone_id=$2 WHERE id=$1`, id, zoneID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
