package zone

import (
	"context"
	"errors"

	"github.com/Matanel980/TaxiBot-sub003/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("zone not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateZone(ctx context.Context, input Zone) (Zone, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO zones (id, station_id, name, center_lat, center_lng)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, input.ID, input.StationID, input.Name, input.CenterLat, input.CenterLng)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Zone{}, err
	}
	return input, nil
}

func (s *Service) GetZone(ctx context.Context, id string) (Zone, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, station_id, name, center_lat, center_lng, created_at
		FROM zones WHERE id=$1
	`, id)
	var z Zone
	if err := row.Scan(&z.ID, &z.StationID, &z.Name, &z.CenterLat, &z.CenterLng, &z.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Zone{}, ErrNotFound
		}
		return Zone{}, err
	}
	return z, nil
}

func (s *Service) ListByStation(ctx context.Context, stationID string) ([]Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, station_id, name, center_lat, center_lng, created_at
		FROM zones WHERE station_id=$1
		ORDER BY name
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.StationID, &z.Name, &z.CenterLat, &z.CenterLng, &z.CreatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func (s *Service) DeleteZone(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM zones WHERE id=$1`, id)
	return err
}
