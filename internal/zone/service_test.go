package zone

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestCreateAndGetZone(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO zones`).
		WithArgs(pgxmock.AnyArg(), "station-1", "North", 32.1, 34.8).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	svc := NewService(mock)
	created, err := svc.CreateZone(context.Background(), Zone{
		StationID: "station-1",
		Name:      "North",
		CenterLat: 32.1,
		CenterLng: 34.8,
	})
	if err != nil {
		t.Fatalf("create zone: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated zone id")
	}

	mock.ExpectQuery(`SELECT id, station_id, name, center_lat, center_lng`).
		WithArgs(created.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "station_id", "name", "center_lat", "center_lng", "created_at"}).
			AddRow(created.ID, "station-1", "North", 32.1, 34.8, created.CreatedAt))

	loaded, err := svc.GetZone(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get zone: %v", err)
	}
	if loaded.Name != "North" || loaded.CenterLat != 32.1 {
		t.Fatalf("unexpected zone: %+v", loaded)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetZoneNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, station_id, name, center_lat, center_lng`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "station_id", "name", "center_lat", "center_lng", "created_at"}))

	svc := NewService(mock)
	if _, err := svc.GetZone(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByStation(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, station_id, name, center_lat, center_lng`).
		WithArgs("station-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "station_id", "name", "center_lat", "center_lng", "created_at"}).
			AddRow("z1", "station-1", "North", 32.1, 34.8, time.Now()).
			AddRow("z2", "station-1", "South", 31.9, 34.7, time.Now()))

	svc := NewService(mock)
	zones, err := svc.ListByStation(context.Background(), "station-1")
	if err != nil {
		t.Fatalf("list zones: %v", err)
	}
	if len(zones) != 2 || zones[0].Name != "North" || zones[1].Name != "South" {
		t.Fatalf("unexpected zones: %+v", zones)
	}
}

func TestDeleteZone(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`DELETE FROM zones`).
		WithArgs("z1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	svc := NewService(mock)
	if err := svc.DeleteZone(context.Background(), "z1"); err != nil {
		t.Fatalf("delete zone: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
