package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

type recordingPublisher struct {
	events []string
}

func (r *recordingPublisher) Publish(_ context.Context, _, table, eventType string, _, _ any) error {
	r.events = append(r.events, table+"/"+eventType)
	return nil
}

func passthrough(c *fiber.Ctx) error { return c.Next() }

func TestDriverHandlersCreate(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO drivers`).
		WithArgs(pgxmock.AnyArg(), "station-1", "Avi", "0500000000", false, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	pub := &recordingPublisher{}
	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(mock), pub, passthrough)

	body, _ := json.Marshal(State{StationID: "station-1", Name: "Avi", Phone: "0500000000"})
	req := httptest.NewRequest(http.MethodPost, "/drivers/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("create driver status: %v %d", err, resp.StatusCode)
	}
	if len(pub.events) != 1 || pub.events[0] != "drivers/insert" {
		t.Fatalf("expected insert event, got %v", pub.events)
	}
}

func TestDriverHandlersCreateMissingFields(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(nil), nil, passthrough)

	req := httptest.NewRequest(http.MethodPost, "/drivers/", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestDriverHandlersOnlineOffline(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	cols := []string{"id", "station_id", "name", "phone", "zone_id", "lat", "lng", "heading", "online", "last_update", "created_at"}

	mock.ExpectQuery(`SELECT id, station_id, name, phone, zone_id, lat, lng`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("d1", "station-1", "Avi", "050", nil, nil, nil, 0.0, false, nil, time.Now()))
	mock.ExpectExec(`UPDATE drivers SET online`).
		WithArgs("d1", true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	pub := &recordingPublisher{}
	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(mock), pub, passthrough)

	req := httptest.NewRequest(http.MethodPost, "/drivers/d1/online", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("online status: %v %d", err, resp.StatusCode)
	}

	var d State
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode driver: %v", err)
	}
	if !d.Online {
		t.Fatalf("expected online driver")
	}
	if len(pub.events) != 1 || pub.events[0] != "drivers/update" {
		t.Fatalf("expected update event, got %v", pub.events)
	}
}

func TestDriverHandlersOnlineNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, station_id, name, phone, zone_id, lat, lng`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "station_id", "name", "phone", "zone_id", "lat", "lng", "heading", "online", "last_update", "created_at"}))

	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(mock), nil, passthrough)

	req := httptest.NewRequest(http.MethodPost, "/drivers/ghost/online", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %v %d", err, resp.StatusCode)
	}
}

func TestDriverHandlersAssignZone(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	cols := []string{"id", "station_id", "name", "phone", "zone_id", "lat", "lng", "heading", "online", "last_update", "created_at"}
	mock.ExpectQuery(`SELECT id, station_id, name, phone, zone_id, lat, lng`).
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("d1", "station-1", "Avi", "050", nil, nil, nil, 0.0, true, nil, time.Now()))
	mock.ExpectExec(`UPDATE drivers SET zone_id`).
		WithArgs("d1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(mock), nil, passthrough)

	body := []byte(`{"zone_id":"z1"}`)
	req := httptest.NewRequest(http.MethodPost, "/drivers/d1/zone", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("assign zone status: %v %d", err, resp.StatusCode)
	}

	var d State
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatalf("decode driver: %v", err)
	}
	if d.ZoneID == nil || *d.ZoneID != "z1" {
		t.Fatalf("expected zone assignment, got %+v", d)
	}
}

func TestDriverHandlersListRequiresStation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/drivers"), NewStore(nil), nil, passthrough)

	req := httptest.NewRequest(http.MethodGet, "/drivers/", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}
