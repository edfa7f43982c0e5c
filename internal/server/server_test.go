package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/config"
	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/feed"
	"github.com/Matanel980/TaxiBot-sub003/internal/view"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() config.Config {
	return config.Config{
		ServerPort:     ":0",
		JWTSecret:      "secret",
		ResyncDebounce: 10 * time.Millisecond,
		HeartbeatTTL:   time.Second,
	}
}

func TestHealthRoute(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status")
	}
}

func TestMetricsRoute(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.App.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 status for metrics")
	}
}

func TestStationIsCachedPerID(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	a := s.station("station-a")
	if s.station("station-a") != a {
		t.Fatalf("expected the same station instance")
	}
	if s.station("station-b") == a {
		t.Fatalf("expected distinct stations per id")
	}
}

func TestSnapshotEmptyStation(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	snap, err := s.snapshot("station-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	vs, ok := snap.(view.Snapshot)
	if !ok {
		t.Fatalf("unexpected snapshot type %T", snap)
	}
	if len(vs.Drivers) != 0 || len(vs.Trips) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", vs)
	}
}

func TestMarkersSkipDriversWithoutFix(t *testing.T) {
	s := NewServer(testConfig(), nil, nil, nil)
	defer s.Close()

	st := s.station("station-1")
	lat, lng := 32.0, 34.8
	st.view.ApplyDriverPatch(driver.State{ID: "d1", StationID: "station-1", Lat: &lat, Lng: &lng, Heading: 90})
	st.view.ApplyDriverPatch(driver.State{ID: "d2", StationID: "station-1"})

	targets := s.markers("station-1")
	if len(targets) != 1 || targets[0].DriverID != "d1" {
		t.Fatalf("expected only the driver with a fix, got %+v", targets)
	}
}

func TestFeedEventReachesViewAndObservers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewServer(testConfig(), nil, rdb, nil)
	defer s.Close()

	st := s.station("station-1")
	client := s.Stream.Register("station-1", "obs-1")
	defer s.Stream.Unregister(client)

	// let the feed subscription and hub fanout attach
	time.Sleep(100 * time.Millisecond)

	lat, lng := 32.0853, 34.7818
	now := time.Now()
	pub := feed.NewPublisher(rdb)
	err := pub.Publish(context.Background(), "station-1", "drivers", "update", nil, driver.State{
		ID: "d1", StationID: "station-1", Name: "Avi", Online: true,
		Lat: &lat, Lng: &lng, Heading: 45, LastUpdate: &now,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if d, ok := st.view.Driver("d1"); ok && d.Online {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never received the driver patch")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for {
		select {
		case msg := <-client.Send:
			var f struct {
				Type  string          `json:"type"`
				Table string          `json:"table"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(msg, &f); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if f.Type != "patch" || f.Table != "drivers" {
				// resync frames from the initial attach are fine
				continue
			}
			var d driver.State
			if err := json.Unmarshal(f.Data, &d); err != nil {
				t.Fatalf("decode driver patch: %v", err)
			}
			if d.ID != "d1" {
				t.Fatalf("unexpected driver in patch: %+v", d)
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatalf("observer never received the patch frame")
		}
	}
}
