package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/trip"
	"github.com/Matanel980/TaxiBot-sub003/internal/zone"
)

func somePos(lat, lng float64) (*float64, *float64) {
	return &lat, &lng
}

func TestApplyDriverPatchIdempotent(t *testing.T) {
	v := New(Loaders{})

	lat, lng := somePos(32.0853, 34.7818)
	now := time.Now()
	d := driver.State{ID: "d1", StationID: "s1", Name: "Avi", Lat: lat, Lng: lng, Online: true, LastUpdate: &now}

	if !v.ApplyDriverPatch(d) {
		t.Fatalf("first patch should change the view")
	}
	version := v.Version()

	// Re-applying the identical patch must leave the view untouched.
	if v.ApplyDriverPatch(d) {
		t.Fatalf("identical patch should be a no-op")
	}
	if v.Version() != version {
		t.Fatalf("idempotent patch bumped version")
	}

	d.Heading = 90
	if !v.ApplyDriverPatch(d) {
		t.Fatalf("changed patch should apply")
	}
}

func TestPatchPreservesIdentityOfUnrelatedRecords(t *testing.T) {
	v := New(Loaders{})

	latA, lngA := somePos(32.0, 35.0)
	latB, lngB := somePos(31.0, 34.0)
	v.ApplyDriverPatch(driver.State{ID: "a", Lat: latA, Lng: lngA})
	v.ApplyDriverPatch(driver.State{ID: "b", Lat: latB, Lng: lngB})

	before := v.Snapshot()

	latA2, lngA2 := somePos(32.5, 35.5)
	v.ApplyDriverPatch(driver.State{ID: "a", Lat: latA2, Lng: lngA2})

	after := v.Snapshot()
	if after.Drivers["b"] != before.Drivers["b"] {
		t.Fatalf("patching a must not replace b's record")
	}
	if after.Drivers["a"] == before.Drivers["a"] {
		t.Fatalf("patched record should be a new object")
	}
}

func TestStatsFromSnapshotOnly(t *testing.T) {
	v := New(Loaders{})

	zoneNorth := "zone-north"
	lat, lng := somePos(32.0, 35.0)
	v.ApplyDriverPatch(driver.State{ID: "d1", Lat: lat, Lng: lng, Online: true, ZoneID: &zoneNorth})
	v.ApplyDriverPatch(driver.State{ID: "d2", Online: true}) // no fix yet
	v.ApplyDriverPatch(driver.State{ID: "d3", Lat: lat, Lng: lng, Online: false, ZoneID: &zoneNorth})

	v.ApplyTripPatch(trip.Record{ID: "t1", Status: trip.StatusPending})
	v.ApplyTripPatch(trip.Record{ID: "t2", Status: trip.StatusActive})

	stats := v.Snapshot().Stats
	if stats.ActiveDrivers != 1 {
		t.Fatalf("online without fix or offline must not count as active, got %d", stats.ActiveDrivers)
	}
	if stats.PendingTrips != 1 {
		t.Fatalf("expected one pending trip, got %d", stats.PendingTrips)
	}
	if stats.DriversByZone[zoneNorth] != 2 {
		t.Fatalf("expected two drivers in zone, got %d", stats.DriversByZone[zoneNorth])
	}
}

func TestResyncSectionsFailIndependently(t *testing.T) {
	tripsErr := errors.New("trips feed down")

	lat, lng := somePos(32.0, 35.0)
	v := New(Loaders{
		Drivers: func(context.Context) ([]driver.State, error) {
			return []driver.State{{ID: "d1", Lat: lat, Lng: lng, Online: true}}, nil
		},
		Trips: func(context.Context) ([]trip.Record, error) {
			return nil, tripsErr
		},
		Zones: func(context.Context) ([]zone.Zone, error) {
			return []zone.Zone{{ID: "z1", Name: "North"}}, nil
		},
	})

	// Seed the trips section so the failure has data to retain.
	v.ApplyTripPatch(trip.Record{ID: "t1", Status: trip.StatusPending})

	v.Resync(context.Background())

	snap := v.Snapshot()
	if len(snap.Drivers) != 1 || len(snap.Zones) != 1 {
		t.Fatalf("healthy sections should refresh")
	}
	if len(snap.Trips) != 1 {
		t.Fatalf("failed section should keep its previous data")
	}
	if snap.Errors["trips"] == "" {
		t.Fatalf("expected trips section error recorded")
	}
	if snap.Errors["drivers"] != "" {
		t.Fatalf("drivers section should be healthy")
	}
}

func TestResyncClearsSectionError(t *testing.T) {
	calls := 0
	v := New(Loaders{
		Trips: func(context.Context) ([]trip.Record, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient")
			}
			return []trip.Record{{ID: "t1", Status: trip.StatusPending}}, nil
		},
	})

	v.Resync(context.Background())
	if v.Snapshot().Errors["trips"] == "" {
		t.Fatalf("expected recorded error")
	}

	v.Resync(context.Background())
	snap := v.Snapshot()
	if len(snap.Errors) != 0 {
		t.Fatalf("recovered section should clear its error")
	}
	if len(snap.Trips) != 1 {
		t.Fatalf("expected refreshed trips")
	}
}

func TestSetPresenceGuard(t *testing.T) {
	v := New(Loaders{})

	if !v.SetPresence(map[string]bool{"d1": true}) {
		t.Fatalf("first presence set should apply")
	}
	version := v.Version()

	if v.SetPresence(map[string]bool{"d1": true}) {
		t.Fatalf("identical presence should be a no-op")
	}
	if v.Version() != version {
		t.Fatalf("no-op presence bumped version")
	}

	if !v.SetPresence(map[string]bool{"d2": true}) {
		t.Fatalf("changed presence should apply")
	}
}

func TestDriverLookup(t *testing.T) {
	v := New(Loaders{})
	lat, lng := somePos(32.0, 35.0)
	v.ApplyDriverPatch(driver.State{ID: "d1", Lat: lat, Lng: lng})

	if _, ok := v.Driver("d1"); !ok {
		t.Fatalf("expected driver found")
	}
	if _, ok := v.Driver("missing"); ok {
		t.Fatalf("expected driver missing")
	}
}
