package view

import (
	"context"
	"reflect"
	"sync"

	"github.com/Matanel980/TaxiBot-sub003/internal/driver"
	"github.com/Matanel980/TaxiBot-sub003/internal/trip"
	"github.com/Matanel980/TaxiBot-sub003/internal/zone"
)

// Loaders fetch full sections during a resynchronization. Each section
// fails independently.
type Loaders struct {
	Drivers func(ctx context.Context) ([]driver.State, error)
	Trips   func(ctx context.Context) ([]trip.Record, error)
	Zones   func(ctx context.Context) ([]zone.Zone, error)
}

type Stats struct {
	ActiveDrivers int            `json:"active_drivers"`
	PendingTrips  int            `json:"pending_trips"`
	DriversByZone map[string]int `json:"drivers_by_zone"`
}

// Snapshot is a consistent copy of the aggregated dispatch state. The
// record pointers are shared with the view, which is safe because
// records are replaced wholesale, never mutated in place.
type Snapshot struct {
	Version  uint64                   `json:"version"`
	Drivers  map[string]*driver.State `json:"drivers"`
	Trips    map[string]*trip.Record  `json:"trips"`
	Zones    map[string]*zone.Zone    `json:"zones"`
	Presence map[string]bool          `json:"presence"`
	Stats    Stats                    `json:"stats"`
	Errors   map[string]string        `json:"errors,omitempty"`
}

// View is the consolidated in-memory state a dashboard renders from.
// Patches replace exactly one record, preserving object identity for
// everything untouched, so downstream equality checks stay cheap.
type View struct {
	loaders Loaders

	mu       sync.RWMutex
	version  uint64
	drivers  map[string]*driver.State
	trips    map[string]*trip.Record
	zones    map[string]*zone.Zone
	presence map[string]bool
	errs     map[string]string
}

func New(loaders Loaders) *View {
	return &View{
		loaders:  loaders,
		drivers:  map[string]*driver.State{},
		trips:    map[string]*trip.Record{},
		zones:    map[string]*zone.Zone{},
		presence: map[string]bool{},
		errs:     map[string]string{},
	}
}

// ApplyDriverPatch merges one driver record. Re-applying an identical
// patch is a no-op, which makes at-least-once feed delivery safe.
func (v *View) ApplyDriverPatch(d driver.State) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.drivers[d.ID]; ok && reflect.DeepEqual(*existing, d) {
		return false
	}
	record := d
	v.drivers[d.ID] = &record
	v.version++
	return true
}

func (v *View) ApplyTripPatch(t trip.Record) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.trips[t.ID]; ok && reflect.DeepEqual(*existing, t) {
		return false
	}
	record := t
	v.trips[t.ID] = &record
	v.version++
	return true
}

func (v *View) ApplyZonePatch(z zone.Zone) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.zones[z.ID]; ok && reflect.DeepEqual(*existing, z) {
		return false
	}
	record := z
	v.zones[z.ID] = &record
	v.version++
	return true
}

// SetPresence replaces the advisory liveness set. Identical sets are
// ignored.
func (v *View) SetPresence(connected map[string]bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(connected) == len(v.presence) {
		same := true
		for id := range connected {
			if !v.presence[id] {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}

	next := make(map[string]bool, len(connected))
	for id := range connected {
		next[id] = true
	}
	v.presence = next
	v.version++
	return true
}

// Driver returns the current record for feed-side validation.
func (v *View) Driver(id string) (driver.State, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	d, ok := v.drivers[id]
	if !ok {
		return driver.State{}, false
	}
	return *d, true
}

// Resync re-fetches whole sections. A section that fails keeps its
// previous data and records the error; the others refresh normally, so
// a stale section never blanks the whole board.
func (v *View) Resync(ctx context.Context) {
	var (
		drivers []driver.State
		trips   []trip.Record
		zones   []zone.Zone

		driversErr, tripsErr, zonesErr error
	)

	if v.loaders.Drivers != nil {
		drivers, driversErr = v.loaders.Drivers(ctx)
	}
	if v.loaders.Trips != nil {
		trips, tripsErr = v.loaders.Trips(ctx)
	}
	if v.loaders.Zones != nil {
		zones, zonesErr = v.loaders.Zones(ctx)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.loaders.Drivers != nil {
		if driversErr != nil {
			v.errs["drivers"] = driversErr.Error()
		} else {
			next := make(map[string]*driver.State, len(drivers))
			for i := range drivers {
				d := drivers[i]
				next[d.ID] = &d
			}
			v.drivers = next
			delete(v.errs, "drivers")
		}
	}
	if v.loaders.Trips != nil {
		if tripsErr != nil {
			v.errs["trips"] = tripsErr.Error()
		} else {
			next := make(map[string]*trip.Record, len(trips))
			for i := range trips {
				t := trips[i]
				next[t.ID] = &t
			}
			v.trips = next
			delete(v.errs, "trips")
		}
	}
	if v.loaders.Zones != nil {
		if zonesErr != nil {
			v.errs["zones"] = zonesErr.Error()
		} else {
			next := make(map[string]*zone.Zone, len(zones))
			for i := range zones {
				z := zones[i]
				next[z.ID] = &z
			}
			v.zones = next
			delete(v.errs, "zones")
		}
	}

	v.version++
}

// Snapshot copies the current view. Derived stats come from the data
// already held, never from extra queries.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	snap := Snapshot{
		Version:  v.version,
		Drivers:  make(map[string]*driver.State, len(v.drivers)),
		Trips:    make(map[string]*trip.Record, len(v.trips)),
		Zones:    make(map[string]*zone.Zone, len(v.zones)),
		Presence: make(map[string]bool, len(v.presence)),
	}
	for id, d := range v.drivers {
		snap.Drivers[id] = d
	}
	for id, t := range v.trips {
		snap.Trips[id] = t
	}
	for id, z := range v.zones {
		snap.Zones[id] = z
	}
	for id := range v.presence {
		snap.Presence[id] = true
	}
	if len(v.errs) > 0 {
		snap.Errors = make(map[string]string, len(v.errs))
		for section, msg := range v.errs {
			snap.Errors[section] = msg
		}
	}
	snap.Stats = v.statsLocked()
	return snap
}

func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

func (v *View) statsLocked() Stats {
	stats := Stats{DriversByZone: map[string]int{}}
	for _, d := range v.drivers {
		if d.Dispatchable() {
			stats.ActiveDrivers++
		}
		if d.ZoneID != nil {
			stats.DriversByZone[*d.ZoneID]++
		}
	}
	for _, t := range v.trips {
		if t.Status == trip.StatusPending {
			stats.PendingTrips++
		}
	}
	return stats
}
