package marker

import (
	"sync"
	"time"
)

// Frame is one rendered sample for one driver marker.
type Frame struct {
	DriverID  string   `json:"driver_id"`
	Position  Position `json:"position"`
	Heading   float64  `json:"heading"`
	Animating bool     `json:"animating"`
}

// TrackSet holds the interpolators of a single observer session, one
// per visible driver. It is torn down with the session.
type TrackSet struct {
	cfg Config

	mu     sync.Mutex
	tracks map[string]*Interpolator
}

func NewTrackSet(cfg Config) *TrackSet {
	return &TrackSet{cfg: cfg.withDefaults(), tracks: map[string]*Interpolator{}}
}

func (ts *TrackSet) SetTarget(driverID string, pos Position, heading float64) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	track, ok := ts.tracks[driverID]
	if !ok {
		track = NewInterpolator(ts.cfg)
		ts.tracks[driverID] = track
	}
	track.SetTarget(pos, heading)
}

func (ts *TrackSet) Remove(driverID string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tracks, driverID)
}

// Retain drops every track whose driver is absent from keep, so markers
// for drivers that left the station stop rendering.
func (ts *TrackSet) Retain(keep map[string]struct{}) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for id := range ts.tracks {
		if _, ok := keep[id]; !ok {
			delete(ts.tracks, id)
		}
	}
}

// Frames samples every track at the given instant.
func (ts *TrackSet) Frames(now time.Time) []Frame {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	frames := make([]Frame, 0, len(ts.tracks))
	for id, track := range ts.tracks {
		pos, heading, animating := track.At(now)
		frames = append(frames, Frame{DriverID: id, Position: pos, Heading: heading, Animating: animating})
	}
	return frames
}

// Animating reports whether any track still has an in-flight animation.
func (ts *TrackSet) Animating(now time.Time) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, track := range ts.tracks {
		if _, _, animating := track.At(now); animating {
			return true
		}
	}
	return false
}
