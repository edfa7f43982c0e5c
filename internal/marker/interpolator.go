package marker

import (
	"math"
	"time"

	"github.com/Matanel980/TaxiBot-sub003/internal/shared/geo"
)

type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Config struct {
	// Moves below SnapBelowMeters are imperceptible noise, moves above
	// SnapAboveMeters indicate GPS reacquisition; both snap instantly.
	SnapBelowMeters float64
	SnapAboveMeters float64
	AnimateDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.SnapBelowMeters == 0 {
		c.SnapBelowMeters = 5
	}
	if c.SnapAboveMeters == 0 {
		c.SnapAboveMeters = 200
	}
	if c.AnimateDuration == 0 {
		c.AnimateDuration = 2 * time.Second
	}
	return c
}

// Interpolator turns discrete position/heading targets into continuous
// motion for one driver marker. It is purely local state owned by a
// single observer session and never touches persisted data.
type Interpolator struct {
	cfg Config
	now func() time.Time

	hasFix        bool
	animating     bool
	startPos      Position
	startHeading  float64
	targetPos     Position
	targetHeading float64
	headingDelta  float64
	startTime     time.Time
}

func NewInterpolator(cfg Config) *Interpolator {
	return &Interpolator{cfg: cfg.withDefaults(), now: time.Now}
}

// SetTarget installs a new target. Distance is measured from the
// currently displayed position, not the previous target, so a retarget
// mid-animation continues from wherever the marker is right now.
func (i *Interpolator) SetTarget(pos Position, heading float64) {
	heading = geo.NormalizeHeading(heading)
	now := i.now()

	if !i.hasFix {
		i.snap(pos, heading)
		i.hasFix = true
		return
	}

	// A repeated identical target is not a retarget. Restarting here
	// would reset the curve's clock on every sample tick and an
	// in-flight animation would never land on schedule.
	if pos == i.targetPos && heading == i.targetHeading {
		return
	}

	displayed, displayedHeading, _ := i.At(now)
	dist := geo.HaversineMeters(displayed.Lat, displayed.Lng, pos.Lat, pos.Lng)
	if dist < i.cfg.SnapBelowMeters || dist > i.cfg.SnapAboveMeters {
		i.snap(pos, heading)
		return
	}

	i.startPos = displayed
	i.startHeading = displayedHeading
	i.targetPos = pos
	i.targetHeading = heading
	i.headingDelta = geo.ShortestAngleDelta(displayedHeading, heading)
	i.startTime = now
	i.animating = true
}

// At returns the displayed position and heading at the given instant.
func (i *Interpolator) At(now time.Time) (Position, float64, bool) {
	if !i.animating {
		return i.targetPos, i.targetHeading, false
	}

	elapsed := now.Sub(i.startTime)
	if elapsed >= i.cfg.AnimateDuration {
		i.animating = false
		return i.targetPos, i.targetHeading, false
	}

	t := float64(elapsed) / float64(i.cfg.AnimateDuration)
	eased := easeOutCubic(t)

	pos := Position{
		Lat: i.startPos.Lat + (i.targetPos.Lat-i.startPos.Lat)*eased,
		Lng: i.startPos.Lng + (i.targetPos.Lng-i.startPos.Lng)*eased,
	}
	heading := geo.NormalizeHeading(i.startHeading + i.headingDelta*eased)
	return pos, heading, true
}

func (i *Interpolator) snap(pos Position, heading float64) {
	i.startPos = pos
	i.targetPos = pos
	i.startHeading = heading
	i.targetHeading = heading
	i.headingDelta = 0
	i.animating = false
}

// easeOutCubic decelerates motion into the new fix: 1-(1-t)^3.
func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}
