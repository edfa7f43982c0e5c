package geo

import (
	"math"
	"testing"
)

func TestHaversineMeters(t *testing.T) {
	// Tel Aviv (32.0853, 34.7818) to Jerusalem (31.7683, 35.2137) ~ 50-60 km
	d := HaversineMeters(32.0853, 34.7818, 31.7683, 35.2137)
	if d < 45000 || d > 65000 {
		t.Fatalf("unexpected distance: %v", d)
	}

	if HaversineMeters(32.0, 35.0, 32.0, 35.0) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
}

func TestNormalizeHeading(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		360:  0,
		-10:  350,
		370:  10,
		-360: 0,
		725:  5,
	}
	for in, want := range cases {
		if got := NormalizeHeading(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("normalize %v: got %v want %v", in, got, want)
		}
	}
}

func TestShortestAngleDelta(t *testing.T) {
	if d := ShortestAngleDelta(350, 10); math.Abs(d-20) > 1e-9 {
		t.Fatalf("350->10: got %v want 20", d)
	}
	if d := ShortestAngleDelta(10, 350); math.Abs(d+20) > 1e-9 {
		t.Fatalf("10->350: got %v want -20", d)
	}
	if d := ShortestAngleDelta(0, 180); math.Abs(d-180) > 1e-9 {
		t.Fatalf("0->180: got %v want 180", d)
	}
	if d := ShortestAngleDelta(90, 90); d != 0 {
		t.Fatalf("90->90: got %v want 0", d)
	}
}

func TestValidCoordinates(t *testing.T) {
	valid := [][2]float64{
		{32.0853, 34.7818},
		{-89.9, 179.9},
		{0.0001, 0.0001},
	}
	for _, c := range valid {
		if !ValidCoordinates(c[0], c[1]) {
			t.Fatalf("expected valid: %v", c)
		}
	}

	invalid := [][2]float64{
		{0, 0},
		{91, 35},
		{-91, 35},
		{32, 181},
		{32, -181},
		{math.NaN(), 35},
		{32, math.Inf(1)},
	}
	for _, c := range invalid {
		if ValidCoordinates(c[0], c[1]) {
			t.Fatalf("expected invalid: %v", c)
		}
	}
}
