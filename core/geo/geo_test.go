package geo

import (
	"math"
	"testing"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	if d := Distance(48.8566, 2.3522, 48.8566, 2.3522); d != 0 {
		t.Fatalf("expected 0 got %v", d)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// Paris to London, great-circle distance roughly 344km.
	d := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330 || d > 350 {
		t.Fatalf("expected ~344km got %v", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	b := Distance(34.0522, -118.2437, 40.7128, -74.0060)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}

func TestDistanceInvalidCoordinates(t *testing.T) {
	cases := [][4]float64{
		{91, 0, 0, 0},
		{0, 181, 0, 0},
		{0, 0, -91, 0},
		{0, 0, 0, -181},
		{math.NaN(), 0, 0, 0},
		{0, math.Inf(1), 0, 0},
	}
	for _, c := range cases {
		if d := Distance(c[0], c[1], c[2], c[3]); !math.IsInf(d, 1) {
			t.Errorf("Distance(%v) = %v, expected +Inf", c, d)
		}
	}
}

func TestValidCoordinatesBounds(t *testing.T) {
	if !ValidCoordinates(90, 180) || !ValidCoordinates(-90, -180) {
		t.Fatal("boundary coordinates should be valid")
	}
	if ValidCoordinates(90.0001, 0) || ValidCoordinates(0, -180.0001) {
		t.Fatal("out-of-range coordinates should be invalid")
	}
}

func TestBearingRange(t *testing.T) {
	cases := [][4]float64{
		{0, 0, 10, 0},  // due north
		{0, 0, 0, 10},  // due east
		{0, 0, -10, 0}, // due south
		{0, 0, 0, -10}, // due west
		{48.85, 2.35, 51.5, -0.12},
	}
	for _, c := range cases {
		b := Bearing(c[0], c[1], c[2], c[3])
		if b < 0 || b >= 360 {
			t.Errorf("Bearing(%v) = %v, out of [0,360)", c, b)
		}
	}
	if b := Bearing(0, 0, 10, 0); math.Abs(b-0) > 1e-6 {
		t.Errorf("due north bearing = %v", b)
	}
	if b := Bearing(0, 0, 0, 10); math.Abs(b-90) > 1e-6 {
		t.Errorf("due east bearing = %v", b)
	}
}
