package core

import (
	"math"
	"testing"
)

func TestVec3_DistanceAndArithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 6, Z: 3}

	if d := a.DistanceTo(b); d != 5 {
		t.Errorf("DistanceTo = %v, want 5", d)
	}
	if got := a.Add(b); got != (Vec3{X: 5, Y: 8, Z: 6}) {
		t.Errorf("Add = %+v", got)
	}
	if n := (Vec3{X: 3, Z: 4}).Norm(); n != 5 {
		t.Errorf("Norm = %v, want 5", n)
	}
}

func TestPlaneOffsetRoundTrip(t *testing.T) {
	origin := Vec3{X: 2.6, Y: 0, Z: -1}
	p := Vec3{X: 5, Y: 0, Z: 4}

	off := PlaneOffset(origin, p)
	if off != (Vec2{X: 5 - 2.6, Y: 5}) {
		t.Fatalf("PlaneOffset = %+v", off)
	}
	if back := FromPlane(origin, off); math.Abs(back.X-p.X) > 1e-12 || back.Z != p.Z {
		t.Fatalf("FromPlane = %+v, want %+v", back, p)
	}
}

func TestNormalizeDeg(t *testing.T) {
	cases := map[float64]float64{
		210: 210,
		390: 30,
		-90: 270,
		360: 0,
		510: 150,
	}
	for in, want := range cases {
		if got := normalizeDeg(in); got != want {
			t.Errorf("normalizeDeg(%v) = %v, want %v", in, got, want)
		}
	}
}
