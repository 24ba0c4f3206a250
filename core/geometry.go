package core

import "math"

// Vec3 is a station-frame coordinate. The station lies in the X/Z plane;
// Y is "up" and stays zero for docked modules.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Vec2 is a point or velocity in a hub's local orbital plane. X maps to the
// station X axis and Y maps to the station Z axis.
type Vec2 struct {
	X, Y float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// PlaneOffset projects the offset from origin to p onto the orbital plane.
func PlaneOffset(origin, p Vec3) Vec2 {
	return Vec2{X: p.X - origin.X, Y: p.Z - origin.Z}
}

// FromPlane lifts a plane offset back into station coordinates around origin.
func FromPlane(origin Vec3, p Vec2) Vec3 {
	return Vec3{X: origin.X + p.X, Y: origin.Y, Z: origin.Z + p.Y}
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// normalizeDeg wraps an angle into [0, 360).
func normalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
