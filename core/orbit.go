package core

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Reference TLE used when no station orbit is configured (ISS, 2021-10-02).
const (
	DefaultTLELine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	DefaultTLELine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

// OrbitState is the station's orbital position at one instant.
type OrbitState struct {
	Time time.Time
	// ECI and ECEF are in kilometres.
	ECI  Vec3
	ECEF Vec3
	// LatitudeDeg and LongitudeDeg are geodetic; longitude is in [-180, 180).
	LatitudeDeg  float64
	LongitudeDeg float64
	// AltitudeKm is measured above the WGS-84 ellipsoid.
	AltitudeKm float64
	// SpeedKmS is the inertial orbital speed.
	SpeedKmS float64
}

// StationOrbit propagates the whole station along a TLE with SGP4. The
// relative rendezvous model runs independently of it; this only feeds
// station-level telemetry.
type StationOrbit struct {
	sat satellite.Satellite
}

// NewStationOrbit constructs an orbit from TLE lines.
func NewStationOrbit(line1, line2 string) *StationOrbit {
	return &StationOrbit{sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72)}
}

// StateAt propagates the station to t.
func (o *StationOrbit) StateAt(t time.Time) OrbitState {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, velECI := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	alt, _, ll := satellite.ECIToLLA(posECI, gmst)

	return OrbitState{
		Time:         t,
		ECI:          Vec3{X: posECI.X, Y: posECI.Y, Z: posECI.Z},
		ECEF:         Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z},
		LatitudeDeg:  radToDeg(ll.Latitude),
		LongitudeDeg: normalizeDeg(radToDeg(ll.Longitude)+180) - 180,
		AltitudeKm:   alt,
		SpeedKmS:     Vec3{X: velECI.X, Y: velECI.Y, Z: velECI.Z}.Norm(),
	}
}
