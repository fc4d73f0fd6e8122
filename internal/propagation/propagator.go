package propagation

import (
	"math"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// PositionAt returns the sub-satellite point for el at t using two-body
// Kepler motion. It is pure: identical inputs give bit-identical results.
// Instants before the element set epoch are propagated backwards.
func PositionAt(el tle.Elements, t time.Time) transform.GeoPosition {
	return StateAtJulianDate(el, transform.JulianDate(t)).SubPoint
}

// StateAt is PositionAt with all intermediate quantities.
func StateAt(el tle.Elements, t time.Time) State {
	return StateAtJulianDate(el, transform.JulianDate(t))
}

// StateAtJulianDate propagates el to the Julian Date jd.
func StateAtJulianDate(el tle.Elements, jd float64) State {
	e := el.Eccentricity

	meanAnomaly := el.MeanAnomalyAt(jd)
	eccAnomaly, iterations := SolveKepler(transform.Radians(meanAnomaly), e)
	trueAnomaly := TrueAnomaly(eccAnomaly, e)
	radius := el.SemimajorAxis() * (1 - e*math.Cos(eccAnomaly))

	perifocal := transform.Vector{
		X: radius * math.Cos(trueAnomaly),
		Y: radius * math.Sin(trueAnomaly),
	}
	eci := transform.PerifocalToECI(perifocal, el.ArgPerigee, el.Inclination, el.RAAN)

	rotation := transform.EarthRotationAngle(jd)
	fixed := transform.ECIToEarthFixed(eci, rotation)

	return State{
		JulianDate:       jd,
		MeanAnomaly:      meanAnomaly,
		EccentricAnomaly: transform.Degrees(eccAnomaly),
		TrueAnomaly:      transform.Degrees(trueAnomaly),
		Radius:           radius,
		Iterations:       iterations,
		ECI:              eci,
		EarthFixed:       fixed,
		RotationAngle:    rotation,
		SubPoint:         transform.SubPoint(fixed, radius),
	}
}
