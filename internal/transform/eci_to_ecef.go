// Package transform provides time scales and coordinate frame transformations
// for satellite and celestial positions.
//
// Frames used here:
//
//   - perifocal: orbital plane, x towards perigee
//   - ECI: Earth-centred inertial, x towards the vernal equinox
//   - Earth-fixed: ECI rotated about z by the Earth rotation angle
//
// Rotations are passive (frame) rotations R1/R3 as in Vallado; an active
// rotation of a vector by θ is the passive rotation by -θ.
package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vector is a 3-vector in km.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// R1 is a passive rotation about the first axis by x radians.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 is a passive rotation about the third axis by x radians.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// Rotate applies m to v.
func Rotate(m mat.Matrix, v Vector) Vector {
	in := mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
	var out mat.VecDense
	out.MulVec(m, in)
	return Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// PerifocalToECI rotates a perifocal vector into ECI using the classical 3-1-3
// sequence: argument of perigee, inclination, then RAAN (all in degrees).
func PerifocalToECI(v Vector, argPerigeeDeg, inclinationDeg, raanDeg float64) Vector {
	var nodeIncl, m mat.Dense
	nodeIncl.Mul(R3(-Radians(raanDeg)), R1(-Radians(inclinationDeg)))
	m.Mul(&nodeIncl, R3(-Radians(argPerigeeDeg)))
	return Rotate(&m, v)
}

// ECIToEarthFixed rotates an ECI vector into the Earth-fixed frame for the
// given Earth rotation angle in degrees.
func ECIToEarthFixed(v Vector, rotationDeg float64) Vector {
	return Rotate(R3(Radians(rotationDeg)), v)
}

// SubPoint converts an Earth-fixed vector into its geographic sub-point.
// Altitude is measured from a sphere of radius EarthRadiusKm and uses radius,
// the orbital radius, rather than |v| so callers can pass the exact Kepler
// radius.
func SubPoint(v Vector, radius float64) GeoPosition {
	return GeoPosition{
		Latitude:  90.0 - Degrees(math.Acos(v.Z/v.Norm())),
		Longitude: Degrees(math.Atan2(v.Y, v.X)),
		Altitude:  radius - EarthRadiusKm,
	}
}
