package propagation

import "math"

const (
	// keplerTolerance is the convergence threshold on successive eccentric
	// anomaly estimates, in radians.
	keplerTolerance = 1e-4

	// maxKeplerIterations bounds Newton-Raphson. Valid elliptical orbits
	// converge in a handful of steps.
	maxKeplerIterations = 100
)

// SolveKepler solves Kepler's equation M = E - e·sin(E) for the eccentric
// anomaly E with Newton-Raphson seeded at M. M and E are in radians. The
// number of iterations taken is returned alongside E.
func SolveKepler(meanAnomaly, eccentricity float64) (float64, int) {
	if eccentricity == 0 {
		return meanAnomaly, 0
	}

	e := meanAnomaly
	for i := 1; i <= maxKeplerIterations; i++ {
		next := e - (e-eccentricity*math.Sin(e)-meanAnomaly)/(1-eccentricity*math.Cos(e))
		if math.Abs(next-e) < keplerTolerance {
			return next, i
		}
		e = next
	}
	return e, maxKeplerIterations
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly (radians).
func TrueAnomaly(eccentricAnomaly, eccentricity float64) float64 {
	half := eccentricAnomaly / 2
	return 2 * math.Atan2(
		math.Sqrt(1+eccentricity)*math.Sin(half),
		math.Sqrt(1-eccentricity)*math.Cos(half),
	)
}
