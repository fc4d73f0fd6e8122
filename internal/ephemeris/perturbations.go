package ephemeris

import (
	"math"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// perturbations returns the longitude, latitude (degrees) and distance
// corrections for b. Only Jupiter, Saturn, Uranus and the Moon are perturbed.
//
// The Jupiter, Saturn and Uranus terms feed degree-valued arguments straight
// into sin and cos. Published reference values depend on this, so it is kept.
func perturbations(b Body, el Elements, d float64) (plong, plat, pr float64) {
	switch b {
	case Jupiter:
		m := el.M
		ms := transform.ClampTo360(orbits[Saturn].M.at(d))
		plong = -0.332*math.Sin(2*m-5*ms-67.6) -
			0.056*math.Sin(2*m-2*ms+21) +
			0.042*math.Sin(3*m-5*ms+21) -
			0.036*math.Sin(m-2*ms) +
			0.022*math.Cos(m-ms) +
			0.023*math.Sin(2*m-3*ms+52) -
			0.016*math.Sin(m-5*ms-69)

	case Saturn:
		m := el.M
		mj := transform.ClampTo360(orbits[Jupiter].M.at(d))
		plong = 0.812*math.Sin(2*mj-5*m-67.6) -
			0.229*math.Cos(2*mj-4*m-2) +
			0.119*math.Sin(mj-2*m-3) +
			0.046*math.Sin(2*mj-6*m-69) +
			0.014*math.Sin(mj-3*m+32)
		plat = -0.020*math.Cos(2*mj-4*m-2) +
			0.018*math.Sin(2*mj-6*m-49)

	case Uranus:
		m := el.M
		mj := transform.ClampTo360(orbits[Jupiter].M.at(d))
		ms := transform.ClampTo360(orbits[Saturn].M.at(d))
		plong = 0.040*math.Sin(ms-2*m+6) +
			0.035*math.Sin(ms-3*m+33) -
			0.015*math.Sin(mj-m+20)

	case Moon:
		ms := transform.ClampTo360(orbits[Sun].M.at(d))
		ws := transform.ClampTo360(orbits[Sun].w.at(d))
		mm := el.M
		ls := ms + ws
		lm := el.M + el.W
		D := lm - ls   // mean elongation
		F := lm - el.N // argument of latitude

		sin := func(deg float64) float64 { return math.Sin(transform.Radians(deg)) }
		cos := func(deg float64) float64 { return math.Cos(transform.Radians(deg)) }

		plong = -1.274*sin(mm-2*D) +
			0.658*sin(2*D) -
			0.186*sin(ms) -
			0.059*sin(2*mm-2*D) -
			0.057*sin(mm-2*D+ms) +
			0.053*sin(mm+2*D) +
			0.046*sin(2*D-ms) +
			0.041*sin(mm-ms) -
			0.035*sin(D) -
			0.031*sin(mm+ms) -
			0.015*sin(2*F-2*D) +
			0.011*sin(mm-4*D)
		plat = -0.173*sin(F-2*D) -
			0.055*sin(mm-F-2*D) -
			0.046*sin(mm+F-2*D) +
			0.033*sin(F+2*D) +
			0.017*sin(2*mm+F)
		pr = -0.58*cos(mm-2*D) -
			0.46*cos(2*D)
	}
	return plong, plat, pr
}
