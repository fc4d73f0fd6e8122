package ephemeris

import (
	"fmt"
	"strings"
)

// Body identifies a solar-system body handled by the ephemeris.
type Body int

const (
	Mercury Body = iota
	Venus
	Mars
	Jupiter
	Saturn
	Uranus
	Neptune
	Sun
	Moon
)

var bodyNames = [...]string{
	Mercury: "mercury",
	Venus:   "venus",
	Mars:    "mars",
	Jupiter: "jupiter",
	Saturn:  "saturn",
	Uranus:  "uranus",
	Neptune: "neptune",
	Sun:     "sun",
	Moon:    "moon",
}

func (b Body) String() string {
	if b < 0 || int(b) >= len(bodyNames) {
		return fmt.Sprintf("Body(%d)", int(b))
	}
	return bodyNames[b]
}

// MarshalText implements encoding.TextMarshaler.
func (b Body) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// AllBodies lists every body in the order a sky report is built: the Sun
// first, since every other body depends on it.
var AllBodies = []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune}

// Planets lists the seven planets in order from the Sun.
var Planets = []Body{Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune}

// ParseBody resolves a case-insensitive body name.
func ParseBody(name string) (Body, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for b, s := range bodyNames {
		if s == n {
			return Body(b), nil
		}
	}
	return 0, fmt.Errorf("unknown body %q", name)
}

// linear is a + rate·d, d being days since 2000 Jan 0.0 UT.
type linear struct {
	base, rate float64
}

func (l linear) at(d float64) float64 { return l.base + l.rate*d }

// orbit holds the element polynomials of one body (Schlyter, "How to compute
// planetary positions"). N, i, w, M in degrees; a in AU (Earth radii for the
// Moon).
type orbit struct {
	N, i, w, a, e, M linear
}

var orbits = [...]orbit{
	Mercury: {
		N: linear{48.3313, 3.24587e-5},
		i: linear{7.0047, 5.00e-8},
		w: linear{29.1241, 1.01444e-5},
		a: linear{0.387098, 0},
		e: linear{0.205635, 5.59e-10},
		M: linear{168.6562, 4.0923344368},
	},
	Venus: {
		N: linear{76.6799, 2.46590e-5},
		i: linear{3.3946, 2.75e-8},
		w: linear{54.8910, 1.38374e-5},
		a: linear{0.723330, 0},
		e: linear{0.006773, -1.302e-9},
		M: linear{48.0052, 1.6021302244},
	},
	Mars: {
		N: linear{49.5574, 2.11081e-5},
		i: linear{1.8497, -1.78e-8},
		w: linear{286.5016, 2.92961e-5},
		a: linear{1.523688, 0},
		e: linear{0.093405, 2.516e-9},
		M: linear{18.6021, 0.5240207766},
	},
	Jupiter: {
		N: linear{100.4542, 2.76854e-5},
		i: linear{1.3030, -1.557e-7},
		w: linear{273.8777, 1.64505e-5},
		a: linear{5.20256, 0},
		e: linear{0.048498, 4.469e-9},
		M: linear{19.8950, 0.0830853001},
	},
	Saturn: {
		N: linear{113.6634, 2.38980e-5},
		i: linear{2.4886, -1.081e-7},
		w: linear{339.3939, 2.97661e-5},
		a: linear{9.55475, 0},
		e: linear{0.055546, -9.499e-9},
		M: linear{316.9670, 0.0334442282},
	},
	Uranus: {
		N: linear{74.0005, 1.3978e-5},
		i: linear{0.7733, 1.9e-8},
		w: linear{96.6612, 3.0565e-5},
		a: linear{19.18171, -1.55e-8},
		e: linear{0.047318, 7.45e-9},
		M: linear{142.5905, 0.011725806},
	},
	Neptune: {
		N: linear{131.7806, 3.0173e-5},
		i: linear{1.7700, -2.55e-7},
		w: linear{272.8461, -6.027e-6},
		a: linear{30.05826, 3.313e-8},
		e: linear{0.008606, 2.15e-9},
		M: linear{260.2471, 0.005995147},
	},
	Sun: {
		w: linear{282.9404, 4.70935e-5},
		a: linear{1, 0},
		e: linear{0.016709, -1.151e-9},
		M: linear{356.0470, 0.9856002585},
	},
	Moon: {
		N: linear{125.1228, -0.0529538083},
		i: linear{5.1454, 0},
		w: linear{318.0634, 0.1643573223},
		a: linear{60.2666, 0},
		e: linear{0.054900, 0},
		M: linear{115.3654, 13.0649929509},
	},
}

// Elements are the osculating elements of a body for one day number.
type Elements struct {
	N float64 `json:"node"`           // longitude of the ascending node
	I float64 `json:"inclination"`    // inclination to the ecliptic
	W float64 `json:"arg_perihelion"` // argument of perihelion
	A float64 `json:"semimajor_axis"`
	E float64 `json:"eccentricity"`
	M float64 `json:"mean_anomaly"`
}

// ElementsAt evaluates the element polynomials of b at day number d. N, w and
// M are not reduced.
func ElementsAt(b Body, d float64) Elements {
	o := orbits[b]
	return Elements{
		N: o.N.at(d),
		I: o.i.at(d),
		W: o.w.at(d),
		A: o.a.at(d),
		E: o.e.at(d),
		M: o.M.at(d),
	}
}
