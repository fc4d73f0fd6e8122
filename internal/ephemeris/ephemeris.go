// Package ephemeris computes approximate positions of the Sun, the Moon and
// the planets from linear orbital element polynomials, following Paul
// Schlyter's "How to compute planetary positions".
//
// Every body other than the Sun is computed relative to a Sun state for the
// same instant, so the Sun has to be computed first.
package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// ErrSunRequired is returned when a non-Sun body is computed without a Sun
// state for the same instant.
var ErrSunRequired = errors.New("ephemeris: sun state for the same instant required")

// BodyState is the full set of intermediates for one body at one instant.
// Angles are in degrees; distances in AU (Earth radii for the Moon's own
// orbit).
type BodyState struct {
	Body Body
	Time time.Time

	// DayNumber and DayFraction are the integer day count since 2000 Jan 0.0
	// UT and the fraction of the day (hours and minutes) of Time.
	DayNumber   int
	DayFraction float64

	Elements         Elements // N, w and M reduced to [0, 360)
	Obliquity        float64
	EccentricAnomaly float64
	TrueAnomaly      float64
	Radius           float64

	Xh, Yh, Zh float64 // heliocentric ecliptic (geocentric for the Moon's orbit)
	Xg, Yg, Zg float64 // geocentric ecliptic
	Xe, Ye, Ze float64 // geocentric equatorial

	EclipticLongitude float64
	EclipticLatitude  float64

	PLong, PLat, PR float64 // perturbations

	Distance float64
	RA       float64
	Dec      float64

	// Latitude and Longitude locate the point on the Earth with the body at
	// its zenith.
	Latitude  float64
	Longitude float64
}

// ComputeSun computes the Sun's state at t.
func ComputeSun(t time.Time) *BodyState {
	s, _ := Compute(Sun, t, nil)
	return s
}

// Compute returns the state of b at t. For any body but the Sun, sun must be
// the Sun's state computed for the same minute; it is only read.
func Compute(b Body, t time.Time, sun *BodyState) (*BodyState, error) {
	if b < Mercury || b > Moon {
		return nil, fmt.Errorf("ephemeris: unknown body %d", int(b))
	}

	dayNumber, ut := transform.DayNumber(t)
	if b != Sun {
		if sun == nil || sun.Body != Sun {
			return nil, ErrSunRequired
		}
		if sun.DayNumber != dayNumber || sun.DayFraction != ut {
			return nil, fmt.Errorf("%w: sun computed for day %v, body for day %v",
				ErrSunRequired, float64(sun.DayNumber)+sun.DayFraction, float64(dayNumber)+ut)
		}
	}

	// The element polynomials are evaluated at 0h UT of the day.
	d := float64(dayNumber)

	el := ElementsAt(b, d)
	el.N = transform.ClampTo360(el.N)
	el.W = transform.ClampTo360(el.W)
	el.M = transform.ClampTo360(el.M)

	s := &BodyState{
		Body:        b,
		Time:        t,
		DayNumber:   dayNumber,
		DayFraction: ut,
		Elements:    el,
		Obliquity:   23.4393 - 3.563e-7*d,
	}

	// First order eccentric anomaly; adequate for small eccentricities.
	mRad := transform.Radians(el.M)
	s.EccentricAnomaly = el.M + el.E*(180/math.Pi)*math.Sin(mRad)*(1+el.E*math.Cos(mRad))

	eRad := transform.Radians(s.EccentricAnomaly)
	xv := el.A * (math.Cos(eRad) - el.E)
	yv := el.A * math.Sqrt(1-el.E*el.E) * math.Sin(eRad)
	s.TrueAnomaly = transform.ClampTo360(transform.Degrees(math.Atan2(yv, xv)))
	s.Radius = math.Hypot(xv, yv)

	sinN, cosN := math.Sincos(transform.Radians(el.N))
	sinVW, cosVW := math.Sincos(transform.Radians(s.TrueAnomaly + el.W))
	sinI, cosI := math.Sincos(transform.Radians(el.I))
	s.Xh = s.Radius * (cosN*cosVW - sinN*sinVW*cosI)
	s.Yh = s.Radius * (sinN*cosVW + cosN*sinVW*cosI)
	s.Zh = s.Radius * (sinVW * sinI)

	s.EclipticLongitude = transform.ClampTo360(transform.Degrees(math.Atan2(s.Yh, s.Xh)))
	s.EclipticLatitude = transform.ClampLatitude(transform.Degrees(math.Atan2(s.Zh, math.Hypot(s.Xh, s.Yh))))

	if b == Sun {
		s.Xg, s.Yg, s.Zg = s.Xh, s.Yh, s.Zh
	} else {
		s.Xg, s.Yg, s.Zg = sun.Xg+s.Xh, sun.Yg+s.Yh, sun.Zg+s.Zh
	}

	sinEcl, cosEcl := math.Sincos(transform.Radians(s.Obliquity))
	s.Xe = s.Xg
	s.Ye = s.Yg*cosEcl - s.Zg*sinEcl
	s.Ze = s.Yg*sinEcl + s.Zg*cosEcl

	s.PLong, s.PLat, s.PR = perturbations(b, el, d)

	s.Distance = math.Sqrt(s.Xe*s.Xe+s.Ye*s.Ye+s.Ze*s.Ze) + s.PR
	s.RA = transform.ClampTo360(transform.Degrees(math.Atan2(s.Ye, s.Xe)))
	s.Dec = transform.ClampLatitude(transform.Degrees(math.Atan2(s.Ze, math.Hypot(s.Xe, s.Ye))) + s.PLat)

	hourAngle := siderealTime(sunMeanLongitude(d), ut, 0)*15 - s.RA
	s.Latitude = s.Dec
	s.Longitude = transform.ClampTo360(360 - hourAngle + s.PLong)

	return s, nil
}

// sunMeanLongitude returns the Sun's mean longitude L = w + M at day d.
func sunMeanLongitude(d float64) float64 {
	o := orbits[Sun]
	return transform.ClampTo360(o.w.at(d) + o.M.at(d))
}

// siderealTime returns the local sidereal time in hours for the Sun's mean
// longitude L, the UT day fraction and an east longitude in degrees. The
// result is not reduced.
func siderealTime(L, ut, longitude float64) float64 {
	gmst0 := transform.ClampTo360(L+180) / 15
	return gmst0 + ut*24 + longitude/15
}
