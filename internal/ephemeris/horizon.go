package ephemeris

import (
	"math"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// Horizon returns the body's azimuth and altitude as seen by obs. Sidereal
// time is taken from the state's own day number and day fraction, including
// the fraction when evaluating the Sun's mean longitude.
func (s *BodyState) Horizon(obs transform.Observer) transform.LookAngle {
	L := sunMeanLongitude(float64(s.DayNumber) + s.DayFraction)
	ha := transform.Radians(siderealTime(L, s.DayFraction, obs.Longitude)*15 - s.RA)
	dec := transform.Radians(s.Dec)
	lat := transform.Radians(obs.Latitude)

	xi := math.Cos(ha) * math.Cos(dec)
	yi := math.Sin(ha) * math.Cos(dec)
	zi := math.Sin(dec)

	// Rotate about the y axis so z points to the observer's zenith.
	xhor := xi*math.Sin(lat) - zi*math.Cos(lat)
	yhor := yi
	zhor := xi*math.Cos(lat) + zi*math.Sin(lat)

	return transform.LookAngle{
		AzimuthDeg:   transform.Degrees(math.Atan2(yhor, xhor)) + 180,
		ElevationDeg: transform.Degrees(math.Atan2(zhor, math.Hypot(xhor, yhor))),
	}
}

// Position summarises one body for reporting.
type Position struct {
	Body      Body                `json:"body"`
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Distance  float64             `json:"distance"`
	RA        float64             `json:"ra"`
	Dec       float64             `json:"dec"`
	Horizon   transform.LookAngle `json:"horizon"`
}

// PositionFor summarises s as seen from obs.
func (s *BodyState) PositionFor(obs transform.Observer) Position {
	return Position{
		Body:      s.Body,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Distance:  s.Distance,
		RA:        s.RA,
		Dec:       s.Dec,
		Horizon:   s.Horizon(obs),
	}
}

// Sky computes the Sun first and then every other body in AllBodies order.
func Sky(t time.Time, obs transform.Observer) ([]Position, error) {
	return Bodies(t, obs, AllBodies...)
}

// Bodies computes the requested bodies at t, in the given order, against a
// single Sun state.
func Bodies(t time.Time, obs transform.Observer, bodies ...Body) ([]Position, error) {
	sun := ComputeSun(t)
	out := make([]Position, 0, len(bodies))
	for _, b := range bodies {
		st := sun
		if b != Sun {
			var err error
			st, err = Compute(b, t, sun)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, st.PositionFor(obs))
	}
	return out, nil
}
