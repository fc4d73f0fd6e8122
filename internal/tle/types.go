package tle

import (
	"fmt"
	"math"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// GM is the Earth's gravitational parameter in km³/s² used for the
// semimajor axis.
const GM = 398613.52

// Elements holds the orbital elements decoded from one NORAD two-line
// element set. Angles are in degrees, mean motion in revolutions per day.
type Elements struct {
	CatalogNumber    int     `json:"catalog_number"`
	Designator       string  `json:"designator"` // COSPAR, e.g. "1998-067A"
	EpochYear        int     `json:"epoch_year"`
	EpochDay         float64 `json:"epoch_day"` // 1-based fractional day of year
	Inclination      float64 `json:"inclination"`
	RAAN             float64 `json:"raan"`
	Eccentricity     float64 `json:"eccentricity"`
	ArgPerigee       float64 `json:"arg_perigee"`
	MeanAnomaly      float64 `json:"mean_anomaly"`
	MeanMotion       float64 `json:"mean_motion"`
	RevolutionNumber int     `json:"revolution_number"`
}

// Satellite is a named element set. The name is the catalog key.
type Satellite struct {
	Name     string   `json:"name"`
	Elements Elements `json:"elements"`
}

// Record is one name/line1/line2 triplet from a TLE document together with
// its decoded elements.
type Record struct {
	Name     string
	Line1    string
	Line2    string
	Elements Elements
}

// EpochRange represents the minimum and maximum epoch times in a set of
// element sets.
type EpochRange struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// Validate checks the physical invariants of the element set.
func (e Elements) Validate() error {
	if e.Eccentricity < 0 || e.Eccentricity >= 1 {
		return fmt.Errorf("eccentricity %v outside [0, 1)", e.Eccentricity)
	}
	if e.Inclination < 0 || e.Inclination > 180 {
		return fmt.Errorf("inclination %v outside [0, 180]", e.Inclination)
	}
	if e.MeanMotion <= 0 {
		return fmt.Errorf("mean motion %v must be positive", e.MeanMotion)
	}
	return nil
}

// SemimajorAxis returns the semimajor axis in km from Kepler's third law,
// a = (GM / (4π²n²))^(1/3) with n in revolutions per second.
func (e Elements) SemimajorAxis() float64 {
	n := e.MeanMotion / 86400.0
	return math.Cbrt(GM / (4 * math.Pi * math.Pi * n * n))
}

// OrbitalPeriodMinutes returns the orbital period in minutes.
func (e Elements) OrbitalPeriodMinutes() float64 {
	return 1440.0 / e.MeanMotion
}

// EpochJulianDate returns the Julian Date of the element set epoch.
func (e Elements) EpochJulianDate() float64 {
	return transform.EpochJulianDate(e.EpochYear, e.EpochDay)
}

// Epoch returns the element set epoch as a UTC time.
func (e Elements) Epoch() time.Time {
	t := time.Date(e.EpochYear, 1, 1, 0, 0, 0, 0, time.UTC)
	// EpochDay is 1-based: day 1 = Jan 1.
	return t.Add(time.Duration((e.EpochDay - 1) * float64(24*time.Hour)))
}

// MeanAnomalyAt returns the mean anomaly in degrees within [0, 360) at the
// Julian Date jd. Dates before the epoch are allowed.
func (e Elements) MeanAnomalyAt(jd float64) float64 {
	m := e.MeanAnomaly + e.MeanMotion*(jd-e.EpochJulianDate())*360.0
	m -= 360.0 * math.Floor(m/360.0)
	if m >= 360 {
		m = 0
	}
	return m
}

// RangeOf returns the epoch range covered by sats. The zero value is
// returned for an empty slice.
func RangeOf(sats []Satellite) EpochRange {
	var r EpochRange
	for i, s := range sats {
		ep := s.Elements.Epoch()
		if i == 0 || ep.Before(r.Min) {
			r.Min = ep
		}
		if i == 0 || ep.After(r.Max) {
			r.Max = ep
		}
	}
	return r
}
