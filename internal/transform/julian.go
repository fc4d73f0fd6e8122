package transform

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const j2000 = 2451545.0

const (
	secondsPerDay = 86400.0
	minutesPerDay = 1440.0
)

// JulianDate converts a UTC instant to a Julian Date. Sub-second precision is
// dropped so that every caller within the same second sees the same value.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	return satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// JulianDateToTime converts a Julian Date back to a UTC time.Time.
func JulianDateToTime(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}

// EpochJulianDate returns the Julian Date of a TLE epoch given as a four digit
// year and a 1-based fractional day of year.
func EpochJulianDate(year int, dayOfYear float64) float64 {
	jan1 := satellite.JDay(year, 1, 1, 0, 0, 0)
	return jan1 + dayOfYear - 1.0
}

// DayNumber returns the day count used by the approximate planetary theory:
// whole days since 2000 Jan 0.0 UT plus the fraction of the current day
// (hours and minutes only). ut is that fraction on its own.
//
//	d = 367y - 7(y + (m+9)/12)/4 + 275m/9 + D - 730530
//
// All divisions are integer divisions.
func DayNumber(t time.Time) (d int, ut float64) {
	t = t.UTC()
	y := t.Year()
	m := int(t.Month())
	day := t.Day()

	d = 367*y - (7*(y+((m+9)/12)))/4 + (275*m)/9 + day - 730530
	ut = float64(t.Hour()*60+t.Minute()) / minutesPerDay
	return d, ut
}

// DayTime is DayNumber folded into a single value: d + ut.
func DayTime(t time.Time) float64 {
	d, ut := DayNumber(t)
	return float64(d) + ut
}

// zeroHourJulianDate returns the Julian Date of 0h UT on the day of jd.
func zeroHourJulianDate(jd float64) float64 {
	return math.Floor(jd-0.5) + 0.5
}

// MinutesSinceMidnight returns the minutes elapsed since 0h UT for jd.
func MinutesSinceMidnight(jd float64) float64 {
	return minutesPerDay * (jd - zeroHourJulianDate(jd))
}
