package transform

import "math"

// earthRotationPerMinute is the sidereal rotation of the Earth in degrees per
// solar minute (Pratt, "Satellite Communications", eq. 2.51).
const earthRotationPerMinute = 0.25068447

// GreenwichSiderealAngle returns the angle of the Greenwich meridian at 0h UT
// of the day containing jd, in degrees within [0, 360).
//
// Based on the USNO approximation for GMST at 0h UT:
//
//	GMST = 6.697374558 + 0.06570982441908*D0 + 0.000026*T²   (hours)
//
// where D0 counts days of 0h UT since J2000.0 and T is the whole number of
// Julian centuries in D0.
func GreenwichSiderealAngle(jd float64) float64 {
	d0 := zeroHourJulianDate(jd) - j2000
	centuries := math.Floor(d0 / 36525.0)

	hours := 6.697374558 + 0.06570982441908*d0 + 0.000026*centuries*centuries
	hours -= math.Floor(hours/24.0) * 24.0

	return hours * 360.0 / 24.0
}

// EarthRotationAngle returns the angle in degrees that the Earth-fixed frame has
// rotated relative to the geocentric inertial frame at jd. The value is not
// reduced and may exceed 360.
func EarthRotationAngle(jd float64) float64 {
	return GreenwichSiderealAngle(jd) + earthRotationPerMinute*MinutesSinceMidnight(jd)
}
