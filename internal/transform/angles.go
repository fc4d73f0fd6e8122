package transform

import "math"

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * deg2rad }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * rad2deg }

// ClampTo360 brings an angle into [0, 360) by repeatedly adding or
// subtracting a full turn. NaN and ±Inf are returned unchanged.
func ClampTo360(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if math.Abs(x) > 360*1e6 {
		x = math.Mod(x, 360)
	}
	if x >= 360 {
		for x >= 360 {
			x -= 360
		}
	} else if x < 0 {
		for x < 0 {
			x += 360
		}
		// A tiny negative input rounds up to exactly 360.
		if x >= 360 {
			x = 0
		}
	}
	return x
}

// ClampLatitude is the latitude correction used by the planetary theory.
// It only reduces values above 360 and only lifts values below -180 while they
// stay negative, so values in (180, 360] and results in [0, 180) for inputs
// below -180 pass through as-is.
func ClampLatitude(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if x > 180 {
		for x > 360 {
			x -= 360
		}
	} else if x < -180 {
		for x < 0 {
			x += 360
		}
	}
	return x
}
