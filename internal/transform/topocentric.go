package transform

import (
	"errors"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for sub-point altitudes and look
// angles.
const EarthRadiusKm = 6370.0

// degenerateGamma is the central angle below which the target is treated as
// directly above (or below) the observer.
const degenerateGamma = 1e-9

// ErrDegenerateGeometry is returned by LookAngleStrict when the observer and the
// target share the same sub-point and azimuth is undefined.
var ErrDegenerateGeometry = errors.New("degenerate look geometry: target at observer zenith")

// GeoPosition is a geographic sub-point with altitude in km above EarthRadiusKm.
type GeoPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// Observer is a ground (or airborne) observer. Altitude is in km.
type Observer struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// LookAngle holds azimuth and elevation from an observer to a target.
type LookAngle struct {
	AzimuthDeg   float64 `json:"azimuth"`   // 0 = North, clockwise
	ElevationDeg float64 `json:"elevation"` // 0 = horizon, 90 = zenith
}

// LookAngleFor computes the look angle from obs to the sub-point target using
// the spherical central-angle method (Pratt, "Satellite Communications").
//
// When the target sits on the observer's vertical the azimuth is undefined;
// it is reported as 0 and the elevation as ±90 depending on which of the two
// is further from the Earth's centre.
func LookAngleFor(obs Observer, target GeoPosition) LookAngle {
	la, err := LookAngleStrict(obs, target)
	if errors.Is(err, ErrDegenerateGeometry) {
		el := 90.0
		if target.Altitude < obs.Altitude {
			el = -90.0
		}
		return LookAngle{AzimuthDeg: 0, ElevationDeg: el}
	}
	return la
}

// LookAngleStrict is LookAngleFor but reports the zenith case as
// ErrDegenerateGeometry instead of substituting a default azimuth.
func LookAngleStrict(obs Observer, target GeoPosition) (LookAngle, error) {
	latO := Radians(obs.Latitude)
	lonO := Radians(obs.Longitude)
	latS := Radians(target.Latitude)
	lonS := Radians(target.Longitude)

	// gamma: angle at the Earth's centre between observer and sub-point.
	cosGamma := math.Sin(latS)*math.Sin(latO) + math.Cos(latS)*math.Cos(latO)*math.Cos(lonS-lonO)
	cosGamma = math.Max(-1, math.Min(1, cosGamma))
	gamma := math.Acos(cosGamma)
	if gamma < degenerateGamma {
		return LookAngle{}, ErrDegenerateGeometry
	}

	ratio := (EarthRadiusKm + obs.Altitude) / (EarthRadiusKm + target.Altitude)
	elevation := math.Atan((cosGamma - ratio) / math.Sin(gamma))

	alpha := math.Asin(math.Sin(math.Abs(lonO-lonS)) * math.Cos(latS) / gamma)

	var azimuth float64
	switch {
	case latS > latO && lonS > lonO: // north-east
		azimuth = alpha
	case latS > latO: // north-west
		azimuth = 2*math.Pi - alpha
	case lonS > lonO: // south-east
		azimuth = math.Pi - alpha
	default: // south-west
		azimuth = math.Pi + alpha
	}

	return LookAngle{
		AzimuthDeg:   Degrees(azimuth),
		ElevationDeg: Degrees(elevation),
	}, nil
}
