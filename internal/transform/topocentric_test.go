package transform

import (
	"errors"
	"math"
	"testing"
)

func TestLookAngleFor_DirectlyOverhead(t *testing.T) {
	obs := Observer{Latitude: 12.5, Longitude: -40, Altitude: 0}
	la := LookAngleFor(obs, GeoPosition{Latitude: 12.5, Longitude: -40, Altitude: 400})

	if la.ElevationDeg != 90 {
		t.Errorf("overhead elevation = %.2f deg, want 90", la.ElevationDeg)
	}
	if la.AzimuthDeg != 0 {
		t.Errorf("overhead azimuth = %.2f deg, want fallback 0", la.AzimuthDeg)
	}

	_, err := LookAngleStrict(obs, GeoPosition{Latitude: 12.5, Longitude: -40, Altitude: 400})
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("LookAngleStrict error = %v, want ErrDegenerateGeometry", err)
	}
}

func TestLookAngleFor_BelowObserver(t *testing.T) {
	obs := Observer{Latitude: 0, Longitude: 0, Altitude: 10}
	la := LookAngleFor(obs, GeoPosition{Latitude: 0, Longitude: 0, Altitude: 0})
	if la.ElevationDeg != -90 {
		t.Errorf("elevation = %.2f, want -90", la.ElevationDeg)
	}
}

func TestLookAngleFor_Quadrants(t *testing.T) {
	obs := Observer{Latitude: 0, Longitude: 0, Altitude: 0}

	tests := []struct {
		name    string
		target  GeoPosition
		wantAz  float64
		azDelta float64
	}{
		{"north-east", GeoPosition{Latitude: 1, Longitude: 1, Altitude: 400}, 45, 0.5},
		{"north-west", GeoPosition{Latitude: 1, Longitude: -1, Altitude: 400}, 315, 0.5},
		{"south-east", GeoPosition{Latitude: -1, Longitude: 1, Altitude: 400}, 135, 0.5},
		{"south-west", GeoPosition{Latitude: -1, Longitude: -1, Altitude: 400}, 225, 0.5},
		// Same longitude counts as "west" and same latitude as "south".
		{"due north", GeoPosition{Latitude: 10, Longitude: 0, Altitude: 400}, 360, 1e-9},
		{"due south", GeoPosition{Latitude: -10, Longitude: 0, Altitude: 400}, 180, 1e-9},
		{"due east", GeoPosition{Latitude: 0, Longitude: 10, Altitude: 400}, 95.7, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := LookAngleFor(obs, tt.target)
			if math.Abs(la.AzimuthDeg-tt.wantAz) > tt.azDelta {
				t.Errorf("azimuth = %.4f deg, want %.4f ± %.4f", la.AzimuthDeg, tt.wantAz, tt.azDelta)
			}
			if math.IsNaN(la.ElevationDeg) {
				t.Error("elevation is NaN")
			}
		})
	}
}

func TestLookAngleFor_Elevation(t *testing.T) {
	obs := Observer{Latitude: 0, Longitude: 0, Altitude: 0}

	// Close to the vertical: high elevation.
	near := LookAngleFor(obs, GeoPosition{Latitude: 0.5, Longitude: 0, Altitude: 400})
	if near.ElevationDeg < 80 {
		t.Errorf("near-zenith elevation = %.2f, want > 80", near.ElevationDeg)
	}

	// 20° of arc away at 400 km is right at the horizon.
	horizon := LookAngleFor(obs, GeoPosition{Latitude: 0, Longitude: 20, Altitude: 400})
	if math.Abs(horizon.ElevationDeg) > 1 {
		t.Errorf("horizon elevation = %.2f, want ~0", horizon.ElevationDeg)
	}

	// Far side of the Earth: well below the horizon.
	far := LookAngleFor(obs, GeoPosition{Latitude: 0, Longitude: 120, Altitude: 400})
	if far.ElevationDeg > -30 {
		t.Errorf("far-side elevation = %.2f, want < -30", far.ElevationDeg)
	}
}

func TestPerifocalToECI(t *testing.T) {
	tests := []struct {
		name                string
		argPerigee, incl, Ω float64
		want                Vector
	}{
		{"identity", 0, 0, 0, Vector{1, 0, 0}},
		{"argument of perigee", 90, 0, 0, Vector{0, 1, 0}},
		{"polar orbit", 90, 90, 0, Vector{0, 0, 1}},
		{"node", 0, 0, 90, Vector{0, 1, 0}},
		{"node and inclination", 90, 90, 90, Vector{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PerifocalToECI(Vector{1, 0, 0}, tt.argPerigee, tt.incl, tt.Ω)
			if math.Abs(got.X-tt.want.X) > 1e-12 || math.Abs(got.Y-tt.want.Y) > 1e-12 || math.Abs(got.Z-tt.want.Z) > 1e-12 {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestECIToEarthFixed(t *testing.T) {
	// The Earth has turned 90° east, so an inertial +x point now sits at -90° longitude.
	got := ECIToEarthFixed(Vector{7000, 0, 0}, 90)
	sp := SubPoint(got, 7000)
	if math.Abs(sp.Longitude+90) > 1e-9 {
		t.Errorf("longitude = %.9f, want -90", sp.Longitude)
	}
	if math.Abs(sp.Latitude) > 1e-9 {
		t.Errorf("latitude = %.9f, want 0", sp.Latitude)
	}
	if sp.Altitude != 630 {
		t.Errorf("altitude = %.3f, want 630", sp.Altitude)
	}
}

func TestSubPointPole(t *testing.T) {
	sp := SubPoint(Vector{0, 0, 7000}, 7000)
	if math.Abs(sp.Latitude-90) > 1e-12 {
		t.Errorf("latitude = %v, want 90", sp.Latitude)
	}
}
