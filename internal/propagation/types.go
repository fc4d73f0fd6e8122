package propagation

import (
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// Position is the sub-satellite point of a named satellite at one instant.
type Position struct {
	Name          string                `json:"name"`
	CatalogNumber int                   `json:"catalog_number"`
	Time          time.Time             `json:"time"`
	Geo           transform.GeoPosition `json:"position"`
}

// State holds the intermediate quantities of one two-body propagation.
// Angles are in degrees, distances in km.
type State struct {
	JulianDate       float64
	MeanAnomaly      float64
	EccentricAnomaly float64
	TrueAnomaly      float64
	Radius           float64
	Iterations       int
	ECI              transform.Vector
	EarthFixed       transform.Vector
	RotationAngle    float64
	SubPoint         transform.GeoPosition
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Workers int // Worker pool size (default: runtime.NumCPU())
}
