// Package passes predicts when satellites rise above an observer's horizon,
// using two-body propagation and spherical look angles.
package passes

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dhmspector/ZeitSatTrack/internal/propagation"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`  // km
	Elevation float64   `json:"elevation"` // degrees above observer's horizon
}

// PassEvent describes a single satellite pass over an observer location.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	Name          string      `json:"name"`
	CatalogNumber int         `json:"catalog_number"`
	Passes        []PassEvent `json:"passes"`
	Error         string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer     transform.Observer
	Satellites   []tle.Satellite
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 // seconds between ground track samples
	minPassDur      = 10 * time.Second
)

// Predict computes passes for every satellite in the request, in request
// order. Satellites are processed concurrently, at most one per CPU. If ctx
// ends first, the unfinished satellites are marked "cancelled" and the
// context error is returned alongside the partial results.
func Predict(ctx context.Context, req Request) ([]SatellitePasses, error) {
	results := make([]SatellitePasses, len(req.Satellites))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, sat := range req.Satellites {
		results[i] = SatellitePasses{Name: sat.Name, CatalogNumber: sat.Elements.CatalogNumber}
		g.Go(func() error {
			if ctx.Err() == nil {
				results[i].Passes = predictSatellite(ctx, req, sat.Elements)
			}
			if err := ctx.Err(); err != nil {
				results[i].Error = "cancelled"
				return err
			}
			return nil
		})
	}
	return results, g.Wait()
}

// predictSatellite finds all passes for a single satellite.
func predictSatellite(ctx context.Context, req Request, el tle.Elements) []PassEvent {
	end := req.Start.Add(req.Horizon)
	var passes []PassEvent

	// Coarse scan: step through the time range looking for elevation > 0.
	t := req.Start
	for t.Before(end) && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes
		}

		elev, _, _ := lookAt(el, req.Observer, t)
		if elev <= 0 {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := refinePass(ctx, el, req.Observer, t, req.Start, end, req.MinElevation)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}
	return passes
}

// refinePass scans at fineStep around a coarse above-horizon hit. It backs up
// one coarse step to find the rise above minElev, then scans forward to the
// set. If the satellite drops below the horizon without reaching minElev the
// window is closed with no pass. It returns the pass, if any, and the time
// the scan stopped.
func refinePass(ctx context.Context, el tle.Elements, obs transform.Observer, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*PassEvent, time.Time) {
	t := coarseHit.Add(-coarseStep)
	if t.Before(windowStart) {
		t = windowStart
	}

	var (
		pass        PassEvent
		rise        time.Time
		foundRise   bool
		wasAbove    bool
		groundTrack []GroundTrackPoint
	)

	for ; t.Before(windowEnd); t = t.Add(fineStep) {
		if ctx.Err() != nil {
			break
		}

		elev, la, geo := lookAt(el, obs, t)
		above := elev >= minElev

		if above && !foundRise {
			rise = t
			foundRise = true
			pass.StartTime = t
			pass.StartAzimuth = la.AzimuthDeg
			pass.MaxElevation = elev
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = la.AzimuthDeg
		}

		if above {
			if elev > pass.MaxElevation {
				pass.MaxElevation = elev
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = la.AzimuthDeg
			}
			if int(t.Sub(rise).Seconds())%groundTrackStep == 0 {
				groundTrack = append(groundTrack, GroundTrackPoint{
					Time:      t,
					Latitude:  geo.Latitude,
					Longitude: geo.Longitude,
					Altitude:  geo.Altitude,
					Elevation: elev,
				})
			}
		}

		if !above && wasAbove {
			pass.EndTime = t
			pass.EndAzimuth = la.AzimuthDeg
			break
		}
		if !foundRise && elev < 0 && !t.Before(coarseHit) {
			// Back below the horizon without reaching minElev.
			return nil, t
		}

		wasAbove = above
	}

	if !foundRise {
		return nil, t
	}
	if pass.EndTime.IsZero() {
		// Still up at the end of the window: close the pass there.
		_, la, _ := lookAt(el, obs, t)
		pass.EndTime = t
		pass.EndAzimuth = la.AzimuthDeg
	}

	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	pass.GroundTrack = groundTrack
	return &pass, pass.EndTime
}

// lookAt returns the elevation, look angle and sub-point of el from obs at t.
func lookAt(el tle.Elements, obs transform.Observer, t time.Time) (float64, transform.LookAngle, transform.GeoPosition) {
	geo := propagation.PositionAt(el, t)
	la := transform.LookAngleFor(obs, geo)
	return la.ElevationDeg, la, geo
}
