// Command diag prints a one-shot tracking report: current sub-satellite
// points, look angles and upcoming passes for a TLE document or group, plus
// the sky from the same observer.
//
//	diag -tle file:///tmp/stations.txt -lat 39.7392 -lon -104.9903 -alt 1.609
//	diag -group Stations -hours 72 -min-elev 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/config"
	"github.com/dhmspector/ZeitSatTrack/internal/ephemeris"
	"github.com/dhmspector/ZeitSatTrack/internal/passes"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

func main() {
	var (
		locator = flag.String("tle", "", "TLE document locator (http(s):// or file://)")
		group   = flag.String("group", "", "configured group to load instead of -tle")
		lat     = flag.Float64("lat", 39.7392, "observer latitude, degrees")
		lon     = flag.Float64("lon", -104.9903, "observer longitude, degrees")
		alt     = flag.Float64("alt", 1.609, "observer altitude, km")
		at      = flag.String("at", "", "report instant, RFC 3339 (default now)")
		hours   = flag.Int("hours", 72, "pass prediction horizon, hours")
		minElev = flag.Float64("min-elev", 1, "minimum pass elevation, degrees")
		limit   = flag.Int("n", 5, "number of satellites to report")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(logger)
	if err != nil {
		fmt.Println("ERROR loading configuration:", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			fmt.Println("ERROR parsing -at:", err)
			os.Exit(1)
		}
	}
	obs := transform.Observer{Latitude: *lat, Longitude: *lon, Altitude: *alt}

	fetcher := tle.NewFetcher(cfg.TLE.FetchTimeout, logger)
	m := tracker.New(tracker.Options{
		Source: fetcher,
		Groups: config.NewGroupCatalog(cfg.Groups),
		Logger: logger,
		Clock:  func() time.Time { return now },
	})
	defer m.Stop()
	m.SetObserverPosition(obs)

	ctx := context.Background()
	var res tracker.LoadResult
	switch {
	case *group != "":
		res, err = m.LoadGroup(ctx, *group)
	case *locator != "":
		var data []byte
		if data, err = fetcher.Fetch(ctx, *locator); err == nil {
			res = m.LoadFromText(string(data))
		}
	default:
		fmt.Println("ERROR: one of -tle or -group is required")
		os.Exit(2)
	}
	if err != nil && res.Added == 0 {
		fmt.Println("ERROR loading TLE data:", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d satellites (%d duplicates, %d malformed)\n", res.Added, res.Duplicates, res.Malformed)

	sats := m.Satellites()
	if len(sats) == 0 {
		os.Exit(0)
	}
	epochs := tle.RangeOf(sats)
	fmt.Printf("Epochs: %s .. %s\n", epochs.Min.Format(time.RFC3339), epochs.Max.Format(time.RFC3339))
	if len(sats) > *limit {
		sats = sats[:*limit]
	}

	fmt.Printf("\nObserver %.4f, %.4f at %s\n", obs.Latitude, obs.Longitude, now.Format(time.RFC3339))
	for _, s := range sats {
		geo, _ := m.PositionOf(s.Name, now)
		la, _ := m.LookAngleOf(s.Name, now)
		fmt.Printf("  %-24s #%-6d lat=%8.3f lon=%9.3f alt=%7.1fkm az=%6.1f° el=%6.1f°\n",
			s.Name, s.Elements.CatalogNumber, geo.Latitude, geo.Longitude, geo.Altitude, la.AzimuthDeg, la.ElevationDeg)
	}

	results, err := passes.Predict(ctx, passes.Request{
		Observer:     obs,
		Satellites:   sats,
		Start:        now,
		Horizon:      time.Duration(*hours) * time.Hour,
		MinElevation: *minElev,
		MaxPasses:    10,
	})
	if err != nil {
		fmt.Printf("pass prediction interrupted: %v\n", err)
	}

	fmt.Printf("\nPasses in the next %dh above %.0f°\n", *hours, *minElev)
	total := 0
	for _, sat := range results {
		if sat.Error != "" {
			fmt.Printf("  %s: ERROR %s\n", sat.Name, sat.Error)
			continue
		}
		fmt.Printf("  %s: %d passes\n", sat.Name, len(sat.Passes))
		total += len(sat.Passes)
		for j, p := range sat.Passes {
			fmt.Printf("    pass %d: start=%v maxEl=%.1f° dur=%.0fs\n",
				j, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.DurationSeconds)
		}
	}
	fmt.Printf("Total passes found: %d\n", total)

	sky, err := ephemeris.Sky(now, obs)
	if err != nil {
		fmt.Println("ERROR computing sky:", err)
		os.Exit(1)
	}
	fmt.Println("\nSky")
	for _, b := range sky {
		state := "below horizon"
		if b.Horizon.ElevationDeg > 0 {
			state = "up"
		}
		fmt.Printf("  %-8s ra=%7.2f° dec=%7.2f° az=%6.1f° el=%6.1f° %s\n",
			b.Body, b.RA, b.Dec, b.Horizon.AzimuthDeg, b.Horizon.ElevationDeg, state)
	}
}
