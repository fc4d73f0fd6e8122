package propagation

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	index int
	sat   tle.Satellite
}

// WorkerPool manages a fixed number of goroutines for parallel propagation
// of large catalogs.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// A non-positive count uses one worker per CPU.
func NewWorkerPool(cfg PoolConfig, logger *slog.Logger) *WorkerPool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// PositionBatch propagates every satellite to t. Results are in input order;
// satellites whose propagation produced a non-finite position are logged and
// left out. If ctx is cancelled before all work is done, ctx.Err() is
// returned with no positions.
func (wp *WorkerPool) PositionBatch(ctx context.Context, sats []tle.Satellite, t time.Time) ([]Position, error) {
	if len(sats) == 0 {
		return nil, ctx.Err()
	}

	// The Julian date is shared by every satellite in the batch.
	jd := transform.JulianDate(t)
	start := time.Now()

	jobs := make(chan propagateJob, wp.workers*2)
	results := make([]Position, len(sats))
	ok := make([]bool, len(sats))

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				geo := StateAtJulianDate(job.sat.Elements, jd).SubPoint
				if !finite(geo) {
					wp.logger.Warn("propagation produced non-finite position",
						"component", "propagation",
						"satellite", job.sat.Name,
						"catalog_number", job.sat.Elements.CatalogNumber,
					)
					continue
				}
				// Each index is written by exactly one worker.
				results[job.index] = Position{
					Name:          job.sat.Name,
					CatalogNumber: job.sat.Elements.CatalogNumber,
					Time:          t,
					Geo:           geo,
				}
				ok[job.index] = true
			}
		}()
	}

feed:
	for i, sat := range sats {
		select {
		case jobs <- propagateJob{index: i, sat: sat}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(sats))
	for i := range results {
		if ok[i] {
			positions = append(positions, results[i])
		}
	}

	duration := time.Since(start)
	metrics.RecordPropagation(duration, len(positions), len(sats)-len(positions))
	wp.logger.Debug("batch propagation complete",
		"component", "propagation",
		"satellites", len(sats),
		"success", len(positions),
		"workers", wp.workers,
		"duration_ms", duration.Milliseconds(),
	)
	return positions, nil
}

func finite(g transform.GeoPosition) bool {
	for _, v := range [...]float64{g.Latitude, g.Longitude, g.Altitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
