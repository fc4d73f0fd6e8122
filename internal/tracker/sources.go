package tracker

import (
	"context"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/propagation"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// TLESource retrieves a raw TLE document. tle.Fetcher and tle.CachedSource
// satisfy it.
type TLESource interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Subgroup is one loadable TLE document within a Group.
type Subgroup struct {
	Name    string `json:"name" mapstructure:"name"`
	Locator string `json:"locator" mapstructure:"locator"`
}

// Group is a named, ordered collection of subgroups.
type Group struct {
	Name      string     `json:"name" mapstructure:"name"`
	Subgroups []Subgroup `json:"subgroups" mapstructure:"subgroups"`
}

// GroupSource lists the available satellite groups in display order.
type GroupSource interface {
	ListGroups(ctx context.Context) ([]Group, error)
}

// LocationProvider pushes observer fixes. Only the most recent value on the
// channel matters; the channel is closed when the provider shuts down.
type LocationProvider interface {
	Updates() <-chan transform.Observer
}

// Batch is the result of one poll tick: the resolved watch list in order.
type Batch struct {
	Time      time.Time              `json:"time"`
	Positions []propagation.Position `json:"positions"`
}

// Listener receives poll batches. It is called on the poll goroutine and
// may call back into the Manager, including Unwatch, Clear and Stop. After
// such a disarm the remaining listeners of that tick are skipped.
type Listener interface {
	PositionsUpdated(Batch)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Batch)

func (f ListenerFunc) PositionsUpdated(b Batch) { f(b) }
