package stream

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
	"github.com/dhmspector/ZeitSatTrack/internal/propagation"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
)

// subscriberBuffer is how many frames a slow client may fall behind
// before frames are dropped for it.
const subscriberBuffer = 8

// frame is one poll batch ready for the wire. data holds the full
// marshalled batch; filtered subscribers re-marshal from batch.
type frame struct {
	batch tracker.Batch
	data  []byte
}

type subscriber struct {
	ch chan *frame
}

// Hub fans poll batches out to connected stream clients. It implements
// tracker.Listener and never blocks the poll goroutine.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// PositionsUpdated marshals b once and offers it to every subscriber.
func (h *Hub) PositionsUpdated(b tracker.Batch) {
	h.mu.Lock()
	n := len(h.subs)
	h.mu.Unlock()
	if n == 0 {
		return
	}

	data, err := json.Marshal(buildBatchMessage(b.Time, b.Positions))
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		h.logger.Warn("stream marshal error", "error", err)
		return
	}
	f := &frame{batch: b, data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- f:
		default:
			metrics.IncStreamErrors("slow_client")
		}
	}
}

func (h *Hub) subscribe() *subscriber {
	s := &subscriber{ch: make(chan *frame, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscribers returns the number of attached clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// buildBatchMessage formats a batch into the SSE positions payload.
func buildBatchMessage(t time.Time, positions []propagation.Position) positionsMessage {
	sats := make([]satPayload, len(positions))
	for i, p := range positions {
		sats[i] = satPayload{
			Name: p.Name,
			ID:   p.CatalogNumber,
			Lat:  p.Geo.Latitude,
			Lon:  p.Geo.Longitude,
			Alt:  p.Geo.Altitude,
		}
	}
	return positionsMessage{
		Type: "positions",
		T:    t.UTC().Format(time.RFC3339),
		Sat:  sats,
	}
}

// filterPositions keeps the positions whose names are in want, in batch order.
func filterPositions(positions []propagation.Position, want map[string]bool) []propagation.Position {
	out := make([]propagation.Position, 0, len(want))
	for _, p := range positions {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// SSE message payload types.

type metadataMessage struct {
	Type         string                 `json:"type"`
	Status       string                 `json:"status"`
	Satellites   int                    `json:"satellites"`
	Watched      int                    `json:"watched"`
	PollInterval float64                `json:"poll_interval_seconds"`
	Observer     *tracker.ObserverState `json:"observer,omitempty"`
}

type positionsMessage struct {
	Type string       `json:"type"`
	T    string       `json:"t"`
	Sat  []satPayload `json:"sat"`
}

type satPayload struct {
	Name string  `json:"name"`
	ID   int     `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  float64 `json:"alt"`
}
