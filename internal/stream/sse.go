// Package stream implements Server-Sent Events (SSE) streaming of tracker
// poll batches. Clients connect via GET /api/v1/stream/positions and receive
// the watch list's sub-satellite points every time the tracker polls.
//
// SSE message format:
//
//	data: {"type":"positions","t":"2026-02-06T04:00:00Z","sat":[{"name":"ISS (ZARYA)","id":25544,"lat":...}]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","status":"running","satellites":12,"watched":3,"poll_interval_seconds":5}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/httputil"
	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
)

// maxFilterNames caps the names query parameter.
const maxFilterNames = 200

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	BandwidthLimit     int           // Bytes per second per stream (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// StatsSource supplies the metadata sent at the start of every stream.
type StatsSource interface {
	Stats() tracker.Stats
}

// Handler manages SSE streaming connections.
type Handler struct {
	hub     *Hub
	stats   StatsSource
	config  Config
	limiter *connLimiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a new streaming handler fed by hub.
func NewHandler(hub *Hub, stats StatsSource, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		hub:     hub,
		stats:   stats,
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
		now:     time.Now,
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseNames reads the optional comma-separated names filter. A nil map
// means no filtering.
func parseNames(raw string) (map[string]bool, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > maxFilterNames {
		return nil, fmt.Errorf("at most %d names may be requested", maxFilterNames)
	}
	want := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.New("empty satellite name in names parameter")
		}
		want[p] = true
	}
	return want, nil
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?names=ISS%20(ZARYA),HST
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	want, err := parseNames(r.URL.Query().Get("names"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.active(ip),
			"open_streams", h.limiter.total(),
		)
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"filtered", len(want),
	)

	defer func() {
		release()
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before the headers go out so no batch after the metadata
	// is missed.
	sub := h.hub.subscribe()
	defer h.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
		now:     h.now,
		limit:   h.config.BandwidthLimit,
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	if err := c.sendJSON(h.metadata()); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case f := <-sub.ch:
			data := f.data
			if want != nil {
				data, err = json.Marshal(buildBatchMessage(f.batch.Time, filterPositions(f.batch.Positions, want)))
				if err != nil {
					metrics.IncStreamErrors("marshal_error")
					h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
					continue
				}
			}
			if err := c.sendRaw(data); err != nil {
				if errors.Is(err, errBandwidth) {
					metrics.IncStreamErrors("bandwidth")
					h.logger.Debug("stream frame dropped", "remote_ip", ip, "bytes", len(data))
					continue
				}
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) metadata() metadataMessage {
	st := h.stats.Stats()
	return metadataMessage{
		Type:         "metadata",
		Status:       st.Status.String(),
		Satellites:   st.Satellites,
		Watched:      st.Watched,
		PollInterval: st.PollInterval,
		Observer:     st.Observer,
	}
}
