package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zeitsat_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeitsat_propagation_batch_duration_seconds",
			Help:    "Wall time of one batch propagation.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	propagatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_propagated_satellites_total",
			Help: "Satellites propagated in batches, by result.",
		},
		[]string{"result"},
	)

	pollTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeitsat_poll_ticks_total",
			Help: "Watch-list poll ticks executed.",
		},
	)

	pollTickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeitsat_poll_tick_duration_seconds",
			Help:    "Duration of a poll tick including listener dispatch.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	pollBatchSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeitsat_poll_batch_size",
			Help: "Number of positions in the most recent poll batch.",
		},
	)

	pollSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeitsat_poll_skipped_satellites_total",
			Help: "Watched names that could not be resolved during a poll tick.",
		},
	)

	catalogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeitsat_catalog_satellites",
			Help: "Satellites currently in the catalog.",
		},
	)

	watchListSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeitsat_watchlist_satellites",
			Help: "Satellites currently on the watch list.",
		},
	)

	recordsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_tle_records_total",
			Help: "TLE records seen while loading, by outcome (added, duplicate, malformed).",
		},
		[]string{"outcome"},
	)

	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_tle_fetches_total",
			Help: "TLE document fetches, by outcome (ok, error, cache).",
		},
		[]string{"outcome"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_stream_connections_total",
			Help: "SSE connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeitsat_streams_active",
			Help: "Open SSE connections.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeitsat_stream_messages_total",
			Help: "SSE events written.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zeitsat_stream_bytes_total",
			Help: "SSE payload bytes written.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeitsat_stream_errors_total",
			Help: "SSE failures, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		propagationDurationSeconds,
		propagatedTotal,
		pollTicksTotal,
		pollTickDurationSeconds,
		pollBatchSize,
		pollSkippedTotal,
		catalogSize,
		watchListSize,
		recordsLoadedTotal,
		fetchesTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records one batch propagation.
func RecordPropagation(d time.Duration, succeeded, failed int) {
	propagationDurationSeconds.Observe(d.Seconds())
	propagatedTotal.WithLabelValues("ok").Add(float64(succeeded))
	propagatedTotal.WithLabelValues("non_finite").Add(float64(failed))
}

// RecordPollTick records a completed poll tick.
func RecordPollTick(d time.Duration, batch, skipped int) {
	pollTicksTotal.Inc()
	pollTickDurationSeconds.Observe(d.Seconds())
	pollBatchSize.Set(float64(batch))
	pollSkippedTotal.Add(float64(skipped))
}

func SetCatalogSize(n int) { catalogSize.Set(float64(n)) }
func SetWatchListSize(n int) { watchListSize.Set(float64(n)) }

// RecordLoad counts the outcome of ingesting a TLE document.
func RecordLoad(added, duplicate, malformed int) {
	recordsLoadedTotal.WithLabelValues("added").Add(float64(added))
	recordsLoadedTotal.WithLabelValues("duplicate").Add(float64(duplicate))
	recordsLoadedTotal.WithLabelValues("malformed").Add(float64(malformed))
}

// IncFetch counts a TLE fetch by outcome.
func IncFetch(outcome string) { fetchesTotal.WithLabelValues(outcome).Inc() }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive() { streamsActive.Inc() }
func DecStreamsActive() { streamsActive.Dec() }
func IncStreamMessages() { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Flush lets SSE handlers stream through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var exactRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/groups":           true,
	"/api/v1/satellites":       true,
	"/api/v1/positions":        true,
	"/api/v1/watch":            true,
	"/api/v1/watch/positions":  true,
	"/api/v1/sky":              true,
	"/api/v1/observer":         true,
	"/api/v1/stats":            true,
	"/api/v1/poll":             true,
	"/api/v1/updates/pause":    true,
	"/api/v1/updates/resume":   true,
	"/api/v1/stream/positions": true,
}

// Routes ending in a satellite name. Names may contain '/', so the whole
// remainder is the parameter.
var namedPrefixes = []string{
	"/api/v1/positions/",
	"/api/v1/look/",
	"/api/v1/passes/",
	"/api/v1/satellites/",
	"/api/v1/watch/",
}

// normalizeRoute maps a request path to a bounded label set so satellite and
// group names do not explode metric cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	for _, p := range namedPrefixes {
		if strings.HasPrefix(path, p) && len(path) > len(p) {
			return p + "{name}"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/groups/"); ok && rest != "" {
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1:
			return "/api/v1/groups/{group}"
		case len(parts) == 2 && parts[1] == "load":
			return "/api/v1/groups/{group}/load"
		case len(parts) == 4 && parts[1] == "subgroups" && parts[3] == "load":
			return "/api/v1/groups/{group}/subgroups/{subgroup}/load"
		}
	}
	return "other"
}
