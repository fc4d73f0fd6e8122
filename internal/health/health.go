package health

import (
	"net/http"

	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
)

// StatusReporter reports the tracker lifecycle state.
type StatusReporter interface {
	Status() tracker.Status
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns a handler that reports 200 "ready\n" until the tracker is
// stopped, then 503 "stopped\n" so load balancers drain the instance during
// shutdown.
func Readyz(s StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if s.Status() == tracker.StatusStopped {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("stopped\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
