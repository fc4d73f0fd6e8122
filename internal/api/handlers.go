package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/ephemeris"
	"github.com/dhmspector/ZeitSatTrack/internal/passes"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// maxTLEBody caps uploaded TLE documents.
const maxTLEBody = 4 << 20

// Pass prediction limits per request.
const (
	defaultPassHours = 24
	maxPassHours     = 7 * 24
	defaultMaxPasses = 10
	maxMaxPasses     = 100
)

type handlers struct {
	m      *tracker.Manager
	logger *slog.Logger
	now    func() time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrNoObserver):
		return http.StatusConflict
	case errors.Is(err, tracker.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, tle.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "component", "api", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

// instant reads the optional RFC 3339 "t" query parameter.
func (h *handlers) instant(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("t")
	if v == "" {
		return h.now(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid t parameter, must be RFC 3339: %q", v)
	}
	return t, nil
}

func intParam(r *http.Request, key string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %d-%d", key, lo, hi)
	}
	return n, nil
}

func floatParam(r *http.Request, key string, def, lo, hi float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo || f > hi {
		return 0, fmt.Errorf("invalid %s parameter, must be %g-%g", key, lo, hi)
	}
	return f, nil
}

// Groups.

func (h *handlers) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.m.ListGroups(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if groups == nil {
		groups = []tracker.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *handlers) listSubgroups(w http.ResponseWriter, r *http.Request) {
	subs, err := h.m.ListSubgroups(r.Context(), r.PathValue("group"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

type loadResponse struct {
	tracker.LoadResult
	Errors []string `json:"errors,omitempty"`
}

func newLoadResponse(res tracker.LoadResult, err error) loadResponse {
	out := loadResponse{LoadResult: res}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

// writeLoad reports a load. A fetch failure that added nothing is a
// gateway error; partial success is 200 with the errors listed.
func (h *handlers) writeLoad(w http.ResponseWriter, r *http.Request, res tracker.LoadResult, err error) {
	if err != nil && (errors.Is(err, tracker.ErrNotFound) || res.Added+res.Duplicates == 0) {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		h.logger.Warn("load failed", "component", "api", "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]any{"error": err.Error(), "result": newLoadResponse(res, nil)})
		return
	}
	writeJSON(w, http.StatusOK, newLoadResponse(res, err))
}

func (h *handlers) loadGroup(w http.ResponseWriter, r *http.Request) {
	res, err := h.m.LoadGroup(r.Context(), r.PathValue("group"))
	h.writeLoad(w, r, res, err)
}

func (h *handlers) loadSubgroup(w http.ResponseWriter, r *http.Request) {
	res, err := h.m.LoadSubgroup(r.Context(), r.PathValue("group"), r.PathValue("subgroup"))
	h.writeLoad(w, r, res, err)
}

// Catalog.

type satelliteSummary struct {
	Name          string    `json:"name"`
	CatalogNumber int       `json:"catalog_number"`
	Designator    string    `json:"designator"`
	Epoch         time.Time `json:"epoch"`
	Watched       bool      `json:"watched"`
}

func (h *handlers) listSatellites(w http.ResponseWriter, r *http.Request) {
	watched := make(map[string]bool)
	for _, n := range h.m.Watched() {
		watched[n] = true
	}
	sats := h.m.Satellites()
	out := make([]satelliteSummary, len(sats))
	for i, s := range sats {
		out[i] = satelliteSummary{
			Name:          s.Name,
			CatalogNumber: s.Elements.CatalogNumber,
			Designator:    s.Elements.Designator,
			Epoch:         s.Elements.Epoch(),
			Watched:       watched[s.Name],
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type satelliteDetail struct {
	tle.Satellite
	Epoch         time.Time `json:"epoch"`
	PeriodMinutes float64   `json:"period_minutes"`
	SemimajorAxis float64   `json:"semimajor_axis_km"`
}

func (h *handlers) satellite(w http.ResponseWriter, r *http.Request) {
	s, err := h.m.Satellite(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, satelliteDetail{
		Satellite:     s,
		Epoch:         s.Elements.Epoch(),
		PeriodMinutes: s.Elements.OrbitalPeriodMinutes(),
		SemimajorAxis: s.Elements.SemimajorAxis(),
	})
}

func (h *handlers) loadText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTLEBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "TLE document too large")
		return
	}
	res := h.m.LoadFromText(string(body))
	writeJSON(w, http.StatusOK, newLoadResponse(res, nil))
}

func (h *handlers) removeSatellite(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.m.RemoveSatellite(name) {
		h.fail(w, r, &tracker.NotFoundError{Kind: tracker.KindSatellite, Name: name})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) clear(w http.ResponseWriter, r *http.Request) {
	h.m.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Positions.

func (h *handlers) allPositions(w http.ResponseWriter, r *http.Request) {
	t, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	positions, err := h.m.AllPositions(r.Context(), t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

type positionResponse struct {
	Name string                `json:"name"`
	Time time.Time             `json:"time"`
	Geo  transform.GeoPosition `json:"position"`
}

func (h *handlers) position(w http.ResponseWriter, r *http.Request) {
	t, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.PathValue("name")
	geo, err := h.m.PositionOf(name, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{Name: name, Time: t, Geo: geo})
}

type lookResponse struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
	transform.LookAngle
}

func (h *handlers) lookAngle(w http.ResponseWriter, r *http.Request) {
	t, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.PathValue("name")
	la, err := h.m.LookAngleOf(name, t)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookResponse{Name: name, Time: t, LookAngle: la})
}

// predictPasses predicts passes of one satellite over the current observer.
// GET /api/v1/passes/{name}?hours=24&min_elevation=10&max_passes=10&t=...
func (h *handlers) predictPasses(w http.ResponseWriter, r *http.Request) {
	start, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := intParam(r, "hours", defaultPassHours, 1, maxPassHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minElev, err := floatParam(r, "min_elevation", 0, 0, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPasses, err := intParam(r, "max_passes", defaultMaxPasses, 1, maxMaxPasses)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.m.Satellite(r.PathValue("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	obs, ok := h.m.Observer()
	if !ok {
		h.fail(w, r, tracker.ErrNoObserver)
		return
	}

	results, err := passes.Predict(r.Context(), passes.Request{
		Observer:     obs.Observer,
		Satellites:   []tle.Satellite{s},
		Start:        start,
		Horizon:      time.Duration(hours) * time.Hour,
		MinElevation: minElev,
		MaxPasses:    maxPasses,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result := results[0]
	if result.Passes == nil {
		result.Passes = []passes.PassEvent{}
	}
	writeJSON(w, http.StatusOK, result)
}

// Watch list.

func (h *handlers) watched(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.m.Watched())
}

func (h *handlers) watchedPositions(w http.ResponseWriter, r *http.Request) {
	t, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tracker.Batch{Time: t, Positions: h.m.WatchedPositions(t)})
}

func (h *handlers) watch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := h.m.Satellite(name); err != nil {
		h.fail(w, r, err)
		return
	}
	added := h.m.Watch(name)
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "added": added})
}

func (h *handlers) unwatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.m.Unwatch(name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%q is not watched", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sky.

// sky reports celestial bodies from the current observer.
// GET /api/v1/sky?bodies=sun,moon,mars&t=...
func (h *handlers) sky(w http.ResponseWriter, r *http.Request) {
	t, err := h.instant(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bodies := ephemeris.AllBodies
	if v := r.URL.Query().Get("bodies"); v != "" {
		bodies = nil
		for _, name := range strings.Split(v, ",") {
			b, err := ephemeris.ParseBody(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			bodies = append(bodies, b)
		}
	}
	obs, ok := h.m.Observer()
	if !ok {
		h.fail(w, r, tracker.ErrNoObserver)
		return
	}

	positions, err := ephemeris.Bodies(t, obs.Observer, bodies...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"time": t, "observer": obs.Observer, "bodies": positions})
}

// Observer and polling.

func (h *handlers) observer(w http.ResponseWriter, r *http.Request) {
	obs, ok := h.m.Observer()
	if !ok {
		h.fail(w, r, tracker.ErrNoObserver)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

type observerRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Altitude  float64  `json:"altitude"`
}

func (h *handlers) setObserver(w http.ResponseWriter, r *http.Request) {
	var req observerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "latitude must be -90..90 and longitude -180..180")
		return
	}
	h.m.SetObserverPosition(transform.Observer{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Altitude:  req.Altitude,
	})
	obs, _ := h.m.Observer()
	writeJSON(w, http.StatusOK, obs)
}

func (h *handlers) setPoll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IntervalSeconds float64 `json:"interval_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	d := time.Duration(req.IntervalSeconds * float64(time.Second))
	if err := h.m.SetPollInterval(d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.m.Stats())
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	h.m.PauseUpdates()
	writeJSON(w, http.StatusOK, map[string]string{"status": h.m.Status().String()})
}

func (h *handlers) resume(w http.ResponseWriter, r *http.Request) {
	h.m.ResumeUpdates()
	writeJSON(w, http.StatusOK, map[string]string{"status": h.m.Status().String()})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.m.Stats())
}
