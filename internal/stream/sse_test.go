package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dhmspector/ZeitSatTrack/internal/propagation"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

type fixedStats tracker.Stats

func (s fixedStats) Stats() tracker.Stats { return tracker.Stats(s) }

func testStats() fixedStats {
	return fixedStats{
		Satellites:   2,
		Watched:      2,
		Status:       tracker.StatusRunning,
		PollInterval: 5,
		Observer: &tracker.ObserverState{
			Observer: transform.Observer{Latitude: 30.7333, Longitude: 76.7794},
		},
	}
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}
}

var batchTime = time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)

func testBatch() tracker.Batch {
	return tracker.Batch{
		Time: batchTime,
		Positions: []propagation.Position{
			{Name: "ISS (ZARYA)", CatalogNumber: 25544, Time: batchTime, Geo: transform.GeoPosition{Latitude: 44.05, Longitude: -55.18, Altitude: 410}},
			{Name: "HST", CatalogNumber: 20580, Time: batchTime, Geo: transform.GeoPosition{Latitude: -12.5, Longitude: 101.25, Altitude: 538}},
		},
	}
}

// dataMessages returns the decoded "data:" payloads of an SSE body.
func dataMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var msgs []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// runStream serves one stream request, feeds it the given batches once the
// client is subscribed, and returns the recorder after the handler exits.
func runStream(t *testing.T, h *Handler, target string, batches ...tracker.Batch) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandlePositions(w, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	for _, b := range batches {
		h.hub.PositionsUpdated(b)
	}
	// Let the handler drain its buffer before disconnecting.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	return w
}

// TestBuildBatchMessage verifies the positions payload structure.
func TestBuildBatchMessage(t *testing.T) {
	b := testBatch()
	msg := buildBatchMessage(b.Time, b.Positions)

	if msg.Type != "positions" {
		t.Errorf("type = %q, want %q", msg.Type, "positions")
	}
	if msg.T != "2026-02-06T04:00:00Z" {
		t.Errorf("t = %q, want %q", msg.T, "2026-02-06T04:00:00Z")
	}
	if len(msg.Sat) != 2 {
		t.Fatalf("sat count = %d, want 2", len(msg.Sat))
	}
	want := satPayload{Name: "ISS (ZARYA)", ID: 25544, Lat: 44.05, Lon: -55.18, Alt: 410}
	if msg.Sat[0] != want {
		t.Errorf("sat[0] = %+v, want %+v", msg.Sat[0], want)
	}
	if msg.Sat[1].Name != "HST" {
		t.Errorf("sat[1].name = %q, want HST (batch order)", msg.Sat[1].Name)
	}
}

func TestFilterPositions(t *testing.T) {
	got := filterPositions(testBatch().Positions, map[string]bool{"HST": true, "NOAA 19": true})
	if len(got) != 1 || got[0].Name != "HST" {
		t.Errorf("filterPositions = %+v, want only HST", got)
	}
}

func TestParseNames(t *testing.T) {
	if want, err := parseNames(""); err != nil || want != nil {
		t.Errorf("parseNames(\"\") = %v, %v; want nil, nil", want, err)
	}
	want, err := parseNames("ISS (ZARYA), HST")
	if err != nil {
		t.Fatal(err)
	}
	if !want["ISS (ZARYA)"] || !want["HST"] || len(want) != 2 {
		t.Errorf("parseNames = %v", want)
	}
	if _, err := parseNames("ISS,,HST"); err == nil {
		t.Error("empty name should be rejected")
	}
	if _, err := parseNames(strings.Repeat("x,", maxFilterNames) + "x"); err == nil {
		t.Error("too many names should be rejected")
	}
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	h := NewHandler(NewHub(testLogger()), testStats(), testConfig(), testLogger())
	w := runStream(t, h, "/api/v1/stream/positions", testBatch())

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	msgs := dataMessages(t, body)
	if len(msgs) != 2 {
		t.Fatalf("got %d data messages, want metadata + 1 batch", len(msgs))
	}

	meta := msgs[0]
	if meta["type"] != "metadata" {
		t.Errorf("first message type = %v, want metadata", meta["type"])
	}
	if meta["status"] != "running" {
		t.Errorf("metadata status = %v, want running", meta["status"])
	}
	if meta["poll_interval_seconds"].(float64) != 5 {
		t.Errorf("metadata poll_interval_seconds = %v, want 5", meta["poll_interval_seconds"])
	}
	if _, ok := meta["observer"]; !ok {
		t.Error("metadata missing observer")
	}

	batch := msgs[1]
	if batch["type"] != "positions" {
		t.Errorf("second message type = %v, want positions", batch["type"])
	}
	if sats := batch["sat"].([]any); len(sats) != 2 {
		t.Errorf("batch carries %d satellites, want 2", len(sats))
	}

	// Lines should be "data: ...", "retry: ..." or ":" (keepalive).
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestStreamNamesFilter(t *testing.T) {
	h := NewHandler(NewHub(testLogger()), testStats(), testConfig(), testLogger())
	w := runStream(t, h, "/api/v1/stream/positions?names=HST", testBatch())

	msgs := dataMessages(t, w.Body.String())
	if len(msgs) != 2 {
		t.Fatalf("got %d data messages, want 2", len(msgs))
	}
	sats := msgs[1]["sat"].([]any)
	if len(sats) != 1 {
		t.Fatalf("filtered batch carries %d satellites, want 1", len(sats))
	}
	if name := sats[0].(map[string]any)["name"]; name != "HST" {
		t.Errorf("filtered satellite = %v, want HST", name)
	}
}

func TestStreamBandwidthLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BandwidthLimit = 64 // below the size of one batch
	h := NewHandler(NewHub(testLogger()), testStats(), cfg, testLogger())
	frozen := batchTime
	h.now = func() time.Time { return frozen }

	w := runStream(t, h, "/api/v1/stream/positions", testBatch(), testBatch())

	// The metadata fills the one-second window; both batches are dropped.
	msgs := dataMessages(t, w.Body.String())
	if len(msgs) != 1 || msgs[0]["type"] != "metadata" {
		t.Errorf("got %d messages, want only metadata", len(msgs))
	}
}

func TestClientReserve(t *testing.T) {
	now := batchTime
	c := &client{limit: 100, now: func() time.Time { return now }}

	if !c.reserve(150) {
		t.Error("an oversized message must fit an empty window")
	}
	if c.reserve(1) {
		t.Error("window is exhausted")
	}
	now = now.Add(time.Second)
	if !c.reserve(60) || !c.reserve(40) {
		t.Error("new window should admit 100 bytes")
	}
	if c.reserve(1) {
		t.Error("window is exhausted again")
	}

	unlimited := &client{now: time.Now}
	for i := 0; i < 10; i++ {
		if !unlimited.reserve(1 << 20) {
			t.Fatal("zero limit disables the budget")
		}
	}
}

func TestHubDropsForSlowClient(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.PositionsUpdated(testBatch())
	}
	if got := len(sub.ch); got != subscriberBuffer {
		t.Errorf("buffered frames = %d, want %d", got, subscriberBuffer)
	}

	hub.unsubscribe(sub)
	if hub.Subscribers() != 0 {
		t.Errorf("subscribers = %d after unsubscribe, want 0", hub.Subscribers())
	}
	// No subscribers: nothing is marshalled or delivered.
	hub.PositionsUpdated(testBatch())
}

func TestHubSharesMarshalledFrame(t *testing.T) {
	hub := NewHub(testLogger())
	a, b := hub.subscribe(), hub.subscribe()
	hub.PositionsUpdated(testBatch())

	fa, fb := <-a.ch, <-b.ch
	if fa != fb {
		t.Error("subscribers should receive the same frame")
	}
	var msg positionsMessage
	if err := json.Unmarshal(fa.data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "positions" || len(msg.Sat) != 2 {
		t.Errorf("frame = %+v", msg)
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newConnLimiter(3)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, ok := limiter.acquire("10.0.0.1")
		if !ok {
			t.Fatalf("acquire %d should succeed", i+1)
		}
		releases = append(releases, release)
	}
	if _, ok := limiter.acquire("10.0.0.1"); ok {
		t.Error("acquire beyond limit should fail")
	}
	if _, ok := limiter.acquire("10.0.0.2"); !ok {
		t.Error("different IP should not be rate limited")
	}

	releases[0]()
	releases[0]()
	if c := limiter.active("10.0.0.1"); c != 2 {
		t.Errorf("double release: active = %d, want 2", c)
	}
	if _, ok := limiter.acquire("10.0.0.1"); !ok {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.active("10.0.0.1"); c != 3 {
		t.Errorf("active = %d, want 3", c)
	}
	if c := limiter.active("10.0.0.2"); c != 1 {
		t.Errorf("active = %d, want 1", c)
	}
	if c := limiter.total(); c != 4 {
		t.Errorf("total = %d, want 4", c)
	}
}

func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newConnLimiter(maxStreams + 1)
	limiter.maxTotal = 2

	if _, ok := limiter.acquire("10.0.0.1"); !ok {
		t.Fatal("first acquire should succeed")
	}
	if _, ok := limiter.acquire("10.0.0.2"); !ok {
		t.Fatal("second acquire should succeed")
	}
	if _, ok := limiter.acquire("10.0.0.3"); ok {
		t.Error("acquire beyond global cap should fail")
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newConnLimiter(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if release, ok := limiter.acquire("10.0.0.1"); ok {
				defer release()
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.active("10.0.0.1"); c != 0 {
		t.Errorf("active after all released = %d, want 0", c)
	}
	if c := limiter.total(); c != 0 {
		t.Errorf("total after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(NewHub(testLogger()), testStats(), cfg, testLogger())

	// Hold the first connection open.
	req := httptest.NewRequest("GET", "/api/v1/stream/positions", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandlePositions(httptest.NewRecorder(), req)
	}()
	for h.hub.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Second connection from same IP should get 429.
	req2 := httptest.NewRequest("GET", "/api/v1/stream/positions", nil)
	req2.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	h.HandlePositions(w, req2)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	cancel()
	<-done
	if c := h.limiter.active("10.0.0.1"); c != 0 {
		t.Errorf("slot not released on disconnect: count = %d", c)
	}
}

// TestInvalidQueryParams verifies error responses for a bad names filter.
func TestInvalidQueryParams(t *testing.T) {
	h := NewHandler(NewHub(testLogger()), testStats(), testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"empty entry", "?names=ISS,,HST"},
		{"only commas", "?names=,"},
		{"too many", "?names=" + strings.Repeat("a,", maxFilterNames) + "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/positions"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			h.HandlePositions(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

// TestKeepaliveFormat verifies keep-alives are SSE comments.
func TestKeepaliveFormat(t *testing.T) {
	cfg := testConfig()
	cfg.KeepaliveInterval = 10 * time.Millisecond
	h := NewHandler(NewHub(testLogger()), testStats(), cfg, testLogger())

	w := runStream(t, h, "/api/v1/stream/positions")
	if !strings.Contains(w.Body.String(), "\n:\n\n") {
		t.Errorf("no keepalive comment in body %q", w.Body.String())
	}
}
