// Package tracker owns the satellite catalog, the watch list and the poll
// loop that reports watched positions to listeners.
package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/dhmspector/ZeitSatTrack/internal/metrics"
	"github.com/dhmspector/ZeitSatTrack/internal/propagation"
	"github.com/dhmspector/ZeitSatTrack/internal/tle"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// DefaultPollInterval is used when Options.PollInterval is not positive.
const DefaultPollInterval = 5 * time.Second

// Options configures a Manager. Only Logger is required.
type Options struct {
	Source            TLESource
	Groups            GroupSource
	Scheduler         Scheduler // defaults to TickerScheduler
	PollInterval      time.Duration
	ContinuousUpdates bool
	Workers           int // batch propagation workers, 0 = NumCPU
	Logger            *slog.Logger
	Clock             func() time.Time // defaults to time.Now
}

// ObserverState is the last observer fix and when it was received.
type ObserverState struct {
	transform.Observer
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadResult summarises one ingested TLE document.
type LoadResult struct {
	Added      int     `json:"added"`
	Duplicates int     `json:"duplicates"`
	Unnamed    int     `json:"unnamed"`
	Malformed  int     `json:"malformed"`
	Errors     []error `json:"-"`
}

func (r *LoadResult) merge(o LoadResult) {
	r.Added += o.Added
	r.Duplicates += o.Duplicates
	r.Unnamed += o.Unnamed
	r.Malformed += o.Malformed
	r.Errors = append(r.Errors, o.Errors...)
}

// Stats is a point-in-time summary of the manager.
type Stats struct {
	Satellites   int            `json:"satellites"`
	Watched      int            `json:"watched"`
	Status       Status         `json:"status"`
	Observer     *ObserverState `json:"observer,omitempty"`
	PollInterval float64        `json:"poll_interval_seconds"`
	Polling      bool           `json:"polling"`
	Ticks        uint64         `json:"ticks"`
	LastTick     time.Time      `json:"last_tick"`
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// Manager tracks a catalog of satellites for one host application. All
// methods are safe for concurrent use.
type Manager struct {
	src        TLESource
	groups     GroupSource
	sched      Scheduler
	pool       *propagation.WorkerPool
	logger     *slog.Logger
	now        func() time.Time
	continuous bool
	loads      singleflight.Group

	mu        sync.Mutex
	catalog   *catalog
	watch     *watchList
	observer  *ObserverState
	status    Status
	interval  time.Duration
	task      Task
	gen       uint64 // bumped on every disarm; stale ticks compare and bail
	dispatch  int    // ticks currently calling listeners
	listeners []listenerEntry
	nextID    uint64
	ticks     uint64
	lastTick  time.Time
	stopped   chan struct{}
}

// New creates a Manager. Polling is not armed until the first Watch.
func New(opts Options) *Manager {
	if opts.Scheduler == nil {
		opts.Scheduler = TickerScheduler{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "tracker")
	return &Manager{
		src:        opts.Source,
		groups:     opts.Groups,
		sched:      opts.Scheduler,
		pool:       propagation.NewWorkerPool(propagation.PoolConfig{Workers: opts.Workers}, opts.Logger),
		logger:     logger,
		now:        opts.Clock,
		continuous: opts.ContinuousUpdates,
		catalog:    newCatalog(),
		watch:      newWatchList(),
		interval:   opts.PollInterval,
		stopped:    make(chan struct{}),
	}
}

// ListGroups returns the configured groups in display order.
func (m *Manager) ListGroups(ctx context.Context) ([]Group, error) {
	if m.groups == nil {
		return nil, nil
	}
	return m.groups.ListGroups(ctx)
}

func (m *Manager) findGroup(ctx context.Context, name string) (Group, error) {
	groups, err := m.ListGroups(ctx)
	if err != nil {
		return Group{}, fmt.Errorf("listing groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return Group{}, &NotFoundError{Kind: KindGroup, Name: name}
}

// ListSubgroups returns the subgroups of group.
func (m *Manager) ListSubgroups(ctx context.Context, group string) ([]Subgroup, error) {
	g, err := m.findGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	return g.Subgroups, nil
}

// LoadGroup fetches and ingests every subgroup of group. A failing subgroup
// does not stop the others; all fetch errors are joined in the result.
func (m *Manager) LoadGroup(ctx context.Context, group string) (res LoadResult, err error) {
	ctx, span := startSpan(ctx, "tracker.LoadGroup", attribute.String("group", group))
	defer func() { endSpan(span, err) }()

	g, err := m.findGroup(ctx, group)
	if err != nil {
		return LoadResult{}, err
	}
	var errs []error
	for _, sg := range g.Subgroups {
		r, lerr := m.loadSubgroup(ctx, g.Name, sg)
		res.merge(r)
		if lerr != nil {
			errs = append(errs, lerr)
		}
	}
	span.SetAttributes(attribute.Int("added", res.Added), attribute.Int("subgroups", len(g.Subgroups)))
	return res, errors.Join(errs...)
}

// LoadSubgroup fetches and ingests one subgroup. Concurrent calls for the
// same subgroup share a single fetch.
func (m *Manager) LoadSubgroup(ctx context.Context, group, subgroup string) (res LoadResult, err error) {
	ctx, span := startSpan(ctx, "tracker.LoadSubgroup",
		attribute.String("group", group),
		attribute.String("subgroup", subgroup),
	)
	defer func() { endSpan(span, err) }()

	g, err := m.findGroup(ctx, group)
	if err != nil {
		return LoadResult{}, err
	}
	for _, sg := range g.Subgroups {
		if sg.Name == subgroup {
			return m.loadSubgroup(ctx, g.Name, sg)
		}
	}
	return LoadResult{}, &NotFoundError{Kind: KindSubgroup, Name: subgroup}
}

func (m *Manager) loadSubgroup(ctx context.Context, group string, sg Subgroup) (LoadResult, error) {
	v, err, shared := m.loads.Do(group+"\x00"+sg.Name, func() (any, error) {
		data, err := m.fetch(ctx, sg.Locator)
		if err != nil {
			return LoadResult{}, fmt.Errorf("loading %s/%s: %w", group, sg.Name, err)
		}
		return m.ingest(data, "group", group, "subgroup", sg.Name), nil
	})
	if shared {
		m.logger.Debug("shared in-flight subgroup load", "group", group, "subgroup", sg.Name)
	}
	res, _ := v.(LoadResult)
	return res, err
}

func (m *Manager) fetch(ctx context.Context, locator string) ([]byte, error) {
	if m.src == nil {
		return nil, errors.New("no TLE source configured")
	}
	select {
	case <-m.stopped:
		return nil, ErrStopped
	default:
	}
	data, err := m.src.Fetch(ctx, locator)
	if err != nil {
		metrics.IncFetch("error")
		m.logger.Warn("TLE fetch failed", "locator", locator, "error", err)
		return nil, err
	}
	metrics.IncFetch("ok")
	return data, nil
}

// LoadFromText ingests a TLE document of name/line1/line2 triplets. A
// trailing partial record is ignored. Records with an empty name, a name
// already in the catalog or a malformed field are skipped without affecting
// their siblings.
func (m *Manager) LoadFromText(text string) LoadResult {
	return m.ingest([]byte(text), "source", "text")
}

func (m *Manager) ingest(data []byte, logAttrs ...any) LoadResult {
	records, errs := tle.ParseDocument(bytes.NewReader(data), m.logger)
	res := LoadResult{Malformed: len(errs), Errors: errs}

	m.mu.Lock()
	for _, rec := range records {
		switch m.catalog.add(rec) {
		case added:
			res.Added++
		case duplicate:
			res.Duplicates++
		case unnamed:
			res.Unnamed++
		}
	}
	total := m.catalog.len()
	m.mu.Unlock()

	metrics.RecordLoad(res.Added, res.Duplicates, res.Malformed)
	metrics.SetCatalogSize(total)
	m.logger.Info("TLE records loaded", append(logAttrs,
		"added", res.Added,
		"duplicates", res.Duplicates,
		"unnamed", res.Unnamed,
		"malformed", res.Malformed,
		"catalog_size", total,
	)...)
	return res
}

// CatalogNames returns satellite names in load order.
func (m *Manager) CatalogNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.names()
}

// CatalogCount returns the number of satellites in the catalog.
func (m *Manager) CatalogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.len()
}

// CatalogNumbers returns NORAD catalog numbers in load order.
func (m *Manager) CatalogNumbers() []int {
	sats := m.Satellites()
	out := make([]int, len(sats))
	for i, s := range sats {
		out[i] = s.Elements.CatalogNumber
	}
	return out
}

// Designators returns COSPAR international designators in load order.
func (m *Manager) Designators() []string {
	sats := m.Satellites()
	out := make([]string, len(sats))
	for i, s := range sats {
		out[i] = s.Elements.Designator
	}
	return out
}

// Satellites returns a copy of the catalog in load order.
func (m *Manager) Satellites() []tle.Satellite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog.satellites()
}

// Satellite looks up a satellite by name.
func (m *Manager) Satellite(name string) (tle.Satellite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.catalog.get(name)
	if !ok {
		return tle.Satellite{}, &NotFoundError{Kind: KindSatellite, Name: name}
	}
	return s, nil
}

// RemoveSatellite drops name from the catalog. A watched name stays on the
// watch list and is skipped by poll ticks until it is loaded again.
func (m *Manager) RemoveSatellite(name string) bool {
	m.mu.Lock()
	ok := m.catalog.remove(name)
	total := m.catalog.len()
	m.mu.Unlock()
	if ok {
		metrics.SetCatalogSize(total)
	}
	return ok
}

// PositionOf returns the sub-satellite point of name at t.
func (m *Manager) PositionOf(name string, t time.Time) (transform.GeoPosition, error) {
	s, err := m.Satellite(name)
	if err != nil {
		return transform.GeoPosition{}, err
	}
	return propagation.PositionAt(s.Elements, t), nil
}

// AllPositions propagates the whole catalog to t on the worker pool.
func (m *Manager) AllPositions(ctx context.Context, t time.Time) (_ []propagation.Position, err error) {
	sats := m.Satellites()
	ctx, span := startSpan(ctx, "tracker.AllPositions", attribute.Int("satellites", len(sats)))
	defer func() { endSpan(span, err) }()
	return m.pool.PositionBatch(ctx, sats, t)
}

// LookAngleOf returns the azimuth and elevation of name from the current
// observer at t.
func (m *Manager) LookAngleOf(name string, t time.Time) (transform.LookAngle, error) {
	m.mu.Lock()
	s, ok := m.catalog.get(name)
	obs := m.observer
	m.mu.Unlock()

	if !ok {
		return transform.LookAngle{}, &NotFoundError{Kind: KindSatellite, Name: name}
	}
	if obs == nil {
		return transform.LookAngle{}, ErrNoObserver
	}
	return transform.LookAngleFor(obs.Observer, propagation.PositionAt(s.Elements, t)), nil
}

// Watch adds name to the watch list. It reports false if name is not in the
// catalog or is already watched. The first watched name arms polling.
func (m *Manager) Watch(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.catalog.get(name); !ok {
		return false
	}
	if !m.watch.add(name) {
		return false
	}
	metrics.SetWatchListSize(m.watch.len())
	if m.watch.len() == 1 {
		m.armLocked()
	}
	return true
}

// Unwatch removes name from the watch list. When the list becomes empty
// polling is disarmed; once Unwatch returns no further listener call will
// begin. Listeners may call Unwatch from inside their own tick.
func (m *Manager) Unwatch(name string) bool {
	m.mu.Lock()
	if !m.watch.remove(name) {
		m.mu.Unlock()
		return false
	}
	metrics.SetWatchListSize(m.watch.len())
	var stop func()
	if m.watch.len() == 0 {
		stop = m.disarmLocked()
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	return true
}

// Watched returns the watch list in order.
func (m *Manager) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watch.list()
}

// WatchedPositions resolves the watch list at t, in order. Names no longer
// in the catalog are skipped.
func (m *Manager) WatchedPositions(t time.Time) []propagation.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	positions, _ := m.resolveLocked(t)
	return positions
}

func (m *Manager) resolveLocked(t time.Time) (positions []propagation.Position, skipped int) {
	positions = make([]propagation.Position, 0, m.watch.len())
	for _, name := range m.watch.names {
		s, ok := m.catalog.get(name)
		if !ok {
			m.logger.Debug("watched satellite not in catalog", "satellite", name)
			skipped++
			continue
		}
		positions = append(positions, propagation.Position{
			Name:          name,
			CatalogNumber: s.Elements.CatalogNumber,
			Time:          t,
			Geo:           propagation.PositionAt(s.Elements, t),
		})
	}
	return positions, skipped
}

func (m *Manager) armLocked() {
	if m.task != nil || m.status == StatusStopped {
		return
	}
	gen := m.gen
	m.task = m.sched.Every(m.interval, func() { m.tick(gen) })
	m.logger.Debug("polling armed", "interval", m.interval)
}

// disarmLocked detaches the poll task and returns the func that stops it,
// or nil when polling was not armed. The caller runs it after releasing
// m.mu, since Task.Stop waits for an in-flight tick that may be blocked on
// m.mu. While a tick is calling listeners the caller may be one of them, so
// the wait moves to its own goroutine; the bumped gen keeps that tick from
// starting further listener calls.
func (m *Manager) disarmLocked() (stop func()) {
	t := m.task
	m.task = nil
	m.gen++
	if t == nil {
		return nil
	}
	m.logger.Debug("polling disarmed")
	if m.dispatch > 0 {
		return func() { go t.Stop() }
	}
	return t.Stop
}

// current reports whether gen is still the armed generation.
func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) tick(gen uint64) {
	_, span := startSpan(context.Background(), "tracker.poll")
	defer span.End()
	start := time.Now()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	now := m.now()
	positions, skipped := m.resolveLocked(now)
	listeners := make([]Listener, len(m.listeners))
	for i, e := range m.listeners {
		listeners[i] = e.l
	}
	m.ticks++
	m.lastTick = now
	m.dispatch++
	m.mu.Unlock()

	batch := Batch{Time: now, Positions: positions}
	for _, l := range listeners {
		if !m.current(gen) {
			break
		}
		l.PositionsUpdated(batch)
	}

	m.mu.Lock()
	m.dispatch--
	m.mu.Unlock()

	metrics.RecordPollTick(time.Since(start), len(positions), skipped)
	span.SetAttributes(
		attribute.Int("positions", len(positions)),
		attribute.Int("skipped", skipped),
		attribute.Int("listeners", len(listeners)),
	)
}

// OnPositionsUpdated registers l for poll batches. Listeners share each
// batch and must treat it as read-only. The returned func unregisters l.
func (m *Manager) OnPositionsUpdated(l Listener) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listenerEntry{id: id, l: l})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.listeners {
			if e.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetPollInterval changes the poll period, re-arming polling if it is
// active.
func (m *Manager) SetPollInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", d)
	}
	m.mu.Lock()
	m.interval = d
	var stop func()
	if m.task != nil {
		stop = m.disarmLocked()
		m.armLocked()
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	m.logger.Info("poll interval updated", "interval", d)
	return nil
}

// SetObserverPosition records a new observer fix.
func (m *Manager) SetObserverPosition(obs transform.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = &ObserverState{Observer: obs, UpdatedAt: m.now()}
	m.transitionLocked(evFix)
}

// Observer returns the last observer fix, if any.
func (m *Manager) Observer() (ObserverState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observer == nil {
		return ObserverState{}, false
	}
	return *m.observer, true
}

// PauseUpdates marks the observer fix as lost.
func (m *Manager) PauseUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionLocked(evLost)
}

// ResumeUpdates marks the observer fix as recovered.
func (m *Manager) ResumeUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionLocked(evResume)
}

func (m *Manager) transitionLocked(ev event) {
	prev := m.status
	m.status = prev.next(ev, m.continuous)
	if m.status != prev {
		m.logger.Info("tracker status changed", "from", prev.String(), "to", m.status.String())
	}
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Stats returns counts, the observer and polling state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		Satellites:   m.catalog.len(),
		Watched:      m.watch.len(),
		Status:       m.status,
		PollInterval: m.interval.Seconds(),
		Polling:      m.task != nil,
		Ticks:        m.ticks,
		LastTick:     m.lastTick,
	}
	if m.observer != nil {
		o := *m.observer
		st.Observer = &o
	}
	return st
}

// Clear empties the catalog and the watch list and disarms polling.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.catalog.reset()
	m.watch.reset()
	stop := m.disarmLocked()
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
	metrics.SetCatalogSize(0)
	metrics.SetWatchListSize(0)
	m.logger.Info("catalog cleared")
}

// Stop disarms polling for good and moves the manager to StatusStopped.
// Later loads fail with ErrStopped and Watch no longer arms polling.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.status == StatusStopped {
		m.mu.Unlock()
		return
	}
	m.transitionLocked(evStop)
	stop := m.disarmLocked()
	close(m.stopped)
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// FollowLocation feeds observer fixes from p until ctx is done, the manager
// stops or p closes its channel. Only the newest pending fix is applied;
// a closed channel counts as a lost fix.
func (m *Manager) FollowLocation(ctx context.Context, p LocationProvider) error {
	updates := p.Updates()
	for {
		var (
			obs transform.Observer
			ok  bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopped:
			return nil
		case obs, ok = <-updates:
		}
	drain:
		for ok {
			select {
			case next, more := <-updates:
				if !more {
					m.SetObserverPosition(obs)
					ok = false
					break drain
				}
				obs = next
			default:
				break drain
			}
		}
		if !ok {
			m.PauseUpdates()
			return nil
		}
		m.SetObserverPosition(obs)
	}
}
