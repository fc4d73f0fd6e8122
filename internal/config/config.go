// Package config loads runtime settings and the satellite group catalog from
// the environment and an optional config file.
//
// Every key can be set as ZEITSAT_<SECTION>_<KEY>, e.g. ZEITSAT_TRACKER_POLL_INTERVAL.
// ZEITSAT_CONFIG names a TOML, YAML or JSON file; environment variables take
// precedence over it. The group catalog can only come from the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dhmspector/ZeitSatTrack/internal/auth"
	"github.com/dhmspector/ZeitSatTrack/internal/stream"
	"github.com/dhmspector/ZeitSatTrack/internal/tracing"
	"github.com/dhmspector/ZeitSatTrack/internal/tracker"
	"github.com/dhmspector/ZeitSatTrack/internal/transform"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "ZEITSAT"

// TLEConfig controls document retrieval.
type TLEConfig struct {
	FetchTimeout  time.Duration
	CacheEnabled  bool
	CacheDir      string
	CacheMaxFiles int
}

// TrackerConfig controls the watch-list poller.
type TrackerConfig struct {
	PollInterval      time.Duration
	ContinuousUpdates bool
	Workers           int

	// Preload lists groups ("Stations") or subgroups ("Stations/ISS") to
	// load at startup; Watch lists satellite names to watch once loaded.
	Preload []string
	Watch   []string
}

// Config is the full daemon configuration.
type Config struct {
	HTTPAddr string
	Auth     auth.Config
	TLE      TLEConfig
	Tracker  TrackerConfig
	Stream   stream.Config
	Tracing  tracing.Config

	// Observer is nil unless both latitude and longitude are configured.
	Observer *transform.Observer

	Groups []tracker.Group
}

const celestrak = "https://celestrak.org/NORAD/elements/gp.php?FORMAT=tle&GROUP="

// DefaultGroups is the catalog used when the config file has no groups.
var DefaultGroups = []tracker.Group{
	{Name: "Special-Interest", Subgroups: []tracker.Subgroup{
		{Name: "Space Stations", Locator: celestrak + "stations"},
		{Name: "100 (or so) Brightest", Locator: celestrak + "visual"},
		{Name: "Last 30 Days' Launches", Locator: celestrak + "last-30-days"},
	}},
	{Name: "Weather & Earth Resources", Subgroups: []tracker.Subgroup{
		{Name: "Weather", Locator: celestrak + "weather"},
		{Name: "NOAA", Locator: celestrak + "noaa"},
		{Name: "GOES", Locator: celestrak + "goes"},
	}},
	{Name: "Navigation", Subgroups: []tracker.Subgroup{
		{Name: "GPS Operational", Locator: celestrak + "gps-ops"},
		{Name: "Galileo", Locator: celestrak + "galileo"},
		{Name: "GLONASS Operational", Locator: celestrak + "glo-ops"},
	}},
	{Name: "Scientific", Subgroups: []tracker.Subgroup{
		{Name: "Space & Earth Science", Locator: celestrak + "science"},
		{Name: "Geodetic", Locator: celestrak + "geodetic"},
	}},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("tle.fetch_timeout", "30s")
	v.SetDefault("tle.cache_enabled", true)
	v.SetDefault("tle.cache_dir", "/tmp/zeitsat/tle")
	v.SetDefault("tle.cache_max_files", 5)
	v.SetDefault("tracker.poll_interval", tracker.DefaultPollInterval.String())
	v.SetDefault("tracker.continuous_updates", true)
	v.SetDefault("tracker.workers", runtime.NumCPU())
	v.SetDefault("stream.max_concurrent_per_ip", 10)
	v.SetDefault("stream.bandwidth_limit", 1048576)
	v.SetDefault("stream.keepalive_interval", "30s")
	v.SetDefault("stream.trust_proxy", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "zeitsat")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// New returns a viper instance bound to the ZEITSAT_ environment and, when
// ZEITSAT_CONFIG is set, to that file.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.BindEnv("config"); err != nil {
		return nil, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration. Invalid optional values are logged and
// replaced by their defaults; an unusable auth setup is an error.
func Load(logger *slog.Logger) (Config, error) {
	v, err := New()
	if err != nil {
		return Config{}, err
	}
	return FromViper(v, logger)
}

// FromViper decodes a prepared viper instance.
func FromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	r := reader{v: v, logger: logger}
	cfg := Config{
		HTTPAddr: v.GetString("http.addr"),
		TLE: TLEConfig{
			FetchTimeout:  r.duration("tle.fetch_timeout", 30*time.Second),
			CacheEnabled:  r.boolean("tle.cache_enabled", true),
			CacheDir:      v.GetString("tle.cache_dir"),
			CacheMaxFiles: r.positiveInt("tle.cache_max_files", 5),
		},
		Tracker: TrackerConfig{
			PollInterval:      r.duration("tracker.poll_interval", tracker.DefaultPollInterval),
			ContinuousUpdates: r.boolean("tracker.continuous_updates", true),
			Workers:           r.positiveInt("tracker.workers", runtime.NumCPU()),
			Preload:           r.list("tracker.preload"),
			Watch:             r.list("tracker.watch"),
		},
		Stream: stream.Config{
			MaxConcurrentPerIP: r.positiveInt("stream.max_concurrent_per_ip", 10),
			BandwidthLimit:     r.positiveInt("stream.bandwidth_limit", 1048576),
			KeepaliveInterval:  r.duration("stream.keepalive_interval", 30*time.Second),
			TrustProxy:         r.boolean("stream.trust_proxy", false),
		},
		Tracing: tracing.Config{
			Enabled:     r.boolean("tracing.enabled", false),
			ServiceName: v.GetString("tracing.service_name"),
			Exporter:    v.GetString("tracing.exporter"),
			Endpoint:    v.GetString("tracing.endpoint"),
			SampleRatio: r.ratio("tracing.sample_ratio", 1.0),
		},
	}

	authCfg, err := loadAuth(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = authCfg

	cfg.Observer = r.observer()

	groups, err := loadGroups(v, logger)
	if err != nil {
		return Config{}, err
	}
	cfg.Groups = groups

	logger.Info("configuration loaded",
		"http_addr", cfg.HTTPAddr,
		"config_file", v.ConfigFileUsed(),
		"auth_enabled", cfg.Auth.Enabled,
		"poll_interval", cfg.Tracker.PollInterval.String(),
		"workers", cfg.Tracker.Workers,
		"cache_dir", cfg.TLE.CacheDir,
		"groups", len(cfg.Groups),
		"observer_configured", cfg.Observer != nil,
		"tracing_enabled", cfg.Tracing.Enabled,
	)
	return cfg, nil
}

func loadAuth(v *viper.Viper) (auth.Config, error) {
	var cfg auth.Config
	raw := v.GetString("auth.enabled")
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return cfg, errors.New("ZEITSAT_AUTH_ENABLED must be a boolean value (true/false/1/0)")
	}
	cfg.Enabled = enabled
	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("ZEITSAT_AUTH_TOKEN is required when auth is enabled")
		}
	}
	return cfg, nil
}

func loadGroups(v *viper.Viper, logger *slog.Logger) ([]tracker.Group, error) {
	if !v.IsSet("groups") {
		return DefaultGroups, nil
	}
	var raw []tracker.Group
	if err := v.UnmarshalKey("groups", &raw); err != nil {
		return nil, fmt.Errorf("decoding groups: %w", err)
	}

	groups := make([]tracker.Group, 0, len(raw))
	for _, g := range raw {
		if g.Name == "" {
			logger.Warn("skipping unnamed group")
			continue
		}
		subs := make([]tracker.Subgroup, 0, len(g.Subgroups))
		for _, sg := range g.Subgroups {
			if sg.Name == "" || sg.Locator == "" {
				logger.Warn("skipping incomplete subgroup", "group", g.Name, "subgroup", sg.Name)
				continue
			}
			subs = append(subs, sg)
		}
		groups = append(groups, tracker.Group{Name: g.Name, Subgroups: subs})
	}
	return groups, nil
}

// reader decodes optional values, warning and defaulting on bad input.
type reader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (r reader) invalid(key string, value, def any) {
	r.logger.Warn("invalid configuration value, using default",
		"key", key,
		"env", EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")),
		"value", value,
		"default", def,
	)
}

// duration accepts Go duration strings ("90s", "1m") or bare seconds.
func (r reader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(r.v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			r.invalid(key, raw, def.String())
			return def
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		r.invalid(key, raw, def.String())
		return def
	}
	return d
}

func (r reader) positiveInt(key string, def int) int {
	raw := strings.TrimSpace(r.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		r.invalid(key, raw, def)
		return def
	}
	return n
}

func (r reader) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(r.v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil {
		r.invalid(key, raw, def)
		return def
	}
	return b
}

func (r reader) ratio(key string, def float64) float64 {
	raw := strings.TrimSpace(r.v.GetString(key))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		r.invalid(key, raw, def)
		return def
	}
	return f
}

// list accepts a file array or a comma-separated string, which is how
// lists arrive from the environment.
func (r reader) list(key string) []string {
	var items []string
	switch raw := r.v.Get(key).(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(raw, ",")
	default:
		items = r.v.GetStringSlice(key)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func (r reader) coordinate(key string, limit float64) (float64, bool) {
	raw := strings.TrimSpace(r.v.GetString(key))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < -limit || f > limit {
		r.logger.Warn("invalid observer coordinate, ignoring observer", "key", key, "value", raw)
		return 0, false
	}
	return f, true
}

func (r reader) observer() *transform.Observer {
	if !r.v.IsSet("observer.latitude") || !r.v.IsSet("observer.longitude") {
		return nil
	}
	lat, ok := r.coordinate("observer.latitude", 90)
	if !ok {
		return nil
	}
	lon, ok := r.coordinate("observer.longitude", 180)
	if !ok {
		return nil
	}
	obs := &transform.Observer{Latitude: lat, Longitude: lon}
	if r.v.IsSet("observer.altitude") {
		alt, err := strconv.ParseFloat(strings.TrimSpace(r.v.GetString("observer.altitude")), 64)
		if err != nil {
			r.invalid("observer.altitude", r.v.GetString("observer.altitude"), 0)
		} else {
			obs.Altitude = alt
		}
	}
	return obs
}

// GroupCatalog serves a fixed group list as a tracker.GroupSource.
type GroupCatalog struct {
	groups []tracker.Group
}

func NewGroupCatalog(groups []tracker.Group) *GroupCatalog {
	return &GroupCatalog{groups: groups}
}

// ListGroups returns a copy of the catalog.
func (c *GroupCatalog) ListGroups(context.Context) ([]tracker.Group, error) {
	out := make([]tracker.Group, len(c.groups))
	for i, g := range c.groups {
		out[i] = tracker.Group{Name: g.Name, Subgroups: append([]tracker.Subgroup(nil), g.Subgroups...)}
	}
	return out, nil
}

// StaticLocation is a tracker.LocationProvider for a fixed observer. It
// delivers its single fix once and never closes.
type StaticLocation struct {
	ch chan transform.Observer
}

func NewStaticLocation(obs transform.Observer) *StaticLocation {
	ch := make(chan transform.Observer, 1)
	ch <- obs
	return &StaticLocation{ch: ch}
}

func (s *StaticLocation) Updates() <-chan transform.Observer { return s.ch }
