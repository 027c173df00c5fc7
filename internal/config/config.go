package config

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/waypoint/internal/errors"
	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/guard"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/router"
	"github.com/vango-dev/waypoint/pkg/statestore"
)

// ConfigFileNames are the names Load looks for, in order.
var ConfigFileNames = []string{"waypoint.yaml", "waypoint.yml", "waypoint.toml", "waypoint.json"}

const (
	// DefaultAddr is the default serve address.
	DefaultAddr = "localhost:8080"

	// DefaultBridgePath is where serve mounts the history bridge.
	DefaultBridgePath = "/ws"

	// DefaultMetricsPath is where serve exposes Prometheus metrics.
	DefaultMetricsPath = "/metrics"

	// DefaultStateStore keeps persisted history in memory.
	DefaultStateStore = "memory:"
)

// History modes.
const (
	ModeMemory  = "memory"
	ModeBrowser = "browser"
	ModeHash    = "hash"
)

// Format is a config file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config represents a waypoint configuration file.
type Config struct {
	// History configures the history backend.
	History HistoryConfig `json:"history,omitempty" yaml:"history,omitempty" toml:"history,omitempty"`

	// Matcher configures the route matcher cache.
	Matcher MatcherConfig `json:"matcher,omitempty" yaml:"matcher,omitempty" toml:"matcher,omitempty"`

	// Guards configures the guard executor.
	Guards GuardsConfig `json:"guards,omitempty" yaml:"guards,omitempty" toml:"guards,omitempty"`

	// Navigation configures redirect bounds and the cache monitor.
	Navigation NavigationConfig `json:"navigation,omitempty" yaml:"navigation,omitempty" toml:"navigation,omitempty"`

	// Server configures `waypoint serve`.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty" toml:"server,omitempty"`

	// State configures history persistence.
	State StateConfig `json:"state,omitempty" yaml:"state,omitempty" toml:"state,omitempty"`

	// Routes is the route table.
	Routes []RouteConfig `json:"routes,omitempty" yaml:"routes,omitempty" toml:"routes,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// HistoryConfig configures the history backend.
type HistoryConfig struct {
	// Mode is "memory", "browser" or "hash".
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`

	// Base is prepended to every URL.
	Base string `json:"base,omitempty" yaml:"base,omitempty" toml:"base,omitempty"`

	// Cap bounds the memory history stack.
	Cap int `json:"cap,omitempty" yaml:"cap,omitempty" toml:"cap,omitempty"`

	// SanitizeDepth bounds how deep history state is copied.
	SanitizeDepth int `json:"sanitizeDepth,omitempty" yaml:"sanitizeDepth,omitempty" toml:"sanitizeDepth,omitempty"`
}

// MatcherConfig configures the tiered resolution cache.
type MatcherConfig struct {
	// DisableCache turns the resolution cache off.
	DisableCache bool `json:"disableCache,omitempty" yaml:"disableCache,omitempty" toml:"disableCache,omitempty"`

	HotSize   int `json:"hotSize,omitempty" yaml:"hotSize,omitempty" toml:"hotSize,omitempty"`
	WarmSize  int `json:"warmSize,omitempty" yaml:"warmSize,omitempty" toml:"warmSize,omitempty"`
	ColdSize  int `json:"coldSize,omitempty" yaml:"coldSize,omitempty" toml:"coldSize,omitempty"`
	WarmAfter int `json:"warmAfter,omitempty" yaml:"warmAfter,omitempty" toml:"warmAfter,omitempty"`
	HotAfter  int `json:"hotAfter,omitempty" yaml:"hotAfter,omitempty" toml:"hotAfter,omitempty"`
}

// GuardsConfig configures the guard executor.
type GuardsConfig struct {
	// Timeout bounds each guard (e.g., "5s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// Parallel runs independent guards of a group concurrently.
	Parallel bool `json:"parallel,omitempty" yaml:"parallel,omitempty" toml:"parallel,omitempty"`

	// DisableCache turns the guard result cache off.
	DisableCache bool `json:"disableCache,omitempty" yaml:"disableCache,omitempty" toml:"disableCache,omitempty"`

	// CacheTTL is how long a cacheable result is reused (e.g., "2s").
	CacheTTL string `json:"cacheTTL,omitempty" yaml:"cacheTTL,omitempty" toml:"cacheTTL,omitempty"`

	// CacheSize bounds the guard result cache.
	CacheSize int `json:"cacheSize,omitempty" yaml:"cacheSize,omitempty" toml:"cacheSize,omitempty"`
}

// NavigationConfig configures the orchestrator.
type NavigationConfig struct {
	// MaxRedirects bounds the redirects one navigation may follow.
	MaxRedirects int `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" toml:"maxRedirects,omitempty"`

	// RedirectWindow bounds guard redirects without an idle gap.
	RedirectWindow int `json:"redirectWindow,omitempty" yaml:"redirectWindow,omitempty" toml:"redirectWindow,omitempty"`

	// RedirectIdle is the gap that resets the redirect window (e.g., "1s").
	RedirectIdle string `json:"redirectIdle,omitempty" yaml:"redirectIdle,omitempty" toml:"redirectIdle,omitempty"`

	// MonitorInterval is how often caches are swept (e.g., "30s").
	MonitorInterval string `json:"monitorInterval,omitempty" yaml:"monitorInterval,omitempty" toml:"monitorInterval,omitempty"`
}

// ServerConfig configures `waypoint serve`.
type ServerConfig struct {
	Addr        string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty"`
	BridgePath  string `json:"bridgePath,omitempty" yaml:"bridgePath,omitempty" toml:"bridgePath,omitempty"`
	MetricsPath string `json:"metricsPath,omitempty" yaml:"metricsPath,omitempty" toml:"metricsPath,omitempty"`

	// AllowedOrigins lists origins allowed to open the bridge. Empty allows
	// same-origin only; "*" allows any.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty" toml:"allowedOrigins,omitempty"`

	// IdleTimeout closes bridge connections without traffic (e.g., "5m").
	IdleTimeout string `json:"idleTimeout,omitempty" yaml:"idleTimeout,omitempty" toml:"idleTimeout,omitempty"`
}

// StateConfig configures history persistence.
type StateConfig struct {
	// Store is "memory:", "bolt:<path>" or "sqlite:<path>".
	Store string `json:"store,omitempty" yaml:"store,omitempty" toml:"store,omitempty"`

	// TTL is how long saved history lives (e.g., "24h").
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty" toml:"ttl,omitempty"`
}

// RouteConfig is one route table entry.
type RouteConfig struct {
	Path      string `json:"path" yaml:"path" toml:"path"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Component string `json:"component,omitempty" yaml:"component,omitempty" toml:"component,omitempty"`

	// Redirect is a location string to redirect to.
	Redirect string `json:"redirect,omitempty" yaml:"redirect,omitempty" toml:"redirect,omitempty"`

	// RedirectName redirects to a named route, keeping params.
	RedirectName string `json:"redirectName,omitempty" yaml:"redirectName,omitempty" toml:"redirectName,omitempty"`

	Alias     []string          `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`
	Params    map[string]string `json:"params,omitempty" yaml:"params,omitempty" toml:"params,omitempty"`
	Meta      map[string]any    `json:"meta,omitempty" yaml:"meta,omitempty" toml:"meta,omitempty"`
	Sensitive bool              `json:"sensitive,omitempty" yaml:"sensitive,omitempty" toml:"sensitive,omitempty"`
	Strict    bool              `json:"strict,omitempty" yaml:"strict,omitempty" toml:"strict,omitempty"`

	Children []RouteConfig `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	tiers := cache.DefaultTieredConfig()
	return &Config{
		History: HistoryConfig{
			Mode:          ModeMemory,
			Cap:           history.DefaultMemoryCap,
			SanitizeDepth: history.DefaultSanitizeDepth,
		},
		Matcher: MatcherConfig{
			HotSize:   tiers.HotSize,
			WarmSize:  tiers.WarmSize,
			ColdSize:  tiers.ColdSize,
			WarmAfter: tiers.WarmAfter,
			HotAfter:  tiers.HotAfter,
		},
		Guards: GuardsConfig{
			Timeout:   guard.DefaultTimeout.String(),
			CacheTTL:  guard.DefaultCacheTTL.String(),
			CacheSize: guard.DefaultCacheCapacity,
		},
		Navigation: NavigationConfig{
			MaxRedirects:    navigation.DefaultMaxRedirects,
			RedirectWindow:  navigation.DefaultRedirectWindow,
			RedirectIdle:    navigation.DefaultRedirectIdle.String(),
			MonitorInterval: navigation.DefaultMonitorInterval.String(),
		},
		Server: ServerConfig{
			Addr:        DefaultAddr,
			BridgePath:  DefaultBridgePath,
			MetricsPath: DefaultMetricsPath,
		},
		State: StateConfig{
			Store: DefaultStateStore,
			TTL:   "24h",
		},
	}
}

// Load reads configuration from the specified directory. It looks for the
// first of ConfigFileNames.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E100").
		WithDetail("No waypoint.yaml, waypoint.toml or waypoint.json found in " + dir).
		WithSuggestion("Pass --config or create waypoint.yaml")
}

// FormatOf picks the syntax from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", errors.New("E102").
		WithDetail(fmt.Sprintf("%q has no .json, .yaml, .yml or .toml extension", path))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No config file at " + path).
				Wrap(err)
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg, err := Parse(data, format)
	if err != nil {
		var ce *errors.Error
		if stderrors.As(err, &ce) && ce.Location != nil {
			ce.WithLocation(path, ce.Location.Line, ce.Location.Column)
		}
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes data over the defaults, then fills in what the file left
// empty. Syntax errors carry the line (and column, when known) in
// Location; File is left empty.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := New()
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	case FormatTOML:
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, errors.New("E102").WithDetail(fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		perr := errors.New("E101").
			WithDetail(fmt.Sprintf("Failed to parse %s config", strings.ToUpper(string(format)))).
			Wrap(err)
		if line, col := errorPosition(data, err); line > 0 {
			perr.Location = &errors.Location{Line: line, Column: col}
		}
		return nil, perr
	}

	cfg.applyDefaults()
	return cfg, nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// errorPosition extracts a 1-based line and column from a decoder error.
func errorPosition(data []byte, err error) (line, col int) {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	var tomlErr toml.ParseError
	switch {
	case stderrors.As(err, &syntax):
		return offsetPosition(data, syntax.Offset)
	case stderrors.As(err, &typ):
		return offsetPosition(data, typ.Offset)
	case stderrors.As(err, &tomlErr):
		return tomlErr.Position.Line, 0
	}
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return line, 0
}

func offsetPosition(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	col = int(offset) - bytes.LastIndexByte(before, '\n') - 1
	return line, col
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.History.Mode == "" {
		c.History.Mode = d.History.Mode
	}
	if c.History.Cap == 0 {
		c.History.Cap = d.History.Cap
	}
	if c.History.SanitizeDepth == 0 {
		c.History.SanitizeDepth = d.History.SanitizeDepth
	}

	if c.Matcher.HotSize == 0 {
		c.Matcher.HotSize = d.Matcher.HotSize
	}
	if c.Matcher.WarmSize == 0 {
		c.Matcher.WarmSize = d.Matcher.WarmSize
	}
	if c.Matcher.ColdSize == 0 {
		c.Matcher.ColdSize = d.Matcher.ColdSize
	}
	if c.Matcher.WarmAfter == 0 {
		c.Matcher.WarmAfter = d.Matcher.WarmAfter
	}
	if c.Matcher.HotAfter == 0 {
		c.Matcher.HotAfter = d.Matcher.HotAfter
	}

	if c.Guards.Timeout == "" {
		c.Guards.Timeout = d.Guards.Timeout
	}
	if c.Guards.CacheTTL == "" {
		c.Guards.CacheTTL = d.Guards.CacheTTL
	}
	if c.Guards.CacheSize == 0 {
		c.Guards.CacheSize = d.Guards.CacheSize
	}

	if c.Navigation.MaxRedirects == 0 {
		c.Navigation.MaxRedirects = d.Navigation.MaxRedirects
	}
	if c.Navigation.RedirectWindow == 0 {
		c.Navigation.RedirectWindow = d.Navigation.RedirectWindow
	}
	if c.Navigation.RedirectIdle == "" {
		c.Navigation.RedirectIdle = d.Navigation.RedirectIdle
	}
	if c.Navigation.MonitorInterval == "" {
		c.Navigation.MonitorInterval = d.Navigation.MonitorInterval
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.BridgePath == "" {
		c.Server.BridgePath = d.Server.BridgePath
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = d.Server.MetricsPath
	}

	if c.State.Store == "" {
		c.State.Store = d.State.Store
	}
	if c.State.TTL == "" {
		c.State.TTL = d.State.TTL
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.History.Mode {
	case ModeMemory, ModeBrowser, ModeHash:
	default:
		return errors.New("E104").
			WithDetail(fmt.Sprintf("history.mode %q is not memory, browser or hash", c.History.Mode))
	}
	if c.History.Cap < 0 || c.History.SanitizeDepth < 0 {
		return errors.New("E104").WithDetail("history.cap and history.sanitizeDepth must not be negative")
	}
	if c.Matcher.HotSize < 0 || c.Matcher.WarmSize < 0 || c.Matcher.ColdSize < 0 {
		return errors.New("E104").WithDetail("matcher tier sizes must not be negative")
	}
	if c.Matcher.WarmAfter > c.Matcher.HotAfter {
		return errors.New("E104").
			WithDetail(fmt.Sprintf("matcher.warmAfter (%d) exceeds matcher.hotAfter (%d)", c.Matcher.WarmAfter, c.Matcher.HotAfter))
	}
	if c.Navigation.MaxRedirects < 0 || c.Navigation.RedirectWindow < 0 {
		return errors.New("E104").WithDetail("redirect bounds must not be negative")
	}

	durations := []struct{ key, value string }{
		{"guards.timeout", c.Guards.Timeout},
		{"guards.cacheTTL", c.Guards.CacheTTL},
		{"navigation.redirectIdle", c.Navigation.RedirectIdle},
		{"navigation.monitorInterval", c.Navigation.MonitorInterval},
		{"server.idleTimeout", c.Server.IdleTimeout},
		{"state.ttl", c.State.TTL},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.key, d.value); err != nil {
			return err
		}
	}

	names := map[string]bool{}
	return validateRoutes(c.Routes, names)
}

func validateRoutes(routes []RouteConfig, names map[string]bool) error {
	for _, r := range routes {
		if r.Path == "" {
			return errors.New("E110").WithDetail(fmt.Sprintf("route %q has no path", r.Name))
		}
		if r.Redirect != "" && r.RedirectName != "" {
			return errors.New("E113").
				WithDetail(fmt.Sprintf("route %q sets both redirect and redirectName", r.Path))
		}
		if r.Name != "" {
			if names[r.Name] {
				return errors.New("E111").WithDetail(fmt.Sprintf("route name %q is used twice", r.Name))
			}
			names[r.Name] = true
		}
		if err := validateRoutes(r.Children, names); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration parses a duration field. Empty means unset.
func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.New("E103").
			WithDetail(key).
			WithSuggestion(`Use a Go duration such as "250ms", "5s" or "24h"`).
			Wrap(err)
	}
	if d < 0 {
		return 0, errors.New("E103").WithDetail(key + " must not be negative")
	}
	return d, nil
}

func mustDuration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// GuardTimeout returns guards.timeout.
func (c *Config) GuardTimeout() time.Duration { return mustDuration(c.Guards.Timeout) }

// StateTTL returns state.ttl.
func (c *Config) StateTTL() time.Duration { return mustDuration(c.State.TTL) }

// IdleTimeout returns server.idleTimeout, zero when unset.
func (c *Config) IdleTimeout() time.Duration { return mustDuration(c.Server.IdleTimeout) }

// TieredConfig returns the matcher cache tiers.
func (c *Config) TieredConfig() cache.TieredConfig {
	return cache.TieredConfig{
		HotSize:   c.Matcher.HotSize,
		WarmSize:  c.Matcher.WarmSize,
		ColdSize:  c.Matcher.ColdSize,
		WarmAfter: c.Matcher.WarmAfter,
		HotAfter:  c.Matcher.HotAfter,
	}
}

// EngineOptions converts the configuration into engine options, including
// the route table. The history backend is not included; it depends on
// where the engine runs. Call Validate first.
func (c *Config) EngineOptions() ([]navigation.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	matcherOpts := []router.Option{router.WithCacheConfig(c.TieredConfig())}
	if c.Matcher.DisableCache {
		matcherOpts = []router.Option{router.WithoutCache()}
	}

	guardOpts := []guard.Option{
		guard.WithTimeout(c.GuardTimeout()),
		guard.WithParallel(c.Guards.Parallel),
	}
	if c.Guards.DisableCache {
		guardOpts = append(guardOpts, guard.WithoutCache())
	} else {
		guardOpts = append(guardOpts, guard.WithCache(c.Guards.CacheSize, mustDuration(c.Guards.CacheTTL)))
	}

	return []navigation.Option{
		navigation.WithMatcherOptions(matcherOpts...),
		navigation.WithGuardOptions(guardOpts...),
		navigation.WithMaxRedirects(c.Navigation.MaxRedirects),
		navigation.WithRedirectWindow(c.Navigation.RedirectWindow, mustDuration(c.Navigation.RedirectIdle)),
		navigation.WithMonitorInterval(mustDuration(c.Navigation.MonitorInterval)),
		navigation.WithRoutes(c.RouteTable()...),
	}, nil
}

// MemoryOptions returns the options for a memory history.
func (c *Config) MemoryOptions() []history.MemoryOption {
	return []history.MemoryOption{
		history.WithMemoryCap(c.History.Cap),
		history.WithMemoryBase(c.History.Base),
		history.WithMemorySanitizeDepth(c.History.SanitizeDepth),
	}
}

// WebOptions returns the options for a browser or hash history.
func (c *Config) WebOptions() []history.WebOption {
	return []history.WebOption{
		history.WithBase(c.History.Base),
		history.WithSanitizeDepth(c.History.SanitizeDepth),
	}
}

// RouteTable converts the configured routes.
func (c *Config) RouteTable() []route.Route {
	return convertRoutes(c.Routes)
}

func convertRoutes(in []RouteConfig) []route.Route {
	if len(in) == 0 {
		return nil
	}
	out := make([]route.Route, 0, len(in))
	for _, rc := range in {
		r := route.Route{
			Path:      rc.Path,
			Name:      rc.Name,
			Alias:     rc.Alias,
			Params:    rc.Params,
			Sensitive: rc.Sensitive,
			Strict:    rc.Strict,
			Children:  convertRoutes(rc.Children),
		}
		if rc.Component != "" {
			r.Component = rc.Component
		}
		if len(rc.Meta) > 0 {
			r.Meta = route.Meta(rc.Meta)
		}
		switch {
		case rc.Redirect != "":
			r.Redirect = route.RedirectPath(rc.Redirect)
		case rc.RedirectName != "":
			r.Redirect = route.RedirectLocation{Name: rc.RedirectName}
		}
		out = append(out, r)
	}
	return out
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// OpenStore opens the configured history state store. The caller closes it.
func (c *Config) OpenStore(ctx context.Context) (statestore.Store, error) {
	return OpenStore(ctx, c.State.Store)
}

// OpenStore opens a state store from a "memory:", "bolt:<path>" or
// "sqlite:<path>" spec.
func OpenStore(ctx context.Context, spec string) (statestore.Store, error) {
	kind, path, _ := strings.Cut(spec, ":")
	switch kind {
	case "memory", "":
		return statestore.NewMemoryStore(), nil
	case "bolt", "sqlite":
		if path == "" {
			return nil, errors.New("E131").WithDetail(fmt.Sprintf("%q names no file", spec))
		}
	default:
		return nil, errors.New("E131").WithDetail(fmt.Sprintf("unknown store %q", spec))
	}

	var (
		store statestore.Store
		err   error
	)
	if kind == "bolt" {
		store, err = statestore.OpenBolt(path)
	} else {
		store, err = statestore.OpenSQLite(ctx, path)
	}
	if err != nil {
		return nil, errors.New("E130").WithDetail(spec).Wrap(err)
	}
	return store, nil
}
