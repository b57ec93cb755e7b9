package sessionkit

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/yaml.v3"

	"github.com/draftpad/sessionkit/logging"
)

// Default timing values.
const (
	DefaultDebounceInterval  = 10 * time.Second
	DefaultMaxWaitMultiplier = 3
	DefaultFlushTimeout      = 30 * time.Second
	DefaultCloseTimeout      = 5 * time.Second
)

// Options configures a Session.
type Options struct {
	// DebounceInterval is the quiet period after the last change before an
	// autosave flush fires. Default 10s.
	DebounceInterval time.Duration

	// MaxWaitMultiplier bounds deferral under continuous typing: a dirty
	// session is force-flushed after MaxWaitMultiplier * DebounceInterval.
	// Default 3.
	MaxWaitMultiplier int

	// FlushTimeout bounds a single persist attempt. Default 30s.
	FlushTimeout time.Duration

	// CloseTimeout bounds the best-effort final flush on Close. Default 5s.
	CloseTimeout time.Duration

	// Logger for session events. Defaults to logging.Default().
	Logger *logging.Logger

	// MetricsCollector for observability hooks. Defaults to a no-op.
	MetricsCollector MetricsCollector

	// Clock drives all timers; swap in a mock for deterministic tests.
	// Defaults to the wall clock.
	Clock clock.Clock
}

// DefaultOptions returns Options with all defaults applied.
func DefaultOptions() Options {
	return Options{
		DebounceInterval:  DefaultDebounceInterval,
		MaxWaitMultiplier: DefaultMaxWaitMultiplier,
		FlushTimeout:      DefaultFlushTimeout,
		CloseTimeout:      DefaultCloseTimeout,
		Logger:            logging.Default(),
		MetricsCollector:  &NoOpMetricsCollector{},
		Clock:             clock.New(),
	}
}

func (o *Options) setDefaults() {
	if o.DebounceInterval <= 0 {
		o.DebounceInterval = DefaultDebounceInterval
	}
	if o.MaxWaitMultiplier <= 0 {
		o.MaxWaitMultiplier = DefaultMaxWaitMultiplier
	}
	if o.FlushTimeout <= 0 {
		o.FlushTimeout = DefaultFlushTimeout
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.MetricsCollector == nil {
		o.MetricsCollector = &NoOpMetricsCollector{}
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// MaxWait returns the force-flush ceiling for a dirty period.
func (o *Options) MaxWait() time.Duration {
	return time.Duration(o.MaxWaitMultiplier) * o.DebounceInterval
}

// FileConfig is the serializable form of Options, loadable from YAML or JSON.
// Durations are expressed in milliseconds.
type FileConfig struct {
	DebounceIntervalMs int `json:"debounce_interval_ms,omitempty" yaml:"debounce_interval_ms,omitempty"`
	MaxWaitMultiplier  int `json:"max_wait_multiplier,omitempty" yaml:"max_wait_multiplier,omitempty"`
	FlushTimeoutMs     int `json:"flush_timeout_ms,omitempty" yaml:"flush_timeout_ms,omitempty"`
	CloseTimeoutMs     int `json:"close_timeout_ms,omitempty" yaml:"close_timeout_ms,omitempty"`
}

// Validate checks the configuration for values the session cannot run with.
func (fc *FileConfig) Validate() error {
	if fc.DebounceIntervalMs < 0 {
		return fmt.Errorf("debounce_interval_ms must not be negative, got %d", fc.DebounceIntervalMs)
	}
	if fc.MaxWaitMultiplier < 0 {
		return fmt.Errorf("max_wait_multiplier must not be negative, got %d", fc.MaxWaitMultiplier)
	}
	if fc.MaxWaitMultiplier == 1 {
		return fmt.Errorf("max_wait_multiplier of 1 would force-flush on every debounce; use 2 or more")
	}
	if fc.FlushTimeoutMs < 0 {
		return fmt.Errorf("flush_timeout_ms must not be negative, got %d", fc.FlushTimeoutMs)
	}
	if fc.CloseTimeoutMs < 0 {
		return fmt.Errorf("close_timeout_ms must not be negative, got %d", fc.CloseTimeoutMs)
	}
	return nil
}

// Options converts the file configuration into runtime Options, applying
// defaults for anything unset.
func (fc *FileConfig) Options() Options {
	opts := DefaultOptions()
	if fc.DebounceIntervalMs > 0 {
		opts.DebounceInterval = time.Duration(fc.DebounceIntervalMs) * time.Millisecond
	}
	if fc.MaxWaitMultiplier > 0 {
		opts.MaxWaitMultiplier = fc.MaxWaitMultiplier
	}
	if fc.FlushTimeoutMs > 0 {
		opts.FlushTimeout = time.Duration(fc.FlushTimeoutMs) * time.Millisecond
	}
	if fc.CloseTimeoutMs > 0 {
		opts.CloseTimeout = time.Duration(fc.CloseTimeoutMs) * time.Millisecond
	}
	return opts
}

// LoadConfigFile reads a FileConfig from a YAML or JSON file, chosen by
// extension (.json is JSON, anything else is parsed as YAML).
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	}

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &fc, nil
}
