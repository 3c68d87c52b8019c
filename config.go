package promport

import (
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// Defaults applied by DefaultConfig and Normalize.
const (
	DefaultListenAddress         = "0.0.0.0:10000"
	DefaultMetricsPath           = "/metrics"
	DefaultCollectionIntervalSec = 10
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config describes one scrape endpoint and its collection schedule.
// The zero value is usable after Normalize; a nil Config passed to New or
// Exporter.Reload means "no endpoint" and keeps the exporter disabled.
type Config struct {
	// ListenAddress is the host:port the scrape endpoint binds to.
	ListenAddress string `yaml:"listen_address" toml:"listen_address"`

	// MetricsPath is the exact request path that serves metrics. Requests
	// for any other path receive an empty 404.
	MetricsPath string `yaml:"metrics_path" toml:"metrics_path"`

	// CollectionIntervalSec is the number of seconds between metric
	// collections. Zero pauses collection until a later reload sets a
	// nonzero interval.
	CollectionIntervalSec uint64 `yaml:"collection_interval_sec" toml:"collection_interval_sec"`

	// EnableHTTP2 serves the endpoint with cleartext HTTP/2 (h2c) support
	// in addition to HTTP/1.1.
	EnableHTTP2 bool `yaml:"enable_http2" toml:"enable_http2"`

	// Logging configures the process logger. The library does not consume
	// it; it is read by binaries embedding the exporter.
	Logging LogConfig `yaml:"logging" toml:"logging"`
}

// LogConfig defines logger construction options.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"` // force colored console output
}

// ParseLevel converts the configured log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LogConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// DefaultConfig returns a config serving /metrics on 0.0.0.0:10000 with a
// ten second collection interval.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:         DefaultListenAddress,
		MetricsPath:           DefaultMetricsPath,
		CollectionIntervalSec: DefaultCollectionIntervalSec,
	}
}

// Normalize fills unset address and path fields with defaults and repairs the
// path shape: a missing leading slash is prepended. The collection interval
// is left alone because zero is meaningful (collection paused).
func (c *Config) Normalize() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		c.MetricsPath = "/" + c.MetricsPath
	}
}

// CollectionInterval returns the refresh interval as a duration Option.
// Returns None when collection is paused (interval zero).
func (c *Config) CollectionInterval() mo.Option[time.Duration] {
	if c.CollectionIntervalSec == 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(c.CollectionIntervalSec) * time.Second)
}

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":         true, // Empty defaults to info
	LevelDebug: true,
	LevelInfo:  true,
	LevelWarn:  true,
	LevelError: true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty defaults to json
	"json":    true,
	"console": true,
	"text":    true, // Alias for console
	"pretty":  true,
}

// Validate checks the configuration for problems. It returns a
// ValidationError listing every problem found, or nil if the config is valid.
// A config that fails validation never reaches the endpoint manager.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateListenAddress(c.ListenAddress, errs)
	validateMetricsPath(c.MetricsPath, errs)
	validateLogging(&c.Logging, errs)

	return errs.ToError()
}

// validateListenAddress checks a listen address in host:port form.
func validateListenAddress(addr string, errs *ValidationError) {
	if addr == "" {
		return // Normalize fills the default
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("listen_address must be in host:port format (got %q)", addr)
		return
	}

	// Host can be empty (listen on all interfaces) or a valid IP/hostname
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				errs.Add("listen_address host contains invalid characters")
			}
		}
	}

	if port == "" {
		errs.Add("listen_address port is required")
	}
}

// validateMetricsPath rejects paths that cannot be matched exactly against
// an incoming request path.
func validateMetricsPath(path string, errs *ValidationError) {
	if path == "" {
		return // Normalize fills the default
	}

	if strings.ContainsAny(path, "?#") {
		errs.Addf("metrics_path must not contain a query or fragment (got %q)", path)
	}
	if strings.IndexFunc(path, func(r rune) bool { return r <= ' ' || r == 0x7f }) >= 0 {
		errs.Addf("metrics_path must not contain whitespace or control characters (got %q)", path)
	}
}

// validateLogging checks the logging section.
func validateLogging(l *LogConfig, errs *ValidationError) {
	if !validLogLevels[strings.ToLower(l.Level)] {
		errs.Addf("logging.level must be one of debug, info, warn, error (got %q)", l.Level)
	}
	if !validLogFormats[strings.ToLower(l.Format)] {
		errs.Addf("logging.format must be one of json, console (got %q)", l.Format)
	}
}
