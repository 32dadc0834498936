package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unklstewy/aprs-notify/pkg/coordinates"
)

// ErrNotConfigured is returned when the configuration file is missing or
// lacks a required setting.
var ErrNotConfigured = errors.New("aprs-notify is not configured")

// Config represents the complete application configuration.
// It is loaded from a JSON or YAML file, then environment overrides apply.
type Config struct {
	APRSFI  APRSFIConfig  `json:"aprsfi" yaml:"aprsfi"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
	Home    HomeConfig    `json:"home" yaml:"home"`
	Message MessageConfig `json:"message" yaml:"message"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	History HistoryConfig `json:"history" yaml:"history"`
	MQTT    MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Watch   WatchConfig   `json:"watch" yaml:"watch"`
}

// APRSFIConfig contains aprs.fi API settings.
type APRSFIConfig struct {
	// APIKey is the personal API key from https://aprs.fi/account/
	APIKey string `json:"api_key" yaml:"api_key"`

	// BaseURL is the API base URL (default: https://api.aprs.fi/api)
	BaseURL string `json:"base_url" yaml:"base_url"`

	// TimeoutSeconds is the per-request timeout
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// RequestsPerMinute limits API calls within one process
	RequestsPerMinute float64 `json:"requests_per_minute" yaml:"requests_per_minute"`

	// MaxRetries is the number of retries for failed requests (0 = fail fast)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// MonitorConfig names the tracked station or object.
type MonitorConfig struct {
	// Callsign is the aprs.fi name to look up (e.g., "N0CALL-9")
	Callsign string `json:"callsign" yaml:"callsign"`
}

// HomeConfig is the reference point distances are measured from.
type HomeConfig struct {
	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude"`

	// TimeZone is the IANA timezone name used for timestamps (default: local)
	TimeZone string `json:"timezone" yaml:"timezone"`
}

// MessageConfig selects optional message clauses.
type MessageConfig struct {
	IncludeAltitude bool `json:"include_altitude" yaml:"include_altitude"`
	IncludeDistance bool `json:"include_distance" yaml:"include_distance"`
}

// NotifyConfig contains desktop notification settings.
type NotifyConfig struct {
	// AppName is reported to the notification server
	AppName string `json:"app_name" yaml:"app_name"`

	// TimeoutMillis is how long a desktop notification stays up
	TimeoutMillis int `json:"timeout_ms" yaml:"timeout_ms"`

	// AutoAgeLimitSeconds is the maximum record age in "auto" mode
	AutoAgeLimitSeconds int `json:"auto_age_limit_seconds" yaml:"auto_age_limit_seconds"`
}

// HistoryConfig controls the optional position history store.
type HistoryConfig struct {
	// Enabled turns on recording of every shown position
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Driver is "postgres" or "sqlite"
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the connection string or, for sqlite, the database file path
	DSN string `json:"dsn" yaml:"dsn"`

	// RetentionDays prunes older rows at startup (0 = keep everything)
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}

// MQTTConfig controls the optional MQTT notifier.
type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Topic    string `json:"topic" yaml:"topic"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	QoS      byte   `json:"qos" yaml:"qos"`
	Retained bool   `json:"retained" yaml:"retained"`
}

// WatchConfig controls the interactive watch view.
type WatchConfig struct {
	// IntervalSeconds between refreshes (minimum 30)
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`
}

// DefaultPath returns $XDG_CONFIG_HOME/aprs-notify/config.json, or a relative
// path when the user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("configs", "config.json")
	}
	return filepath.Join(dir, "aprs-notify", "config.json")
}

// Load reads configuration from a JSON or YAML file and applies environment
// overrides. A missing file falls back to defaults, so the environment alone
// can supply the API key and callsign; without them ErrNotConfigured names
// the missing path.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	missing := errors.Is(err, os.ErrNotExist)
	switch {
	case missing:
		// Defaults plus environment may still be enough
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		if missing && errors.Is(err, ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNotConfigured, path)
		}
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file holds the API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
// APIKey and Callsign are left empty and must be set.
func DefaultConfig() *Config {
	return &Config{
		APRSFI: APRSFIConfig{
			BaseURL:           "https://api.aprs.fi/api",
			TimeoutSeconds:    10,
			RequestsPerMinute: 30,
			MaxRetries:        0,
		},
		Message: MessageConfig{
			IncludeAltitude: true,
			IncludeDistance: true,
		},
		Notify: NotifyConfig{
			AppName:             "aprs-notification",
			TimeoutMillis:       10000,
			AutoAgeLimitSeconds: 600,
		},
		History: HistoryConfig{
			Enabled: false,
			Driver:  "sqlite",
			DSN:     "aprs-notify.db",
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			ClientID: "aprs-notify",
			Topic:    "aprs-notify/position",
			QoS:      0,
		},
		Watch: WatchConfig{
			IntervalSeconds: 120,
		},
	}
}

// Validate checks that the required settings are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APRSFI.APIKey) == "" {
		return fmt.Errorf("%w: aprsfi.api_key is required", ErrNotConfigured)
	}
	if strings.TrimSpace(c.Monitor.Callsign) == "" {
		return fmt.Errorf("%w: monitor.callsign is required", ErrNotConfigured)
	}
	if !c.HomeLocation().Valid() {
		return fmt.Errorf("home position %v, %v is out of range", c.Home.Latitude, c.Home.Longitude)
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("unsupported history driver %q (want postgres or sqlite)", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required when history is enabled")
		}
		if c.History.RetentionDays < 0 {
			return fmt.Errorf("history.retention_days must not be negative")
		}
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.broker and mqtt.topic are required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}
	return nil
}

// HomeLocation returns the home reference point.
func (c *Config) HomeLocation() coordinates.Geographic {
	return coordinates.Geographic{
		Latitude:  c.Home.Latitude,
		Longitude: c.Home.Longitude,
	}
}

// TimeLocation resolves the configured time zone, defaulting to local time.
func (c *Config) TimeLocation() (*time.Location, error) {
	if c.Home.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Home.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid home.timezone %q: %w", c.Home.TimeZone, err)
	}
	return loc, nil
}

// AutoAgeLimit returns the record age limit used in "auto" mode.
func (c *Config) AutoAgeLimit() time.Duration {
	return time.Duration(c.Notify.AutoAgeLimitSeconds) * time.Second
}

// HistoryRetention returns how long history rows are kept, or 0 for ever.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// WatchInterval returns the refresh interval of the watch view, at least 30 seconds.
func (c *Config) WatchInterval() time.Duration {
	d := time.Duration(c.Watch.IntervalSeconds) * time.Second
	if d < 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows the API key and passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() error {
	if apiKey := os.Getenv("APRS_NOTIFY_API_KEY"); apiKey != "" {
		c.APRSFI.APIKey = apiKey
	}
	if callsign := os.Getenv("APRS_NOTIFY_CALLSIGN"); callsign != "" {
		c.Monitor.Callsign = callsign
	}
	if lat := os.Getenv("APRS_NOTIFY_HOME_LAT"); lat != "" {
		v, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return fmt.Errorf("invalid APRS_NOTIFY_HOME_LAT: %w", err)
		}
		c.Home.Latitude = v
	}
	if lon := os.Getenv("APRS_NOTIFY_HOME_LON"); lon != "" {
		v, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return fmt.Errorf("invalid APRS_NOTIFY_HOME_LON: %w", err)
		}
		c.Home.Longitude = v
	}
	if dsn := os.Getenv("APRS_NOTIFY_HISTORY_DSN"); dsn != "" {
		c.History.DSN = dsn
	}
	if pw := os.Getenv("APRS_NOTIFY_MQTT_PASSWORD"); pw != "" {
		c.MQTT.Password = pw
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
