package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: Default, then the YAML
// file at path when it exists, then CADBRIDGE_* environment variables. The
// result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default describes a local-only bridge: RPC on 127.0.0.1:9875, journal in
// ./data, metrics and /ws on, every network sink off.
func Default() *Config {
	cfg := &Config{}

	cfg.API.Port = 9875
	cfg.API.Timeouts = APITimeoutConfig{Read: 30, Write: 90, Idle: 60}

	cfg.Bridge = BridgeConfig{TickInterval: 500, NotifyOnEnqueue: true, WaitTimeout: 60}
	cfg.Settings.Path = defaultSettingsPath()
	cfg.Database = DatabaseConfig{Enabled: true, Path: "./data/cadbridge.db", WALMode: true, BusyTimeout: 5}

	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "cadbridge"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "cadbridge"
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}

	cfg.WebSocket = WebSocketConfig{Enabled: true, MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	cfg.Metrics = MetricsConfig{Enabled: true, Path: "/metrics"}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	cfg.Security.JWT.TokenTTL = 60
	cfg.Security.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 600, Burst: 60}
	return cfg
}

// defaultSettingsPath is settings.yaml under the user config directory, so
// the allow-list follows the user rather than the working directory.
func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("data", "settings.yaml")
	}
	return filepath.Join(dir, "cadbridge", "settings.yaml")
}

// envVar binds one environment variable to a config field.
type envVar struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(cfg) = n
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		*field(cfg) = b
		return nil
	}
}

var envVars = []envVar{
	{"CADBRIDGE_API_HOST", str(func(c *Config) *string { return &c.API.Host })},
	{"CADBRIDGE_API_PORT", integer(func(c *Config) *int { return &c.API.Port })},
	{"CADBRIDGE_SETTINGS_PATH", str(func(c *Config) *string { return &c.Settings.Path })},
	{"CADBRIDGE_DATABASE_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"CADBRIDGE_MQTT_ENABLED", boolean(func(c *Config) *bool { return &c.MQTT.Enabled })},
	{"CADBRIDGE_MQTT_HOST", str(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"CADBRIDGE_MQTT_USERNAME", str(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"CADBRIDGE_MQTT_PASSWORD", str(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"CADBRIDGE_INFLUXDB_URL", str(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"CADBRIDGE_INFLUXDB_TOKEN", str(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"CADBRIDGE_LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"CADBRIDGE_JWT_SECRET", str(func(c *Config) *string { return &c.Security.JWT.Secret })},
}

// applyEnv overlays every set, non-empty CADBRIDGE_* variable. A value that
// does not parse is an error rather than silently ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.name, err))
		}
	}
	return errors.Join(errs...)
}
