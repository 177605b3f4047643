package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes body to a config.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9900
bridge:
  tick_interval: 250
  wait_timeout: 5
database:
  path: /tmp/journal.db
mqtt:
  enabled: true
  broker:
    host: broker.local
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9900 {
		t.Errorf("API.Port = %d, want 9900", cfg.API.Port)
	}
	if cfg.Database.Path != "/tmp/journal.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if got := cfg.Bridge.Tick(); got != 250*time.Millisecond {
		t.Errorf("Bridge.Tick() = %v, want 250ms", got)
	}
	if got := cfg.Bridge.Wait(); got != 5*time.Second {
		t.Errorf("Bridge.Wait() = %v, want 5s", got)
	}
	// Keys absent from the file keep their defaults.
	if !cfg.Bridge.NotifyOnEnqueue || cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaults lost: notify=%v mqtt port=%d", cfg.Bridge.NotifyOnEnqueue, cfg.MQTT.Broker.Port)
	}
}

func TestLoad_MissingOrEmptyFile(t *testing.T) {
	for name, path := range map[string]string{
		"missing": filepath.Join(t.TempDir(), "absent.yaml"),
		"empty":   writeConfig(t, ""),
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.API.Port != 9875 || cfg.Bridge.TickInterval != 500 {
				t.Errorf("not defaults: port=%d tick=%d", cfg.API.Port, cfg.Bridge.TickInterval)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad yaml", body: "invalid: [yaml: content", want: "parsing"},
		{name: "invalid value", body: "bridge:\n  tick_interval: 0\n", want: "bridge.tick_interval"},
		{name: "bad env integer", env: map[string]string{"CADBRIDGE_API_PORT": "http"}, want: "CADBRIDGE_API_PORT"},
		{name: "bad env boolean", env: map[string]string{"CADBRIDGE_MQTT_ENABLED": "sometimes"}, want: "CADBRIDGE_MQTT_ENABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CADBRIDGE_API_HOST":       "192.168.1.1",
		"CADBRIDGE_API_PORT":       "9999",
		"CADBRIDGE_SETTINGS_PATH":  "/custom/settings.yaml",
		"CADBRIDGE_DATABASE_PATH":  "/custom/path.db",
		"CADBRIDGE_MQTT_ENABLED":   "true",
		"CADBRIDGE_MQTT_HOST":      "mqtt.example.com",
		"CADBRIDGE_MQTT_PASSWORD":  "testpass",
		"CADBRIDGE_INFLUXDB_TOKEN": "secret-token",
		"CADBRIDGE_LOG_LEVEL":      "debug",
		"CADBRIDGE_JWT_SECRET":     "jwt-secret",
		"CADBRIDGE_MQTT_USERNAME":  "", // empty values are ignored
	}
	cfg := Default()
	cfg.MQTT.Auth.Username = "from-file"
	if err := applyEnv(cfg, mapLookup(env)); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9999},
		{"Settings.Path", cfg.Settings.Path, "/custom/settings.yaml"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Enabled", cfg.MQTT.Enabled, true},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "from-file"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnv_CollectsAllErrors(t *testing.T) {
	env := map[string]string{"CADBRIDGE_API_PORT": "x", "CADBRIDGE_MQTT_ENABLED": "y"}
	err := applyEnv(Default(), mapLookup(env))
	if err == nil {
		t.Fatal("applyEnv() accepted bad values")
	}
	for _, name := range []string{"CADBRIDGE_API_PORT", "CADBRIDGE_MQTT_ENABLED"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string // empty means valid
	}{
		{"defaults", func(*Config) {}, ""},
		{"admin secret set", func(c *Config) { c.Security.JWT.Secret = strings.Repeat("k", 32) }, ""},
		{"admin secret too short", func(c *Config) { c.Security.JWT.Secret = "short" }, "security.jwt.secret"},
		{"port zero", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"port too high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"qos 3", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"mqtt without host", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Host = "" }, "mqtt.broker.host"},
		{"negative wait", func(c *Config) { c.Bridge.WaitTimeout = -1 }, "bridge.wait_timeout"},
		{"journal without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"journal off without path", func(c *Config) { c.Database.Enabled = false; c.Database.Path = "" }, ""},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" }, "influxdb.url"},
		{"influxdb without bucket", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://x" }, "influxdb.bucket"},
		{"tls without certificate", func(c *Config) { c.API.TLS.Enabled = true }, "api.tls"},
		{"zero rate limit", func(c *Config) { c.Security.RateLimit.RequestsPerMinute = 0 }, "security.rate_limit"},
		{"rate limit off", func(c *Config) { c.Security.RateLimit = RateLimitConfig{} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error = %v, want ErrInvalid naming %s", err, tt.wantKey)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.API.Port = 0
	cfg.Bridge.TickInterval = 0
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	for _, key := range []string{"api.port", "bridge.tick_interval", "mqtt.qos"} {
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("Validate() error = %v, missing %s", err, key)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.API.Host != "" {
		t.Errorf("API.Host = %q, want empty so remote access decides", cfg.API.Host)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("network sinks should default off")
	}
	if filepath.Base(cfg.Settings.Path) != "settings.yaml" {
		t.Errorf("Settings.Path = %q", cfg.Settings.Path)
	}
	if cfg.Bridge.Tick() != 500*time.Millisecond {
		t.Errorf("Bridge.Tick() = %v", cfg.Bridge.Tick())
	}
}
