package config

import "time"

// Config mirrors config.yaml. Each section's zero value means "off" or is
// replaced by Default.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Settings  SettingsConfig  `yaml:"settings"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// APIConfig contains HTTP/JSON-RPC server settings.
//
// Host is normally left empty: the bind address is then derived from the
// remote_enabled user setting (0.0.0.0 when remote access is on, 127.0.0.1
// otherwise). A non-empty Host always wins.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists the browser origins allowed to call /rpc. An empty
// AllowedOrigins sends no CORS headers at all.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// BridgeConfig controls the operation queue and the mutation pump.
type BridgeConfig struct {
	// TickInterval is the pump's fixed drain period in milliseconds.
	TickInterval int `yaml:"tick_interval"`

	// NotifyOnEnqueue wakes the pump as soon as a task is queued instead of
	// waiting for the next tick.
	NotifyOnEnqueue bool `yaml:"notify_on_enqueue"`

	// WaitTimeout bounds how long a caller blocks on a queued task, in seconds.
	// Zero disables the bound (the caller waits for as long as its request lives).
	WaitTimeout int `yaml:"wait_timeout"`
}

// Tick returns the pump period.
func (b BridgeConfig) Tick() time.Duration {
	return time.Duration(b.TickInterval) * time.Millisecond
}

// Wait returns the caller wait bound; zero means unbounded.
func (b BridgeConfig) Wait() time.Duration {
	return time.Duration(b.WaitTimeout) * time.Second
}

// SettingsConfig locates the user-scoped settings store.
type SettingsConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings for the task journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the event publisher. Publishing is off by default.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// WebSocketConfig contains WebSocket event hub settings.
type WebSocketConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxMessageSize int  `yaml:"max_message_size"`
	PingInterval   int  `yaml:"ping_interval"`
	PongTimeout    int  `yaml:"pong_timeout"`
}

// InfluxDBConfig configures the task telemetry sink. FlushInterval is in
// seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects level (debug, info, warn, error), format (json or
// text) and output (stdout, stderr or a file path).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains admin token settings.
// An empty secret disables the admin endpoints.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TokenTTL int    `yaml:"token_ttl"`
}

// RateLimitConfig contains per-address JSON-RPC rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}
