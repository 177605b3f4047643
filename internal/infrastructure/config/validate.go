package config

import (
	"errors"
	"fmt"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// minJWTSecretLength is the shortest admin token secret accepted.
const minJWTSecretLength = 32

// Validate reports every problem at once, each naming its YAML key.
func (c *Config) Validate() error {
	var problems []error
	check := func(bad bool, key, msg string) {
		if bad {
			problems = append(problems, fmt.Errorf("%s: %s", key, msg))
		}
	}

	check(c.API.Port < 1 || c.API.Port > 65535, "api.port", "must be between 1 and 65535")
	check(c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == ""),
		"api.tls", "cert_file and key_file are required when enabled")

	check(c.Bridge.TickInterval <= 0, "bridge.tick_interval", "must be positive")
	check(c.Bridge.WaitTimeout < 0, "bridge.wait_timeout", "must not be negative")

	check(c.Settings.Path == "", "settings.path", "is required")
	check(c.Database.Enabled && c.Database.Path == "", "database.path", "is required when the journal is enabled")

	check(c.MQTT.QoS < 0 || c.MQTT.QoS > 2, "mqtt.qos", "must be 0, 1 or 2")
	check(c.MQTT.Enabled && c.MQTT.Broker.Host == "", "mqtt.broker.host", "is required when mqtt is enabled")

	check(c.InfluxDB.Enabled && c.InfluxDB.URL == "", "influxdb.url", "is required when influxdb is enabled")
	check(c.InfluxDB.Enabled && c.InfluxDB.Bucket == "", "influxdb.bucket", "is required when influxdb is enabled")

	if s := c.Security.JWT.Secret; s != "" {
		check(len(s) < minJWTSecretLength, "security.jwt.secret",
			fmt.Sprintf("must be at least %d characters", minJWTSecretLength))
	}
	check(c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute <= 0,
		"security.rate_limit.requests_per_minute", "must be positive")

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
}
