// Package config loads the daemon's settings from defaults, an optional
// config.yaml and CADBRIDGE_* environment variables, in that order.
//
// No file is needed: Default describes a local-only bridge with the journal
// in ./data and every network sink off. Secrets (the admin token secret,
// MQTT password, InfluxDB token) are best supplied through the environment
// rather than the file.
//
// Runtime-mutable user settings such as the allow-list are not part of
// Config; they live in the settings store at Settings.Path.
package config
