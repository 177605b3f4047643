package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
)

const (
	connectTimeout  = 10 * time.Second
	tokenTimeout    = 5 * time.Second
	keepAlive       = 60 * time.Second
	quiesceMillis   = 1000
	maxQoS          = 2
	maxPayloadBytes = 1 << 20
)

// Status is the retained document on {prefix}/status. The daemon publishes
// it as online after every (re)connect and offline on Close; the broker
// publishes the offline will if the daemon vanishes.
type Status struct {
	State     string `json:"state"` // online or offline
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusJSON(state, clientID, reason string) []byte {
	//nolint:errcheck // strings only
	b, _ := json.Marshal(Status{
		State:     state,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// brokerURL returns tcp:// or ssl:// host:port for cfg.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// sessionOptions builds paho options for one cadbridge session. A clean
// session is used because Watch re-subscribes itself after a reconnect.
// When announce is set the offline will is registered on the status topic.
func sessionOptions(cfg config.MQTTConfig, topics Topics, announce bool) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if announce {
		opts.SetWill(topics.Status(), string(statusJSON("offline", cfg.Broker.ClientID, "unexpected_disconnect")), 1, true)
	}
	return opts
}
