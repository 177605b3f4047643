package mqtt

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
)

// Logger is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

// loggerBox lets loggers of different concrete types share one atomic slot.
type loggerBox struct{ Logger }

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MessageHandler receives one message. Handlers run on paho's goroutines;
// a returned error or panic is logged and the session carries on.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a paho session bound to one topic prefix. All methods are safe
// for concurrent use.
type Client struct {
	client   pahomqtt.Client
	cfg      config.MQTTConfig
	topics   Topics
	announce bool // owns {prefix}/status

	connected atomic.Bool
	logger    atomic.Pointer[loggerBox]

	hooksMu      sync.RWMutex
	onConnect    func()
	onDisconnect func(error)

	subMu         sync.RWMutex
	subscriptions map[string]subscription
}

// Connect opens the daemon's session: it registers the offline will on
// {prefix}/status and publishes a retained online status once connected.
// The first attempt must succeed within ten seconds; after that paho
// reconnects on its own with the configured backoff.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	return dial(cfg, true)
}

// ConnectWatcher opens a listen-only session for `cadbridge watch`. The
// client ID gets a "-watch-<pid>" suffix so it never evicts the daemon, and
// the status topic is left alone.
func ConnectWatcher(cfg config.MQTTConfig) (*Client, error) {
	cfg.Broker.ClientID = fmt.Sprintf("%s-watch-%d", cfg.Broker.ClientID, os.Getpid())
	return dial(cfg, false)
}

func dial(cfg config.MQTTConfig, announce bool) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		topics:        NewTopics(cfg.TopicPrefix),
		announce:      announce,
		subscriptions: make(map[string]subscription),
	}

	opts := sessionOptions(cfg, c.topics, announce).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connectedHook() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lostHook(err) })
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %s: no answer within %v", ErrConnectionFailed, brokerURL(cfg.Broker), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}
	// The connect hook runs asynchronously; do not wait for it.
	c.connected.Store(true)
	return c, nil
}

// Topics returns the topic builders for the session's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

func (c *Client) connectedHook() {
	c.connected.Store(true)

	c.subMu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.guard(sub.handler))
	}
	c.subMu.RUnlock()

	if c.announce {
		c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, statusJSON("online", c.cfg.Broker.ClientID, "")) //nolint:gosec // qos validated 0-2
	}

	c.hooksMu.RLock()
	fn := c.onConnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) lostHook(err error) {
	c.connected.Store(false)
	c.log().Warn("mqtt connection lost", "broker", brokerURL(c.cfg.Broker), "error", err)

	c.hooksMu.RLock()
	fn := c.onDisconnect
	c.hooksMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SetOnConnect registers fn for the first connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hooksMu.Lock()
	c.onConnect = fn
	c.hooksMu.Unlock()
}

// SetOnDisconnect registers fn for lost connections.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.hooksMu.Lock()
	c.onDisconnect = fn
	c.hooksMu.Unlock()
}

// SetLogger routes connection and handler problems to logger.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger.Store(&loggerBox{logger})
	}
}

func (c *Client) log() Logger {
	if b := c.logger.Load(); b != nil {
		return b.Logger
	}
	return noopLogger{}
}

// IsConnected reports whether the session is currently up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// HealthCheck returns ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects. The daemon's session first replaces the retained
// status with a graceful offline document.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.announce && c.IsConnected() {
		c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, //nolint:gosec // qos validated 0-2
			statusJSON("offline", c.cfg.Broker.ClientID, "graceful_shutdown")).WaitTimeout(tokenTimeout)
	}
	c.client.Disconnect(quiesceMillis)
	c.connected.Store(false)
	return nil
}

// guard adapts handler for paho, containing panics and logging errors.
func (c *Client) guard(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
