package mqtt

import (
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// Client is an MQTT 3.1.1 session handle built on paho.mqtt.golang.
//
// New only prepares the client; Start begins connecting in the background.
// Connection state changes are reported to the registered event handler as
// session events, so the caller never polls.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	started atomic.Bool

	// handler receives session events (optional, set via SetEventHandler).
	handler   session.EventHandler
	handlerMu sync.RWMutex

	// logger for diagnostics (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// New creates a client from config without connecting.
//
// It fails only when the configuration cannot produce a usable client,
// such as an unparseable broker URI.
func New(cfg config.MQTTConfig) (*Client, error) {
	opts, err := buildClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		options: opts,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		if logger := c.getLogger(); logger != nil {
			logger.Debug("mqtt reconnecting", "broker", c.cfg.Broker.URI)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	return c, nil
}

// NewSession is a session.Factory producing MQTT 3.1.1 clients.
func NewSession(cfg config.MQTTConfig) (session.Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetEventHandler registers the session event callback.
func (c *Client) SetEventHandler(h session.EventHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// Start begins connecting to the broker and returns immediately.
//
// paho keeps retrying the initial connection at the configured interval;
// the Connected event fires when the broker accepts. Start is idempotent.
func (c *Client) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	token := c.client.Connect()
	go func() {
		// With ConnectRetry the token only completes on success or Disconnect.
		token.Wait()
		if err := token.Error(); err != nil {
			c.emit(session.Event{Kind: session.Error, Err: err})
		}
	}()
	return nil
}

// handleConnect is called on initial connect and every reconnect.
func (c *Client) handleConnect() {
	c.emit(session.Event{Kind: session.Connected})
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}
	c.emit(session.Event{Kind: session.Disconnected, Err: err})
}

// Close disconnects from the broker, allowing in-flight operations to finish.
func (c *Client) Close() error {
	if c.client == nil || !c.started.Load() {
		return nil
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// IsConnected reports paho's view of the connection.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// SetLogger sets a logger for connection diagnostics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) emit(ev session.Event) {
	c.handlerMu.RLock()
	h := c.handler
	c.handlerMu.RUnlock()
	if h != nil {
		h(ev)
	}
}
