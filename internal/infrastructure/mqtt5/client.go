package mqtt5

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/session"
)

const (
	defaultKeepAlive      = 60 // seconds
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 30 * time.Second
	maxQoS                = 2
)

var (
	// ErrInvalidBroker is returned by New when the broker URI cannot be used.
	ErrInvalidBroker = errors.New("mqtt5: invalid broker uri")
	// ErrNotStarted is returned when publishing before Start.
	ErrNotStarted = errors.New("mqtt5: client not started")
	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt5: topic cannot be empty")
	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt5: invalid QoS level (must be 0, 1, or 2)")
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is an MQTT v5 session handle built on autopaho.
//
// autopaho owns the connection loop: it keeps retrying the initial connect
// and reconnects after a drop. Client translates its callbacks into
// session events and publishes asynchronously.
type Client struct {
	cfg     config.MQTTConfig
	pahoCfg autopaho.ClientConfig

	ctx    context.Context
	cancel context.CancelFunc

	cm      atomic.Pointer[autopaho.ConnectionManager]
	started atomic.Bool
	nextID  atomic.Uint32

	handler   session.EventHandler
	handlerMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// New prepares an autopaho configuration without connecting.
func New(cfg config.MQTTConfig) (*Client, error) {
	u, err := url.Parse(cfg.Broker.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBroker, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, cfg.Broker.URI)
	}

	keepAlive := uint16(defaultKeepAlive)
	if cfg.KeepAlive > 0 && cfg.KeepAlive <= 65535 {
		keepAlive = uint16(cfg.KeepAlive)
	}

	c := &Client{cfg: cfg}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.pahoCfg = autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     keepAlive,
		ConnectTimeout:                defaultConnectTimeout,
		CleanStartOnInitialConnection: true,
		ConnectUsername:               cfg.Auth.Username,
		ConnectPassword:               []byte(cfg.Auth.Password),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			c.emit(session.Event{Kind: session.Connected})
		},
		OnConnectionDown: func() bool {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("mqtt5 connection lost", "broker", cfg.Broker.URI)
			}
			c.emit(session.Event{Kind: session.Disconnected})
			return true
		},
		OnConnectError: func(err error) {
			if logger := c.getLogger(); logger != nil {
				logger.Debug("mqtt5 connection attempt failed", "error", err)
			}
			c.emit(session.Event{Kind: session.Error, Err: err})
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.Broker.ClientID,
		},
	}

	if u.Scheme == "mqtts" || u.Scheme == "ssl" || u.Scheme == "tls" {
		c.pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return c, nil
}

// NewSession is a session.Factory producing MQTT v5 clients.
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

// SetLogger sets a logger for connection diagnostics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// Start launches the autopaho connection manager and returns immediately.
func (c *Client) Start() error {
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}
	cm, err := autopaho.NewConnection(c.ctx, c.pahoCfg)
	if err != nil {
		c.started.Store(false)
		return fmt.Errorf("mqtt5 connect: %w", err)
	}
	c.cm.Store(cm)
	return nil
}

// Publish queues a message and returns a locally assigned message ID.
//
// autopaho does not expose packet identifiers, so IDs come from a wrapping
// counter that skips zero. The broker acknowledgement, or its failure, is
// reported as a Published or Error event carrying the same ID.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) (uint16, error) {
	if topic == "" {
		return 0, ErrInvalidTopic
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	cm := c.cm.Load()
	if cm == nil {
		return 0, ErrNotStarted
	}

	id := c.allocID()
	msg := &paho.Publish{
		Topic:   topic,
		QoS:     qos,
		Retain:  retained,
		Payload: payload,
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, defaultPublishTimeout)
		defer cancel()
		if _, err := cm.Publish(ctx, msg); err != nil {
			c.emit(session.Event{Kind: session.Error, ID: id, Err: err})
			return
		}
		c.emit(session.Event{Kind: session.Published, ID: id})
	}()

	return id, nil
}

func (c *Client) allocID() uint16 {
	for {
		id := uint16(c.nextID.Add(1))
		if id != 0 {
			return id
		}
	}
}

// Close disconnects from the broker and stops the connection manager.
func (c *Client) Close() error {
	defer c.cancel()
	cm := c.cm.Load()
	if cm == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := cm.Disconnect(ctx); err != nil {
		// Disconnecting while the link is down is expected during shutdown.
		if logger := c.getLogger(); logger != nil {
			logger.Debug("mqtt5 disconnect", "error", err)
		}
	}
	return nil
}

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
