package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive at zero.
	defaultKeepAlive = 60 * time.Second

	// defaultRetryInterval and defaultMaxReconnect apply when reconnect delays are unset.
	defaultRetryInterval = 1 * time.Second
	defaultMaxReconnect  = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// secureSchemes are broker URI schemes that require TLS.
var secureSchemes = map[string]bool{
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"wss":   true,
}

// supportedSchemes are broker URI schemes paho accepts.
var supportedSchemes = map[string]bool{
	"mqtt":  true,
	"tcp":   true,
	"ws":    true,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"wss":   true,
}

// parseBrokerURI validates the broker URI and reports whether it needs TLS.
func parseBrokerURI(raw string) (*url.URL, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidBroker, err)
	}
	if !supportedSchemes[u.Scheme] {
		return nil, false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidBroker, u.Scheme)
	}
	if u.Host == "" {
		return nil, false, fmt.Errorf("%w: missing host in %q", ErrInvalidBroker, raw)
	}
	return u, secureSchemes[u.Scheme], nil
}

// buildClientOptions creates paho options from the MQTT config.
//
// Connection is retried in the background from the first attempt and the
// client reconnects on its own after a drop, so Connect never blocks the
// caller waiting for the broker.
func buildClientOptions(cfg config.MQTTConfig) (*pahomqtt.ClientOptions, error) {
	u, secure, err := parseBrokerURI(cfg.Broker.URI)
	if err != nil {
		return nil, err
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(u.String())
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetOrderMatters(false)

	retry := defaultRetryInterval
	if cfg.Reconnect.InitialDelay > 0 {
		retry = time.Duration(cfg.Reconnect.InitialDelay) * time.Second
	}
	maxReconnect := defaultMaxReconnect
	if cfg.Reconnect.MaxDelay > 0 {
		maxReconnect = time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(retry)
	opts.SetMaxReconnectInterval(maxReconnect)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := defaultKeepAlive
	if cfg.KeepAlive > 0 {
		keepAlive = time.Duration(cfg.KeepAlive) * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if secure {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts, nil
}
