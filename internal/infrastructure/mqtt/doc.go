// Package mqtt provides the MQTT 3.1.1 session handle for tankbot.
//
// The Client wraps paho.mqtt.golang and implements session.Client:
//   - New validates the broker URI and prepares options without connecting
//   - Start connects in the background with ConnectRetry and AutoReconnect
//   - OnConnect and ConnectionLost become Connected and Disconnected events
//   - Publish returns paho's message ID and reports completion as an event
//
// # Usage
//
//	sup := session.New(cfg.MQTT, mqtt.NewSession, monitor, log)
//	go sup.Run(ctx)
//
// # Security Considerations
//
//   - mqtts://, ssl://, tls:// and wss:// broker URIs enable TLS 1.2+
//   - Credentials are sent as given; anonymous access is allowed when unset
//
// See internal/infrastructure/mqtt5 for the MQTT v5 handle.
package mqtt
