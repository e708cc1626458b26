// Package logging provides structured logging for tankbot.
//
// It wraps log/slog so every component logs the same way: JSON in
// production, text for development, with service and version attached to
// every record and a component attribute per subsystem.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("link").Info("address acquired", "ip", ip)
//
// Never log MQTT passwords or JWT secrets.
package logging
