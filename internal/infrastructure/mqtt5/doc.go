// Package mqtt5 provides the MQTT v5 session handle for tankbot.
//
// It wraps paho.golang's autopaho connection manager behind session.Client.
// autopaho keeps retrying the initial connection and reconnects after a drop;
// OnConnectionUp and OnConnectionDown become Connected and Disconnected
// session events. Selected with mqtt.protocol: 5.
package mqtt5
