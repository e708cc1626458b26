// Package influxdb writes tankbot telemetry to InfluxDB 2.x.
//
// Three measurements are produced:
//   - command_outcome: one point per publish attempt, tagged by command,
//     result, source and drop reason
//   - session_state: one point per supervisor transition
//   - link: one point when the network link first becomes ready
//
// The Client implements command.Recorder, so it slots into the publisher's
// recorder fan-out next to the audit repository and Prometheus collectors.
// Writes are batched and non-blocking; a slow or absent server never delays
// a publish.
package influxdb
