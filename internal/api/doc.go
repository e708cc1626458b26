// Package api implements the HTTP REST API and WebSocket server for tankbot.
//
// This package provides:
//   - REST endpoints to list and invoke robot commands
//   - Status and audit trail queries
//   - WebSocket hub broadcasting session, link and command events
//   - Prometheus exposition on /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Security
//
// Command invocation requires an HS256 bearer token when
// security.jwt.secret is set. Read-only endpoints are open.
//
// # Graceful Degradation
//
// The server runs before the broker session is live. Invocations made
// while the session is down are accepted and dropped by the publisher;
// the caller still gets 202 Accepted.
package api
