package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/link"
)

// Source tags invocations made over HTTP.
const Source = "api"

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Timestamp     string        `json:"timestamp"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Device        DeviceInfo    `json:"device"`
	Link          *link.Status  `json:"link,omitempty"`
	Session       string        `json:"session"`
	Publishes     command.Stats `json:"publishes"`
	WSClients     int           `json:"websocket_clients"`
}

// DeviceInfo identifies the robot.
type DeviceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// handleListCommands returns the command table.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	cmds := s.commander.Table().Commands()
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": cmds,
		"count":    len(cmds),
	})
}

// handleInvokeCommand publishes the payload bound to {name}.
//
// A known command is always accepted, whether or not the message reached
// the broker; delivery is reported on the WebSocket and in the audit trail.
func (s *Server) handleInvokeCommand(w http.ResponseWriter, r *http.Request) {
	name := command.Name(chi.URLParam(r, "name"))

	ctx := command.WithSource(r.Context(), Source)
	if err := s.commander.Invoke(ctx, name); err != nil {
		if errors.Is(err, command.ErrUnknownCommand) {
			writeNotFound(w, "unknown command: "+string(name))
			return
		}
		s.logger.Error("invoking command", "command", string(name), "error", err)
		writeInternalError(w, "failed to invoke command")
		return
	}

	s.logger.Info("command invoked",
		"command", string(name),
		"subject", subjectFrom(r.Context()),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"command": name,
		"status":  "accepted",
	})
}

// handleStatus reports link readiness, session state and publish counters.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Device:        DeviceInfo{Name: s.device.Name, Description: s.device.Description},
		Session:       "uninitialized",
		Publishes:     s.commander.Stats(),
	}
	if s.link != nil {
		st := s.link.Status()
		resp.Link = &st
	}
	if s.session != nil {
		resp.Session = s.session.State().String()
	}
	if s.hub != nil {
		resp.WSClients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
