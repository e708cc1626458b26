package influxdb

import (
	"context"
	"net"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// Measurement names.
const (
	measurementCommand = "command_outcome"
	measurementSession = "session_state"
	measurementLink    = "link"
)

// Record implements command.Recorder: one point per publish attempt.
func (c *Client) Record(_ context.Context, o command.Outcome) {
	tags := map[string]string{
		"device": c.device,
		"result": string(o.Result),
		"topic":  o.Topic,
	}
	if o.Command != "" {
		tags["command"] = string(o.Command)
	}
	if o.Source != "" {
		tags["source"] = o.Source
	}
	if o.Reason != "" {
		tags["reason"] = o.Reason
	}

	fields := map[string]any{
		"count":   1,
		"payload": o.Payload,
	}
	if o.MessageID != 0 {
		fields["message_id"] = int64(o.MessageID)
	}

	at := o.At
	if at.IsZero() {
		at = c.now()
	}
	c.write(measurementCommand, tags, fields, at)
}

// WriteSessionState records a supervisor state transition.
// The numeric field follows session.State so dashboards can plot it.
func (c *Client) WriteSessionState(state session.State) {
	c.write(measurementSession,
		map[string]string{"device": c.device, "state": state.String()},
		map[string]any{"value": int64(state), "live": state == session.Live},
		c.now(),
	)
}

// WriteLinkReady records the moment the link first became usable.
func (c *Client) WriteLinkReady(ip net.IP) {
	c.write(measurementLink,
		map[string]string{"device": c.device},
		map[string]any{"ready": true, "address": ip.String()},
		c.now(),
	)
}

func (c *Client) write(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
