package influxdb

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/infrastructure/config"
	"github.com/nerrad567/tankbot-core/internal/session"
)

// captureWriter keeps every point written.
type captureWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *captureWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *captureWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func tagMap(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func fieldMap(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestRecord_CommandOutcome(t *testing.T) {
	w := &captureWriter{}
	c := newClient(config.InfluxDBConfig{Enabled: true}, "RobotMqtt", w)
	at := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	c.Record(context.Background(), command.Outcome{
		Command:   command.Dance,
		Source:    "api",
		Payload:   "dance",
		Topic:     "tankrobot-topic",
		Result:    command.ResultPublished,
		MessageID: 12,
		At:        at,
	})

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != measurementCommand {
		t.Errorf("measurement = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("time = %v, want %v", p.Time(), at)
	}
	tags := tagMap(p)
	if tags["command"] != "Dance" || tags["result"] != "published" || tags["source"] != "api" || tags["device"] != "RobotMqtt" {
		t.Errorf("tags = %v", tags)
	}
	if _, ok := tags["reason"]; ok {
		t.Error("published outcome should not carry a reason tag")
	}
	fields := fieldMap(p)
	if fields["message_id"] != int64(12) || fields["payload"] != "dance" {
		t.Errorf("fields = %v", fields)
	}
}

func TestRecord_DroppedOutcome(t *testing.T) {
	w := &captureWriter{}
	c := newClient(config.InfluxDBConfig{Enabled: true}, "RobotMqtt", w)

	c.Record(context.Background(), command.Outcome{
		Payload: "grab",
		Topic:   "tankrobot-topic",
		Result:  command.ResultDropped,
		Reason:  "not_connected",
	})

	tags := tagMap(w.points[0])
	if tags["reason"] != "not_connected" || tags["result"] != "dropped" {
		t.Errorf("tags = %v", tags)
	}
	if _, ok := fieldMap(w.points[0])["message_id"]; ok {
		t.Error("dropped outcome should not carry a message id")
	}
}

func TestWriteSessionStateAndLink(t *testing.T) {
	w := &captureWriter{}
	c := newClient(config.InfluxDBConfig{Enabled: true}, "RobotMqtt", w)

	c.WriteSessionState(session.Live)
	c.WriteLinkReady(net.IPv4(192, 168, 1, 50))

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	if w.points[0].Name() != measurementSession || tagMap(w.points[0])["state"] != "live" {
		t.Errorf("session point = %s %v", w.points[0].Name(), tagMap(w.points[0]))
	}
	if fieldMap(w.points[0])["live"] != true {
		t.Error("live field should be true")
	}
	if fieldMap(w.points[1])["address"] != "192.168.1.50" {
		t.Errorf("link fields = %v", fieldMap(w.points[1]))
	}
}

func TestClose_StopsWrites(t *testing.T) {
	w := &captureWriter{}
	c := newClient(config.InfluxDBConfig{Enabled: true}, "RobotMqtt", w)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	c.WriteSessionState(session.Starting)
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Error("writes after Close should be dropped")
	}

	// Second close is a no-op.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != ErrNotConnected {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newClient(config.InfluxDBConfig{Enabled: true}, "RobotMqtt", &captureWriter{})
	var got []error
	c.SetOnError(func(err error) { got = append(got, err) })

	ch := make(chan error, 2)
	ch <- context.DeadlineExceeded
	ch <- context.Canceled
	close(ch)
	c.handleWriteErrors(ch)

	if len(got) != 2 {
		t.Errorf("callback calls = %d, want 2", len(got))
	}
}
