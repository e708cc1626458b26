// Package metrics exposes tankbot counters and gauges in Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/tankbot-core/internal/command"
	"github.com/nerrad567/tankbot-core/internal/session"
)

const namespace = "tankbot"

// Collectors holds every tankbot metric on a private registry.
//
// It implements command.Recorder; session and link gauges are driven by the
// supervisor's state callback and the link monitor's ready callback.
type Collectors struct {
	registry *prometheus.Registry

	publishes     *prometheus.CounterVec
	drops         *prometheus.CounterVec
	sessionState  prometheus.Gauge
	sessionLive   prometheus.Gauge
	transitions   *prometheus.CounterVec
	linkReady     prometheus.Gauge
	dispatchTotal *prometheus.CounterVec
}

// New creates and registers the collectors. Go runtime and process
// collectors are included.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by command and result.",
		}, []string{"command", "result"}),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_dropped_total",
			Help:      "Publishes dropped at the session gate, by reason.",
		}, []string{"reason"}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Session supervisor state (0 uninitialized, 1 starting, 2 live, 3 failed).",
		}),
		sessionLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_connected",
			Help:      "1 while the broker session is connected.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		linkReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_ready",
			Help:      "1 once the network link has acquired an address.",
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_messages_total",
			Help:      "Messages received on the dispatch channel, by outcome.",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		c.publishes,
		c.drops,
		c.sessionState,
		c.sessionLive,
		c.transitions,
		c.linkReady,
		c.dispatchTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Record implements command.Recorder.
func (c *Collectors) Record(_ context.Context, o command.Outcome) {
	name := string(o.Command)
	if name == "" {
		name = "raw"
	}
	c.publishes.WithLabelValues(name, string(o.Result)).Inc()
	if o.Result == command.ResultDropped {
		c.drops.WithLabelValues(o.Reason).Inc()
	}
}

// ObserveSessionState updates the session gauges.
func (c *Collectors) ObserveSessionState(s session.State) {
	c.sessionState.Set(float64(s))
	if s == session.Live {
		c.sessionLive.Set(1)
	} else {
		c.sessionLive.Set(0)
	}
	c.transitions.WithLabelValues(s.String()).Inc()
}

// SetLinkReady marks the link as usable.
func (c *Collectors) SetLinkReady() {
	c.linkReady.Set(1)
}

// ObserveDispatch counts one dispatch channel message.
// outcome is invoked, unknown, malformed or failed.
func (c *Collectors) ObserveDispatch(outcome string) {
	c.dispatchTotal.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
