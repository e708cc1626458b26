package link

import (
	"context"
	"net"
	"sync"
	"time"
)

// EventKind identifies a network link lifecycle event.
type EventKind int

const (
	// StationStarted is raised once when the network interface comes up.
	StationStarted EventKind = iota + 1

	// StationDisconnected is raised when the link drops or fails to associate.
	StationDisconnected

	// AddressAcquired is raised when the interface obtains a usable address.
	AddressAcquired
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case StationStarted:
		return "station_started"
	case StationDisconnected:
		return "station_disconnected"
	case AddressAcquired:
		return "address_acquired"
	default:
		return "unknown"
	}
}

// Event is a single link lifecycle notification. IP is set only for AddressAcquired.
type Event struct {
	Kind EventKind
	IP   net.IP
}

// Driver issues connect requests to the network layer.
//
// Connect is called on station start and after every disconnect. Errors are
// logged and otherwise ignored; a failed attempt surfaces as the absence of
// a later AddressAcquired event.
type Driver interface {
	Connect(ctx context.Context) error
}

// Logger defines the logging interface for the link monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Status is a snapshot of the link state, suitable for JSON serialisation.
type Status struct {
	Ready             bool   `json:"ready"`
	Address           string `json:"address,omitempty"`
	ReconnectAttempts int    `json:"reconnect_attempts"`
}

// Monitor turns link events into connect requests and a one-way readiness latch.
//
// Readiness is latched on the first AddressAcquired event and never reset:
// later disconnects are handled by reconnecting, transparently to waiters.
//
// All methods are safe for concurrent use.
type Monitor struct {
	driver  Driver
	backoff BackoffConfig
	logger  Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu       sync.Mutex
	addr     net.IP
	delay    time.Duration
	attempts int
	onReady  func(ip net.IP)
}

// NewMonitor creates a Monitor. A nil driver makes connect requests no-ops.
func NewMonitor(driver Driver, backoff BackoffConfig, logger Logger) *Monitor {
	if driver == nil {
		driver = NopDriver{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Monitor{
		driver:  driver,
		backoff: backoff.withDefaults(),
		logger:  logger,
		ready:   make(chan struct{}),
	}
}

// SetOnReady registers a callback invoked once, when readiness latches.
func (m *Monitor) SetOnReady(fn func(ip net.IP)) {
	m.mu.Lock()
	m.onReady = fn
	m.mu.Unlock()
}

// OnLinkEvent consumes a single link event.
//
// StationDisconnected waits the current backoff delay before reconnecting;
// with the default backoff the reconnect is immediate. Attempts are never
// limited. ctx only bounds that wait and the connect request.
func (m *Monitor) OnLinkEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case StationStarted:
		m.logger.Info("station started, connecting")
		m.resetBackoff()
		m.connect(ctx)

	case StationDisconnected:
		delay, attempt := m.nextDelay()
		m.logger.Info("link disconnected, reconnecting",
			"attempt", attempt,
			"delay", delay.String(),
		)
		if delay > 0 && !sleepCtx(ctx, delay) {
			return
		}
		m.connect(ctx)

	case AddressAcquired:
		m.resetBackoff()
		m.latch(ev.IP)

	default:
		m.logger.Debug("ignoring unknown link event", "kind", int(ev.Kind))
	}
}

// connect issues a connect request, logging failures.
func (m *Monitor) connect(ctx context.Context) {
	if err := m.driver.Connect(ctx); err != nil {
		m.logger.Warn("link connect request failed", "error", err)
	}
}

// latch records the address and marks the link ready. Idempotent.
func (m *Monitor) latch(ip net.IP) {
	m.mu.Lock()
	if ip != nil {
		m.addr = ip
	}
	callback := m.onReady
	m.mu.Unlock()

	m.readyOnce.Do(func() {
		close(m.ready)
		m.logger.Info("link ready", "ip", ipString(ip))
		if callback != nil {
			callback(ip)
		}
	})
}

// nextDelay returns the wait before the next reconnect and the attempt number.
func (m *Monitor) nextDelay() (time.Duration, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.attempts == 1 {
		m.delay = m.backoff.InitialDelay
	} else {
		m.delay = m.backoff.grow(m.delay)
	}
	return m.delay, m.attempts
}

func (m *Monitor) resetBackoff() {
	m.mu.Lock()
	m.attempts = 0
	m.delay = 0
	m.mu.Unlock()
}

// Ready returns a channel that is closed once the link has acquired an address.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

// IsReady reports whether readiness has latched.
func (m *Monitor) IsReady() bool {
	select {
	case <-m.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until the link is ready or ctx is done.
// There is no internal timeout: with context.Background it waits forever.
func (m *Monitor) Wait(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Address returns the most recently acquired address, or nil.
func (m *Monitor) Address() net.IP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Status returns a snapshot of the link state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Ready:             m.IsReady(),
		Address:           ipString(m.addr),
		ReconnectAttempts: m.attempts,
	}
}

// Watch feeds events from src into the monitor until ctx is done or src fails.
func (m *Monitor) Watch(ctx context.Context, src Source) error {
	return src.Run(ctx, m.OnLinkEvent)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
