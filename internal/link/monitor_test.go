package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeDriver counts connect requests.
type fakeDriver struct {
	calls atomic.Int32
	err   error
}

func (d *fakeDriver) Connect(context.Context) error {
	d.calls.Add(1)
	return d.err
}

func TestMonitor_StationStartedConnects(t *testing.T) {
	drv := &fakeDriver{}
	m := NewMonitor(drv, ImmediateBackoff(), nil)

	m.OnLinkEvent(context.Background(), Event{Kind: StationStarted})

	if got := drv.calls.Load(); got != 1 {
		t.Errorf("Connect calls = %d, want 1", got)
	}
	if m.IsReady() {
		t.Error("IsReady() = true after StationStarted only")
	}
}

func TestMonitor_DisconnectReconnectsEveryTime(t *testing.T) {
	drv := &fakeDriver{err: errors.New("association failed")}
	m := NewMonitor(drv, ImmediateBackoff(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.OnLinkEvent(ctx, Event{Kind: StationDisconnected})
	}

	if got := drv.calls.Load(); got != 5 {
		t.Errorf("Connect calls = %d, want 5", got)
	}
	if got := m.Status().ReconnectAttempts; got != 5 {
		t.Errorf("ReconnectAttempts = %d, want 5", got)
	}
}

func TestMonitor_AddressAcquiredLatches(t *testing.T) {
	m := NewMonitor(nil, ImmediateBackoff(), nil)
	ip := net.IPv4(192, 168, 1, 42)

	var readyCalls atomic.Int32
	m.SetOnReady(func(net.IP) { readyCalls.Add(1) })

	m.OnLinkEvent(context.Background(), Event{Kind: AddressAcquired, IP: ip})
	m.OnLinkEvent(context.Background(), Event{Kind: AddressAcquired, IP: ip})

	if !m.IsReady() {
		t.Fatal("IsReady() = false after AddressAcquired")
	}
	if !m.Address().Equal(ip) {
		t.Errorf("Address() = %v, want %v", m.Address(), ip)
	}
	if got := readyCalls.Load(); got != 1 {
		t.Errorf("OnReady called %d times, want 1", got)
	}
}

func TestMonitor_ReadinessIsMonotonic(t *testing.T) {
	m := NewMonitor(&fakeDriver{}, ImmediateBackoff(), nil)
	ctx := context.Background()

	m.OnLinkEvent(ctx, Event{Kind: StationStarted})
	m.OnLinkEvent(ctx, Event{Kind: AddressAcquired, IP: net.IPv4(10, 0, 0, 2)})
	for i := 0; i < 3; i++ {
		m.OnLinkEvent(ctx, Event{Kind: StationDisconnected})
		if !m.IsReady() {
			t.Fatalf("IsReady() = false after disconnect %d", i+1)
		}
	}

	select {
	case <-m.Ready():
	default:
		t.Error("Ready() channel not closed after later disconnects")
	}
}

func TestMonitor_WaitBlocksUntilAddress(t *testing.T) {
	m := NewMonitor(&fakeDriver{}, ImmediateBackoff(), nil)
	m.OnLinkEvent(context.Background(), Event{Kind: StationStarted})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want DeadlineExceeded", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	m.OnLinkEvent(context.Background(), Event{Kind: AddressAcquired, IP: net.IPv4(10, 0, 0, 3)})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after AddressAcquired")
	}
}

func TestMonitor_LateWaitersReturnImmediately(t *testing.T) {
	m := NewMonitor(nil, ImmediateBackoff(), nil)
	m.OnLinkEvent(context.Background(), Event{Kind: AddressAcquired, IP: net.IPv4(10, 0, 0, 4)})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := m.Wait(ctx); err != nil {
				t.Errorf("Wait() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestMonitor_BackoffGrowsAndResets(t *testing.T) {
	m := NewMonitor(&fakeDriver{}, BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
	}, nil)

	want := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}
	for i, w := range want {
		got, attempt := m.nextDelay()
		if got != w {
			t.Errorf("attempt %d delay = %v, want %v", i+1, got, w)
		}
		if attempt != i+1 {
			t.Errorf("attempt = %d, want %d", attempt, i+1)
		}
	}

	m.OnLinkEvent(context.Background(), Event{Kind: AddressAcquired, IP: net.IPv4(10, 0, 0, 5)})
	if got, _ := m.nextDelay(); got != time.Millisecond {
		t.Errorf("delay after reset = %v, want %v", got, time.Millisecond)
	}
}

func TestMonitor_DisconnectWaitHonoursContext(t *testing.T) {
	drv := &fakeDriver{}
	m := NewMonitor(drv, BackoffConfig{InitialDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.OnLinkEvent(ctx, Event{Kind: StationDisconnected})

	if got := drv.calls.Load(); got != 0 {
		t.Errorf("Connect calls = %d, want 0 when context cancelled during backoff", got)
	}
}

func TestEventKind_String(t *testing.T) {
	tests := map[EventKind]string{
		StationStarted:      "station_started",
		StationDisconnected: "station_disconnected",
		AddressAcquired:     "address_acquired",
		EventKind(99):       "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("EventKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
