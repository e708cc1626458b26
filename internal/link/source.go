package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Source produces link events. Run blocks, delivering each event to sink
// in order, until ctx is done.
type Source interface {
	Run(ctx context.Context, sink func(context.Context, Event)) error
}

// Sample is one observation of the host network interface.
type Sample struct {
	Up bool
	IP net.IP // first usable IPv4 address, nil if none
}

// SampleFunc observes the named interface. An empty name means any
// non-loopback interface.
type SampleFunc func(name string) (Sample, error)

// Default InterfaceSource timings.
const (
	defaultPollInterval   = time.Second
	defaultConnectTimeout = 15 * time.Second
)

// InterfaceSource derives link events by polling a host network interface.
//
// It emits StationStarted once, AddressAcquired when a usable address
// appears and StationDisconnected when the address is lost. If no address
// appears within ConnectTimeout of a connect request, StationDisconnected is
// emitted so the monitor retries, the same way a failed association does on
// an embedded Wi-Fi stack.
type InterfaceSource struct {
	Name           string
	PollInterval   time.Duration
	ConnectTimeout time.Duration

	// Sample defaults to SampleInterface. Tests replace it.
	Sample SampleFunc
}

// Run implements Source.
func (s *InterfaceSource) Run(ctx context.Context, sink func(context.Context, Event)) error {
	poll := s.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	connectTimeout := s.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	sample := s.Sample
	if sample == nil {
		sample = SampleInterface
	}

	sink(ctx, Event{Kind: StationStarted})
	requested := time.Now()

	var current net.IP
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		smp, err := sample(s.Name)
		if err != nil && !errors.Is(err, ErrInterfaceNotFound) {
			return fmt.Errorf("sampling interface %q: %w", s.Name, err)
		}

		switch {
		case smp.Up && smp.IP != nil && (current == nil || !current.Equal(smp.IP)):
			current = smp.IP
			sink(ctx, Event{Kind: AddressAcquired, IP: smp.IP})

		case current != nil && (!smp.Up || smp.IP == nil):
			current = nil
			sink(ctx, Event{Kind: StationDisconnected})
			requested = time.Now()

		case current == nil && time.Since(requested) >= connectTimeout:
			sink(ctx, Event{Kind: StationDisconnected})
			requested = time.Now()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SampleInterface reads the state of the named interface from the host.
// With an empty name the first up, non-loopback interface with an IPv4
// address is used.
func SampleInterface(name string) (Sample, error) {
	if name != "" {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
		}
		return sampleOf(iface)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return Sample{}, fmt.Errorf("listing interfaces: %w", err)
	}
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagLoopback != 0 {
			continue
		}
		smp, err := sampleOf(&ifaces[i])
		if err != nil {
			continue
		}
		if smp.Up && smp.IP != nil {
			return smp, nil
		}
	}
	return Sample{}, nil
}

func sampleOf(iface *net.Interface) (Sample, error) {
	smp := Sample{Up: iface.Flags&net.FlagUp != 0}
	addrs, err := iface.Addrs()
	if err != nil {
		return smp, fmt.Errorf("reading addresses of %s: %w", iface.Name, err)
	}
	smp.IP = usableIPv4(addrs)
	return smp, nil
}

// usableIPv4 returns the first IPv4 address that is neither loopback nor link-local.
func usableIPv4(addrs []net.Addr) net.IP {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		ip = ip.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		return ip
	}
	return nil
}
