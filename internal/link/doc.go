// Package link watches the network link and signals when it is usable.
//
// A Monitor consumes three events: StationStarted, StationDisconnected and
// AddressAcquired. The first two issue connect requests through a Driver;
// the last latches a readiness signal that stays set for the life of the
// process. The session supervisor blocks on that signal before it touches
// the broker.
//
// Reconnection is unconditional and unlimited. The delay between attempts is
// a BackoffConfig, zero by default, so a dead link is retried immediately on
// every disconnect unless an operator configures otherwise.
//
// Events come from a Source. InterfaceSource polls a host interface;
// embedded ports can feed Monitor.OnLinkEvent from their own event loop.
//
//	mon := link.NewMonitor(link.NewExecDriver(cmd, 10*time.Second), link.ImmediateBackoff(), log)
//	go mon.Watch(ctx, &link.InterfaceSource{Name: "wlan0"})
//	<-mon.Ready()
package link
