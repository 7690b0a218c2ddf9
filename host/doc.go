// Package host is a synchronous USB host client layered on a [hal.HCD].
//
// The HCD never blocks: transfers are submitted and their results arrive
// later as transfer-complete events. Host turns that model back into
// blocking calls. It registers a waiter for each submitted transfer, routes
// the HCD's events to the waiters, and returns when the matching completion
// arrives or the context is done.
//
// # Wiring
//
// Host must receive every event the HCD raises. Pass [Host.HandleEvent] as
// the HCD's event handler:
//
//	var h *host.Host
//	hcd, err := dwc2.New(bus, dwc2.Config{
//	    OnEvent: func(ev hal.Event) { h.HandleEvent(ev) },
//	})
//	h = host.New(hcd)
//	hcd.EnableInterrupts()
//
// # Device Management
//
// [Host.WaitDevice] blocks until a device attaches, resets the root port if
// the HCD controls one, and enumerates the device: it reads the device
// descriptor, assigns an address, reads the configuration descriptor set,
// opens every endpoint of the configuration in the HCD, and selects the
// configuration.
//
// # Transfers
//
//	dev, err := h.WaitDevice(ctx)
//	if err != nil {
//	    return err
//	}
//	n, err := dev.Transfer(ctx, 0x02, payload)
//
// A completion reports the length that was requested, not a byte count
// measured on the bus.
package host
