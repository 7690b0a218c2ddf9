// Package dwc2 implements the host channel engine of a Synopsys DesignWare
// USB 2.0 OTG controller operating in slave (FIFO) mode.
//
// The engine multiplexes the controller's small pool of host channels across
// any number of endpoints opened by the host stack. Transfers are programmed
// from task context with [HCD.Submit] and [HCD.SendSetup]; everything after
// that is driven by [HCD.HandleInterrupt], which runs the per-channel state
// machine, streams payload through the shared FIFOs, and reports completions
// through the [hal.EventHandler] given in [Config].
//
// # Register Access
//
// The controller is reached through a [Bus], a 32-bit register window whose
// offsets are defined in package reg. On hardware the Bus is a thin wrapper
// over volatile loads and stores; tests and the dwc2sim command use the
// in-memory controller from package sim.
//
// # Critical Sections
//
// All shared state is owned by a single [HCD]. Task-context calls and the
// interrupt dispatcher serialize through an [IRQ], which on bare metal masks
// the controller interrupt and on hosted systems is a mutex. Events raised
// while the section is held are delivered after it is released, so the
// event handler may call back into the HCD.
//
// # Basic Usage
//
//	hcd, err := dwc2.New(bus, dwc2.Config{
//	    OnEvent: func(ev hal.Event) { ... },
//	})
//	if err != nil {
//	    return err
//	}
//	hcd.OpenEndpoint(addr, &hal.EndpointDescriptor{Address: 0x81, Attributes: 0x02, MaxPacketSize: 64}, route)
//	hcd.Submit(addr, 0x81, buf)
//
//	// from the controller ISR:
//	hcd.HandleInterrupt(true)
package dwc2
