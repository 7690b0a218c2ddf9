package dwc2

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// Capacity limits.
const (
	// EndpointMax is the number of endpoint slots.
	EndpointMax = 16

	// ChannelCountMax caps the number of host channels used, regardless of
	// what the controller reports.
	ChannelCountMax = 16

	// errorMax is the number of consecutive transaction errors after which a
	// transfer fails at the next channel halt.
	errorMax = 3
)

// Config holds the runtime collaborators of an HCD.
type Config struct {
	// Port is the root hub port number reported in events.
	Port uint8

	// IRQ guards HCD state. Nil selects a mutex.
	IRQ IRQ

	// OnEvent receives attach, remove, and transfer-complete events.
	OnEvent hal.EventHandler

	// Registerer receives the HCD metrics. Nil disables registration.
	Registerer prometheus.Registerer
}

// HCD is the host channel engine of one DWC2 controller.
type HCD struct {
	bus     Bus
	irq     IRQ
	port    uint8
	onEvent hal.EventHandler
	metrics *metrics

	channelCount int
	highSpeed    bool

	endpoints [EndpointMax]endpoint
	channels  [ChannelCountMax]channel

	// Events raised inside the critical section, delivered on exit.
	events []hal.Event
}

// Verify interface compliance at compile time.
var _ hal.HCD = (*HCD)(nil)

// New creates an HCD for the controller behind bus. The controller must
// already be in host mode with its FIFOs sized. New unmasks the interrupt
// sources the engine services but leaves the global interrupt disabled; call
// EnableInterrupts when the ISR is installed.
func New(bus Bus, cfg Config) (*HCD, error) {
	if bus == nil {
		return nil, pkg.ErrInvalidParameter
	}
	h := &HCD{
		bus:     bus,
		irq:     cfg.IRQ,
		port:    cfg.Port,
		onEvent: cfg.OnEvent,
		metrics: newMetrics(cfg.Registerer),
	}
	if h.irq == nil {
		h.irq = &mutexIRQ{}
	}

	hw := reg.GHWCfg2(bus.Read(reg.GHWCFG2))
	h.channelCount = min(int(hw.NumHostChannels())+1, ChannelCountMax)
	h.highSpeed = hw.HSPHYType() != reg.HSPHYNotSupported
	if hw.Arch() == reg.ArchInternalDMA {
		pkg.LogInfo(pkg.ComponentHCD, "internal DMA available, using slave mode")
	}

	h.write(reg.HAINTMSK, 0)
	h.write(reg.GINTSTS, reg.GINTSTSConIDChng|reg.GINTSTSDisconnInt)
	h.write(reg.GINTMSK, reg.GINTSTSConIDChng|reg.GINTSTSPortInt|
		reg.GINTSTSHChInt|reg.GINTSTSRxFLvl)

	pkg.LogDebug(pkg.ComponentHCD, "controller ready",
		"channels", h.channelCount,
		"highSpeed", h.highSpeed)

	return h, nil
}

// ChannelCount returns the number of host channels in use.
func (h *HCD) ChannelCount() int {
	return h.channelCount
}

// enter begins a critical section.
func (h *HCD) enter() IRQState {
	return h.irq.Disable()
}

// exit ends a critical section and delivers the events it raised.
func (h *HCD) exit(s IRQState) {
	events := h.events
	h.events = nil
	h.irq.Restore(s)
	if h.onEvent == nil {
		return
	}
	for _, ev := range events {
		h.onEvent(ev)
	}
}

// raise queues an event for delivery when the critical section ends.
func (h *HCD) raise(ev hal.Event) {
	ev.Port = h.port
	h.events = append(h.events, ev)
}
