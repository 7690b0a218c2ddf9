package dwc2

import "sync"

// Bus provides 32-bit access to the controller register window. Offsets are
// relative to the controller base and are defined in package reg.
type Bus interface {
	Read(off uint32) uint32
	Write(off uint32, v uint32)
}

// IRQState is the opaque state returned by IRQ.Disable.
type IRQState uintptr

// IRQ provides the critical section guarding HCD state against the
// controller interrupt. Disable must not return while another caller holds
// the section.
type IRQ interface {
	Disable() IRQState
	Restore(IRQState)
}

// mutexIRQ is the IRQ used on hosted systems, where the interrupt handler is
// an ordinary goroutine.
type mutexIRQ struct {
	mu sync.Mutex
}

func (m *mutexIRQ) Disable() IRQState {
	m.mu.Lock()
	return 0
}

func (m *mutexIRQ) Restore(IRQState) {
	m.mu.Unlock()
}

func (h *HCD) read(off uint32) uint32 { return h.bus.Read(off) }

func (h *HCD) write(off, v uint32) { h.bus.Write(off, v) }

func (h *HCD) set(off, bits uint32) { h.bus.Write(off, h.bus.Read(off)|bits) }

func (h *HCD) clear(off, bits uint32) { h.bus.Write(off, h.bus.Read(off)&^bits) }
