package dwc2

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/sim"
)

// recorder collects HCD events.
type recorder struct {
	mu     sync.Mutex
	events []hal.Event
}

func (r *recorder) handle(ev hal.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []hal.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hal.Event(nil), r.events...)
}

func (r *recorder) transfers() []hal.Event {
	return r.ofType(hal.EventXferComplete)
}

func (r *recorder) aborts() []hal.Event {
	return r.ofType(hal.EventXferAborted)
}

func (r *recorder) ofType(typ hal.EventType) []hal.Event {
	var out []hal.Event
	for _, ev := range r.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestHCD(t *testing.T, cfg sim.Config, resp sim.Responder) (*HCD, *sim.Controller, *recorder) {
	t.Helper()
	c := sim.New(cfg, resp)
	rec := &recorder{}
	h, err := New(c, Config{Port: 1, OnEvent: rec.handle})
	require.NoError(t, err)
	return h, c, rec
}

func openEP(t *testing.T, h *HCD, addr hal.DeviceAddress, epAddr uint8, typ hal.TransferType, mps uint16) {
	t.Helper()
	desc := &hal.EndpointDescriptor{
		Address:       epAddr,
		Attributes:    uint8(typ),
		MaxPacketSize: mps,
	}
	require.NoError(t, h.OpenEndpoint(addr, desc, hal.Routing{Speed: hal.SpeedHigh}))
}

// pump services interrupts until none is pending.
func pump(t *testing.T, h *HCD, c *sim.Controller) {
	t.Helper()
	for i := 0; c.Pending(); i++ {
		require.Less(t, i, 64, "interrupts did not settle")
		h.HandleInterrupt(false)
	}
}

func (h *HCD) activeChannels() int {
	n := 0
	for ch := 0; ch < h.channelCount; ch++ {
		if h.channels[ch].state != channelUnallocated {
			n++
		}
	}
	return n
}

func (h *HCD) openEndpoints() int {
	n := 0
	for i := range h.endpoints {
		if h.endpoints[i].open() {
			n++
		}
	}
	return n
}
