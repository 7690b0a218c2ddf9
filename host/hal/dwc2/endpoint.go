package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// endpoint is one slot of the endpoint table. The characteristics and split
// values are templates copied into a channel at submission; the enable bit
// of char marks the slot open.
type endpoint struct {
	char    reg.HCChar
	split   reg.HCSplt
	nextPID uint8
}

func (e *endpoint) open() bool {
	return e.char.Enable()
}

// matches reports whether the slot belongs to the given endpoint. Endpoint 0
// is bidirectional and matches either direction.
func (e *endpoint) matches(addr hal.DeviceAddress, num uint8, dir hal.Direction) bool {
	return e.open() &&
		e.char.DevAddr() == uint8(addr) &&
		e.char.EPNum() == num &&
		(num == 0 || e.char.EPDirIn() == (dir == hal.DirIn))
}

// advanceToggle moves the data toggle past one submission. Control
// endpoints always continue with DATA1 for their data and status stages.
func (e *endpoint) advanceToggle() {
	if e.nextPID == reg.PIDData0 || e.char.EPNum() == 0 {
		e.nextPID = reg.PIDData1
	} else {
		e.nextPID = reg.PIDData0
	}
}

// OpenEndpoint records an endpoint's negotiated parameters in a free slot.
// Re-opening an endpoint that is already open re-populates its slot.
// It does not touch the controller.
func (h *HCD) OpenEndpoint(addr hal.DeviceAddress, desc *hal.EndpointDescriptor, route hal.Routing) error {
	if desc == nil || desc.PacketSize() == 0 || addr > 127 {
		return pkg.ErrInvalidParameter
	}

	s := h.enter()
	defer h.exit(s)

	slot, ok := h.findEndpoint(addr, desc.Number(), desc.Direction())
	if !ok {
		slot, ok = h.freeEndpoint()
	}
	if !ok {
		pkg.LogDebug(pkg.ComponentEndpoint, "endpoint table full",
			"addr", addr,
			"ep", desc.Address)
		return pkg.ErrNoFreeEndpoint
	}

	var char reg.HCChar
	char.SetEPSize(desc.PacketSize())
	char.SetEPNum(desc.Number())
	char.SetEPDirIn(desc.IsIn())
	char.SetLowSpeed(route.Speed == hal.SpeedLow)
	char.SetEPType(uint8(desc.TransferType()))
	char.SetDevAddr(uint8(addr))
	char.SetEnable(true)

	// Split transactions are not executed; the routing is kept for them.
	var split reg.HCSplt
	split.SetHubAddr(route.HubAddr)
	split.SetHubPort(route.HubPort)

	h.endpoints[slot] = endpoint{
		char:    char,
		split:   split,
		nextPID: reg.PIDData0,
	}

	pkg.LogDebug(pkg.ComponentEndpoint, "endpoint opened",
		"slot", slot,
		"addr", addr,
		"ep", desc.Address,
		"type", desc.TransferType(),
		"mps", desc.PacketSize())

	return nil
}

// FindEndpoint returns the slot holding the given endpoint.
func (h *HCD) FindEndpoint(addr hal.DeviceAddress, num uint8, dir hal.Direction) (int, bool) {
	s := h.enter()
	defer h.exit(s)
	return h.findEndpoint(addr, num, dir)
}

func (h *HCD) findEndpoint(addr hal.DeviceAddress, num uint8, dir hal.Direction) (int, bool) {
	for i := range h.endpoints {
		if h.endpoints[i].matches(addr, num, dir) {
			return i, true
		}
	}
	return 0, false
}

func (h *HCD) freeEndpoint() (int, bool) {
	for i := range h.endpoints {
		if !h.endpoints[i].open() {
			return i, true
		}
	}
	return 0, false
}

// CloseDevice clears every endpoint slot belonging to addr. Channels already
// running for the device are left to finish on their own.
func (h *HCD) CloseDevice(addr hal.DeviceAddress) {
	s := h.enter()
	defer h.exit(s)

	for i := range h.endpoints {
		ep := &h.endpoints[i]
		if ep.open() && ep.char.DevAddr() == uint8(addr) {
			*ep = endpoint{}
		}
	}
	pkg.LogDebug(pkg.ComponentEndpoint, "device closed", "addr", addr)
}

// ClearStall resets the endpoint's data toggle to DATA0. It does not recover
// a halted channel; the host stack clears the device-side halt itself.
func (h *HCD) ClearStall(addr hal.DeviceAddress, epAddr uint8) error {
	num, dir := hal.SplitEndpointAddress(epAddr)

	s := h.enter()
	defer h.exit(s)

	slot, ok := h.findEndpoint(addr, num, dir)
	if !ok {
		return pkg.ErrEndpointNotOpen
	}
	h.endpoints[slot].nextPID = reg.PIDData0
	return nil
}
