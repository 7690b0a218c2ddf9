package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// MaxTransferLength is the largest buffer a single submission may carry.
const MaxTransferLength = 0xFFFF

// Submit starts a transfer of buf on an open endpoint. IN transfers fill
// buf; OUT transfers send it. buf must stay untouched until the
// transfer-complete event for the endpoint is delivered.
//
// Submit fails with an error wrapping pkg.ErrResourceExhausted when no
// channel or, for IN transfers, no request queue entry is free. Nothing is
// left allocated in that case.
func (h *HCD) Submit(addr hal.DeviceAddress, epAddr uint8, buf []byte) error {
	num, dir := hal.SplitEndpointAddress(epAddr)

	s := h.enter()
	defer h.exit(s)

	slot, ok := h.findEndpoint(addr, num, dir)
	if !ok {
		return pkg.ErrEndpointNotOpen
	}
	return h.submit(slot, dir, buf)
}

// SendSetup starts the SETUP stage of a control transfer on endpoint 0. The
// endpoint's data toggle is forced to SETUP first and restored if the
// submission fails.
func (h *HCD) SendSetup(addr hal.DeviceAddress, setup *hal.SetupPacket) error {
	if setup == nil {
		return pkg.ErrInvalidParameter
	}
	buf := make([]byte, hal.SetupPacketSize)
	setup.MarshalTo(buf)

	s := h.enter()
	defer h.exit(s)

	slot, ok := h.findEndpoint(addr, 0, hal.DirOut)
	if !ok {
		return pkg.ErrEndpointNotOpen
	}
	ep := &h.endpoints[slot]
	prev := ep.nextPID
	ep.nextPID = reg.PIDSetup
	if err := h.submit(slot, hal.DirOut, buf); err != nil {
		ep.nextPID = prev
		return err
	}
	return nil
}

// submit programs a channel for one transfer on the endpoint in slot.
// Callers hold the critical section.
func (h *HCD) submit(slot int, dir hal.Direction, buf []byte) error {
	ep := &h.endpoints[slot]
	in := dir == hal.DirIn
	periodic := ep.char.Periodic()

	n := len(buf)
	mps := int(ep.char.EPSize())
	packets := (n + mps - 1) / mps
	if packets == 0 {
		packets = 1 // a zero-length packet is still a packet
	}
	if n > MaxTransferLength || packets > reg.MaxPacketCount {
		return pkg.ErrInvalidParameter
	}

	// Nothing is mutated until every resource is known to be available.
	if in && h.requestQueueAvail(periodic) == 0 {
		pkg.LogDebug(pkg.ComponentChannel, "request queue full",
			"addr", ep.char.DevAddr(),
			"ep", ep.char.EPNum(),
			"periodic", periodic)
		return pkg.ErrRequestQueueFull
	}
	ch, ok := h.allocChannel()
	if !ok {
		pkg.LogDebug(pkg.ComponentChannel, "no free channel",
			"addr", ep.char.DevAddr(),
			"ep", ep.char.EPNum())
		return pkg.ErrNoFreeChannel
	}

	var tsiz reg.HCTSiz
	tsiz.SetPID(ep.nextPID)
	tsiz.SetPacketCount(uint16(packets))
	tsiz.SetXferSize(uint32(n))
	h.write(reg.HCTSIZ(ch), uint32(tsiz))
	ep.advanceToggle()

	h.write(reg.HCSPLT(ch), uint32(ep.split))

	char := ep.char
	char.SetOddFrame(h.read(reg.HFNUM)&1 == 0) // next frame
	char.SetEPDirIn(in)                        // control endpoints switch direction
	char.SetEnable(false)
	char.SetDisable(false)
	h.write(reg.HCCHAR(ch), uint32(char))

	c := &h.channels[ch]
	c.buf = buf
	c.remaining = n
	c.requested = n

	mask := uint32(reg.HCINTNAK | reg.HCINTXactErr | reg.HCINTStall |
		reg.HCINTXferComplete | reg.HCINTDataToggleErr)
	if in {
		mask |= reg.HCINTBabbleErr
	} else {
		mask |= reg.HCINTNYET
	}
	h.write(reg.HCINT(ch), ^uint32(0)) // drop stale flags of the last transfer
	h.write(reg.HCINTMSK(ch), mask)

	// An IN channel queues its token as soon as it is enabled. An OUT channel
	// waits for payload, which the FIFO-empty interrupt streams in.
	char.SetEnable(true)
	h.write(reg.HCCHAR(ch), uint32(char))
	if !in && n > 0 {
		h.set(reg.GINTMSK, txFIFOEmptyBit(periodic))
	}

	h.set(reg.HAINTMSK, 1<<uint(ch))

	pkg.LogDebug(pkg.ComponentChannel, "transfer submitted",
		"ch", ch,
		"addr", char.DevAddr(),
		"ep", hal.EndpointAddress(char.EPNum(), dir),
		"len", n,
		"packets", packets,
		"pid", tsiz.PID())

	return nil
}

// Abort requests cancellation of the active transfer on an endpoint. The
// channel is reclaimed when the controller reports it halted, raising
// hal.EventXferAborted instead of a transfer-complete event. A transfer
// that completes first wins the race and reports its result instead, so
// each aborted transfer yields exactly one of the two events.
//
// Abort returns pkg.ErrDisableBusy when the request queue cannot take the
// disable; the caller may retry.
func (h *HCD) Abort(addr hal.DeviceAddress, epAddr uint8) error {
	num, dir := hal.SplitEndpointAddress(epAddr)

	s := h.enter()
	defer h.exit(s)

	if _, ok := h.findEndpoint(addr, num, dir); !ok {
		return pkg.ErrEndpointNotOpen
	}
	ch, ok := h.findActiveChannel(addr, num, dir)
	if !ok {
		return pkg.ErrNothingToAbort
	}
	if h.channels[ch].state == channelDisabling {
		return nil
	}
	char := reg.HCChar(h.read(reg.HCCHAR(ch)))
	if !h.requestDisable(ch, char) {
		return pkg.ErrDisableBusy
	}
	h.channels[ch].aborted = true
	pkg.LogDebug(pkg.ComponentChannel, "abort requested",
		"ch", ch,
		"addr", addr,
		"ep", epAddr)
	return nil
}

func txFIFOEmptyBit(periodic bool) uint32 {
	if periodic {
		return reg.GINTSTSPTxFEmp
	}
	return reg.GINTSTSNPTxFEmp
}
