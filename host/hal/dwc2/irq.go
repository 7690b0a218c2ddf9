package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// HandleInterrupt services every pending, unmasked controller interrupt.
// Call it from the controller ISR with inISR set, or from a polling loop.
//
// Interrupt hierarchy:
//
//	HCINTn -> HAINT.CHn -> GINTSTS.HChInt
//	HPRT   ------------->  GINTSTS.PortInt
//	GINTSTS.NPTxFEmp, GINTSTS.PTxFEmp, GINTSTS.RxFLvl
func (h *HCD) HandleInterrupt(inISR bool) {
	s := h.enter()
	defer h.exit(s)

	status := h.read(reg.GINTSTS) & h.read(reg.GINTMSK)

	if status&reg.GINTSTSConIDChng != 0 {
		h.write(reg.GINTSTS, reg.GINTSTSConIDChng)
	}

	if status&reg.GINTSTSPortInt != 0 {
		// Sources are cleared in HPRT.
		h.handlePortInterrupt(inISR)
	}

	if status&reg.GINTSTSHChInt != 0 {
		// Sources are cleared in HCINTn.
		h.handleChannelInterrupt(inISR)
	}

	// FIFO-empty bits are read-only and drop when the FIFO is written.
	if status&reg.GINTSTSNPTxFEmp != 0 && !h.handleTxFIFOEmpty(false) {
		h.clear(reg.GINTMSK, reg.GINTSTSNPTxFEmp)
	}
	if status&reg.GINTSTSPTxFEmp != 0 && !h.handleTxFIFOEmpty(true) {
		h.clear(reg.GINTMSK, reg.GINTSTSPTxFEmp)
	}

	if status&reg.GINTSTSRxFLvl != 0 {
		h.clear(reg.GINTMSK, reg.GINTSTSRxFLvl)
		for h.read(reg.GINTSTS)&reg.GINTSTSRxFLvl != 0 {
			h.handleRxStatus()
		}
		h.set(reg.GINTMSK, reg.GINTSTSRxFLvl)
	}
}

// handleChannelInterrupt dispatches every flagged channel in increasing
// channel order.
func (h *HCD) handleChannelInterrupt(inISR bool) {
	haint := h.read(reg.HAINT)
	for ch := 0; ch < h.channelCount; ch++ {
		if haint&(1<<uint(ch)) != 0 {
			h.handleChannel(ch, inISR)
		}
	}
}

// handleChannel runs the state machine of one channel against its pending,
// unmasked interrupt bits.
func (h *HCD) handleChannel(ch int, inISR bool) {
	raw := h.read(reg.HCINT(ch))
	mask := h.read(reg.HCINTMSK(ch))
	hcint := raw & mask
	char := reg.HCChar(h.read(reg.HCCHAR(ch)))
	c := &h.channels[ch]

	// Everything observed is acknowledged, masked bits included, so a stale
	// ACK cannot surface once ACK is unmasked.
	ack := raw

	if c.state == channelUnallocated {
		pkg.LogDebug(pkg.ComponentChannel, "interrupt on idle channel",
			"ch", ch,
			"hcint", hcint)
		h.clear(reg.HAINTMSK, 1<<uint(ch))
		h.write(reg.HCINT(ch), ack)
		return
	}

	result := pkg.ResultInvalid
	done := false    // reclaim the channel after dispatch
	rearm := false   // re-enable the channel once acknowledged
	halt := false    // the halt was handled in this pass
	aborted := false // an aborted transfer ended without a result

	switch {
	case hcint&reg.HCINTXferComplete != 0:
		result = pkg.ResultSuccess
		mask &^= reg.HCINTACK
		done = true

	case hcint&reg.HCINTStall != 0:
		result = pkg.ResultStalled
		done = h.stop(ch, char, raw)

	case hcint&(reg.HCINTBabbleErr|reg.HCINTDataToggleErr) != 0:
		result = pkg.ResultFailed
		done = h.stop(ch, char, raw)

	case hcint&(reg.HCINTNAK|reg.HCINTXactErr|reg.HCINTNYET) != 0:
		// OUT channels are not rewound. A packet already counted out of
		// the FIFO is lost once the channel halts, so an OUT transfer that
		// halts here with nothing left to write stalls until aborted.
		// IN tokens are reissued here until data arrives, since the host
		// stack submits once per transfer.
		if char.EPDirIn() && hcint&reg.HCINTNAK != 0 && c.state == channelActive {
			if h.requestQueueAvail(char.Periodic()) > 0 {
				rearm = true
				h.metrics.nakRetries.Inc()
			} else {
				pkg.LogDebug(pkg.ComponentChannel, "request queue full on NAK retry", "ch", ch)
				result = pkg.ResultFailed
				done = true
			}
		}
		if hcint&reg.HCINTXactErr != 0 {
			c.errCount++
			mask |= reg.HCINTACK | reg.HCINTChHalted
			h.metrics.xactErrors.Inc()
			pkg.LogDebug(pkg.ComponentChannel, "transaction error",
				"ch", ch,
				"count", c.errCount)
		} else {
			c.errCount = 0
		}

	case hcint&reg.HCINTChHalted != 0:
		halt = true
		switch {
		case c.state == channelDisabling:
			aborted = c.aborted
			done = true
		case c.errCount >= errorMax:
			pkg.LogDebug(pkg.ComponentChannel, "too many transaction errors",
				"ch", ch,
				"count", c.errCount)
			result = pkg.ResultFailed
			done = true
		case h.requestQueueAvail(char.Periodic()) > 0:
			// TODO: issue PING before resuming high-speed OUT transfers.
			rearm = true
		default:
			result = pkg.ResultFailed
			done = true
		}

	case hcint&reg.HCINTACK != 0:
		c.errCount = 0
		mask &^= reg.HCINTACK
	}

	if c.state == channelDisabling {
		mask |= reg.HCINTChHalted
	}
	// A halt behind a higher-priority bit is handled on the next pass.
	if !halt && mask&reg.HCINTChHalted != 0 {
		ack &^= reg.HCINTChHalted
	}
	if done {
		ack = raw
	}
	h.write(reg.HCINTMSK(ch), mask)
	h.write(reg.HCINT(ch), ack)

	if rearm {
		char.SetDisable(false)
		char.SetEnable(true)
		h.write(reg.HCCHAR(ch), uint32(char))
		if !char.EPDirIn() && c.remaining > 0 {
			h.set(reg.GINTMSK, txFIFOEmptyBit(char.Periodic()))
		}
	}

	dir := hal.DirOut
	if char.EPDirIn() {
		dir = hal.DirIn
	}
	if result != pkg.ResultInvalid {
		c.aborted = false
		h.metrics.transfers.WithLabelValues(result.String()).Inc()
		h.raise(hal.Event{
			Type:     hal.EventXferComplete,
			Addr:     hal.DeviceAddress(char.DevAddr()),
			Endpoint: hal.EndpointAddress(char.EPNum(), dir),
			Length:   c.requested,
			Result:   result,
			InISR:    inISR,
		})
		pkg.LogDebug(pkg.ComponentChannel, "transfer complete",
			"ch", ch,
			"addr", char.DevAddr(),
			"ep", hal.EndpointAddress(char.EPNum(), dir),
			"result", result)
	}
	if aborted {
		h.raise(hal.Event{
			Type:     hal.EventXferAborted,
			Addr:     hal.DeviceAddress(char.DevAddr()),
			Endpoint: hal.EndpointAddress(char.EPNum(), dir),
			Length:   c.requested,
			InISR:    inISR,
		})
	}
	if done {
		h.reclaim(ch)
	}
}

// stop ends a failed transfer on ch. The channel is disabled and reclaimed
// at its halt; stop returns true when it must be reclaimed now instead,
// because the controller already halted it or the disable cannot be queued.
func (h *HCD) stop(ch int, char reg.HCChar, raw uint32) bool {
	if raw&reg.HCINTChHalted != 0 {
		return true
	}
	if !h.requestDisable(ch, char) {
		pkg.LogDebug(pkg.ComponentChannel, "request queue full on disable", "ch", ch)
		return true
	}
	return false
}
