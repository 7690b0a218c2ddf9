package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// handleRxStatus pops one entry from the receive status queue and moves the
// packet it describes out of the receive FIFO.
func (h *HCD) handleRxStatus() {
	sts := reg.GRxSts(h.read(reg.GRXSTSP))
	ch := sts.Channel()

	switch sts.PacketStatus() {
	case reg.PktStsInData:
		n := int(sts.ByteCount())
		if ch >= h.channelCount || h.channels[ch].state == channelUnallocated {
			pkg.LogDebug(pkg.ComponentFIFO, "dropping data for idle channel",
				"ch", ch,
				"len", n)
			h.readPacket(nil, n)
			return
		}
		c := &h.channels[ch]
		dst := c.buf[c.cursor:]
		if len(dst) > n {
			dst = dst[:n]
		}
		h.readPacket(dst, n)
		c.cursor += len(dst)
		h.metrics.fifoBytes.WithLabelValues("in").Add(float64(n))

		// A short packet ends the transfer; account for a whole packet so no
		// further data is expected.
		mps := int(reg.HCChar(h.read(reg.HCCHAR(ch))).EPSize())
		if n < mps {
			c.remaining = max(c.remaining-mps, 0)
		} else {
			c.remaining = max(c.remaining-n, 0)
		}

	case reg.PktStsInComplete:
		// The controller raises XferComplete on the channel once this entry
		// is popped.

	case reg.PktStsDataToggleErr:
		// The channel's DataToggleErr interrupt fails the transfer.
		h.metrics.toggleErrors.Inc()
		pkg.LogError(pkg.ComponentFIFO, "data toggle mismatch", "ch", ch)

	case reg.PktStsChHalted:
		// Reported through HCINT.ChHalted.

	default:
	}
}

// handleTxFIFOEmpty writes pending OUT packets of the periodic or
// non-periodic class into the transmit FIFO. It returns true while a packet
// could not be written for lack of FIFO space or request queue entries, in
// which case the FIFO-empty interrupt must stay unmasked.
func (h *HCD) handleTxFIFOEmpty(periodic bool) bool {
	stsOff := uint32(reg.GNPTXSTS)
	if periodic {
		stsOff = reg.HPTXSTS
	}

	for ch := 0; ch < h.channelCount; ch++ {
		c := &h.channels[ch]
		if c.state != channelActive || c.remaining == 0 {
			continue
		}
		char := reg.HCChar(h.read(reg.HCCHAR(ch)))
		if char.EPDirIn() || char.Periodic() != periodic {
			continue
		}
		mps := int(char.EPSize())
		for c.remaining > 0 {
			n := min(c.remaining, mps)

			// The last word of a packet consumes a request queue entry.
			sts := reg.TxSts(h.read(stsOff))
			if int(sts.FIFOSpace()) < (n+3)/4 || sts.QueueSpace() == 0 {
				return true
			}

			h.writePacket(ch, c.buf[c.cursor:c.cursor+n])
			c.cursor += n
			c.remaining -= n
			h.metrics.fifoBytes.WithLabelValues("out").Add(float64(n))
		}
	}

	return false
}

// readPacket reads n bytes from the receive FIFO into dst. Bytes beyond
// len(dst) are drained and dropped.
func (h *HCD) readPacket(dst []byte, n int) {
	for i := 0; i < n; i += 4 {
		w := h.read(reg.FIFO(0))
		for j := 0; j < 4 && i+j < n; j++ {
			if i+j < len(dst) {
				dst[i+j] = byte(w >> (8 * j))
			}
		}
	}
}

// writePacket writes p into the transmit FIFO of ch, one little-endian word
// at a time.
func (h *HCD) writePacket(ch int, p []byte) {
	off := reg.FIFO(ch)
	for i := 0; i < len(p); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(p); j++ {
			w |= uint32(p[i+j]) << (8 * j)
		}
		h.write(off, w)
	}
}
