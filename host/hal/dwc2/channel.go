package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// channelState is the lifecycle state of a host channel.
type channelState uint8

const (
	channelUnallocated channelState = iota
	channelActive
	channelDisabling // disable requested, reclaimed at the halt
)

// String returns the state name.
func (s channelState) String() string {
	switch s {
	case channelUnallocated:
		return "unallocated"
	case channelActive:
		return "active"
	case channelDisabling:
		return "disabling"
	default:
		return "unknown"
	}
}

// channel holds the working state of the transfer bound to a host channel.
type channel struct {
	state    channelState
	errCount uint8
	aborted  bool // disabled by Abort with no result reported yet

	buf       []byte // caller's buffer
	cursor    int    // next byte of buf to move
	remaining int    // bytes still expected (IN) or still to write (OUT)
	requested int    // length given at submission
}

// allocChannel binds the first unallocated channel. Callers hold the
// critical section.
func (h *HCD) allocChannel() (int, bool) {
	for ch := 0; ch < h.channelCount; ch++ {
		c := &h.channels[ch]
		if c.state == channelUnallocated {
			*c = channel{state: channelActive}
			h.metrics.channelAllocs.Inc()
			h.metrics.activeChannels.Inc()
			return ch, true
		}
	}
	h.metrics.channelExhausted.Inc()
	return 0, false
}

// freeChannel returns ch to the pool.
func (h *HCD) freeChannel(ch int) {
	if h.channels[ch].state == channelUnallocated {
		return
	}
	h.channels[ch] = channel{}
	h.metrics.activeChannels.Dec()
}

// reclaim removes ch from the aggregate interrupt mask and frees it.
func (h *HCD) reclaim(ch int) {
	h.clear(reg.HAINTMSK, 1<<uint(ch))
	h.freeChannel(ch)
	pkg.LogDebug(pkg.ComponentChannel, "channel reclaimed", "ch", ch)
}

// findActiveChannel returns the allocated channel programmed for the given
// endpoint, preferring an active channel over one already disabling.
// Endpoint 0 matches either direction.
func (h *HCD) findActiveChannel(addr hal.DeviceAddress, num uint8, dir hal.Direction) (int, bool) {
	disabling, found := 0, false
	for ch := 0; ch < h.channelCount; ch++ {
		state := h.channels[ch].state
		if state == channelUnallocated {
			continue
		}
		char := reg.HCChar(h.read(reg.HCCHAR(ch)))
		if char.DevAddr() != uint8(addr) || char.EPNum() != num ||
			(num != 0 && char.EPDirIn() != (dir == hal.DirIn)) {
			continue
		}
		if state == channelActive {
			return ch, true
		}
		if !found {
			disabling, found = ch, true
		}
	}
	return disabling, found
}

// requestQueueAvail returns the free entries of the periodic or
// non-periodic request queue.
func (h *HCD) requestQueueAvail(periodic bool) uint8 {
	off := uint32(reg.GNPTXSTS)
	if periodic {
		off = reg.HPTXSTS
	}
	return reg.TxSts(h.read(off)).QueueSpace()
}

// requestDisable asks the controller to halt ch. The channel is reclaimed
// when the halt is reported. It returns false when the request queue has no
// room for the disable.
func (h *HCD) requestDisable(ch int, char reg.HCChar) bool {
	if h.requestQueueAvail(char.Periodic()) == 0 {
		return false
	}
	h.set(reg.HCINTMSK(ch), reg.HCINTChHalted)
	h.set(reg.HCCHAR(ch), reg.HCCHARChDis)
	h.channels[ch].state = channelDisabling
	return true
}
