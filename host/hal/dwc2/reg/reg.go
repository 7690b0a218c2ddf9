// Package reg describes the host-mode register map of the Synopsys
// DesignWare USB 2.0 OTG core (DWC2).
//
// Registers are plain uint32 values. Each multi-bit field has a named
// accessor and a pointer-receiver mutator on a typed register value, so
// code never overlays structs on raw words:
//
//	c := reg.HCChar(bus.Read(reg.HCCHAR(ch)))
//	c.SetDevAddr(5)
//	bus.Write(reg.HCCHAR(ch), uint32(c))
package reg

// Global and host register offsets from the controller base.
const (
	GOTGCTL  = 0x000 // OTG control and status
	GAHBCFG  = 0x008 // AHB configuration
	GUSBCFG  = 0x00C // USB configuration
	GINTSTS  = 0x014 // Core interrupt status
	GINTMSK  = 0x018 // Core interrupt mask
	GRXSTSR  = 0x01C // Receive status debug read (R)
	GRXSTSP  = 0x020 // Receive status read and pop (R)
	GNPTXSTS = 0x02C // Non-periodic TX FIFO/queue status (R)
	GHWCFG2  = 0x048 // Hardware configuration 2 (R)
	HCFG     = 0x400 // Host configuration
	HFIR     = 0x404 // Host frame interval
	HFNUM    = 0x408 // Host frame number (R)
	HPTXSTS  = 0x410 // Periodic TX FIFO/queue status (R)
	HAINT    = 0x414 // Host all-channels interrupt (R)
	HAINTMSK = 0x418 // Host all-channels interrupt mask
	HPRT     = 0x440 // Host port control and status
)

// Channel register block layout.
const (
	channelBase   = 0x500
	channelStride = 0x20

	hccharOffset   = 0x00
	hcspltOffset   = 0x04
	hcintOffset    = 0x08
	hcintmskOffset = 0x0C
	hctsizOffset   = 0x10
)

// Data FIFO windows. Reads from any window pop the shared receive FIFO;
// writes to window n push into the transmit FIFO on behalf of channel n.
const (
	fifoBase   = 0x1000
	fifoStride = 0x1000
)

// ChannelMax is the number of channel register blocks in the map.
const ChannelMax = 16

func channelReg(ch int, off uint32) uint32 {
	return channelBase + uint32(ch)*channelStride + off
}

// HCCHAR returns the offset of channel ch's characteristics register.
func HCCHAR(ch int) uint32 { return channelReg(ch, hccharOffset) }

// HCSPLT returns the offset of channel ch's split control register.
func HCSPLT(ch int) uint32 { return channelReg(ch, hcspltOffset) }

// HCINT returns the offset of channel ch's interrupt register (W1C).
func HCINT(ch int) uint32 { return channelReg(ch, hcintOffset) }

// HCINTMSK returns the offset of channel ch's interrupt mask register.
func HCINTMSK(ch int) uint32 { return channelReg(ch, hcintmskOffset) }

// HCTSIZ returns the offset of channel ch's transfer size register.
func HCTSIZ(ch int) uint32 { return channelReg(ch, hctsizOffset) }

// FIFO returns the offset of the data FIFO window for channel ch.
func FIFO(ch int) uint32 { return fifoBase + uint32(ch)*fifoStride }

// FIFOChannel decodes a FIFO window offset. ok is false for offsets outside
// the FIFO windows.
func FIFOChannel(off uint32) (ch int, ok bool) {
	if off < fifoBase || off >= fifoBase+ChannelMax*fifoStride {
		return 0, false
	}
	return int((off - fifoBase) / fifoStride), true
}

// ChannelOf decodes a channel register offset into its channel index and
// register offset within the block. ok is false for other offsets.
func ChannelOf(off uint32) (ch int, sub uint32, ok bool) {
	if off < channelBase || off >= channelBase+ChannelMax*channelStride {
		return 0, 0, false
	}
	rel := off - channelBase
	return int(rel / channelStride), rel % channelStride, true
}

// Channel register block offsets returned by ChannelOf.
const (
	ChannelCharOffset    = hccharOffset
	ChannelSplitOffset   = hcspltOffset
	ChannelIntOffset     = hcintOffset
	ChannelIntMaskOffset = hcintmskOffset
	ChannelSizeOffset    = hctsizOffset
)

func field(v uint32, pos, width uint) uint32 {
	return (v >> pos) & (1<<width - 1)
}

func setField(v uint32, pos, width uint, x uint32) uint32 {
	mask := uint32(1<<width-1) << pos
	return v&^mask | (x<<pos)&mask
}

func bit(v uint32, pos uint) bool { return v&(1<<pos) != 0 }

func setBit(v uint32, pos uint, on bool) uint32 {
	if on {
		return v | 1<<pos
	}
	return v &^ (1 << pos)
}
