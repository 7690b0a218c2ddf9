package sim

import (
	"context"
	"sync"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// Config describes the simulated controller.
type Config struct {
	Channels      int    // host channels, 1 to reg.ChannelMax
	HighSpeed     bool   // controller has a high-speed PHY
	NPTxFIFOWords uint16 // non-periodic transmit FIFO depth
	PTxFIFOWords  uint16 // periodic transmit FIFO depth
	NPQueue       uint8  // non-periodic request queue depth
	PQueue        uint8  // periodic request queue depth
}

// DefaultConfig returns an 8-channel high-speed controller with the FIFO
// and queue depths of a typical core.
func DefaultConfig() Config {
	return Config{
		Channels:      8,
		HighSpeed:     true,
		NPTxFIFOWords: 256,
		PTxFIFOWords:  256,
		NPQueue:       8,
		PQueue:        8,
	}
}

type simChannel struct {
	char    uint32
	split   uint32
	hcint   uint32
	intmsk  uint32
	tsiz    uint32
	enables int

	pid       uint8 // data PID of the next packet
	remaining int   // bytes left in the transfer
	packets   int   // packets left in the transfer
	pending   []byte
	tx        []byte // accepted OUT payload since the last HCTSIZ write
}

// Controller is an in-memory DWC2 register bank. It is safe for concurrent
// use.
type Controller struct {
	mu   sync.Mutex
	cfg  Config
	resp Responder

	regs     map[uint32]uint32 // plain read/write registers
	gintsts  uint32            // latched W1C bits
	hprt     uint32
	devSpeed uint8
	frame    uint32

	npFree, pFree   uint16
	npQueue, pQueue uint8

	rxStatus []reg.GRxSts
	rxData   []uint32

	irq chan struct{} // interrupt line, see Serve

	channels [reg.ChannelMax]simChannel
}

// New creates a Controller. A nil Responder leaves bus traffic to the
// caller, who drives the controller with Raise and PushRx.
func New(cfg Config, resp Responder) *Controller {
	cfg.Channels = max(1, min(cfg.Channels, reg.ChannelMax))
	return &Controller{
		cfg:     cfg,
		resp:    resp,
		regs:    make(map[uint32]uint32),
		npFree:  cfg.NPTxFIFOWords,
		pFree:   cfg.PTxFIFOWords,
		npQueue: cfg.NPQueue,
		pQueue:  cfg.PQueue,
		irq:     make(chan struct{}, 1),
	}
}

// actionKind identifies bus traffic a register write started.
type actionKind uint8

const (
	actionNone actionKind = iota
	actionEnable
	actionOut
)

type action struct {
	kind actionKind
	ch   int
	data []byte
}

// Read implements dwc2.Bus.
func (c *Controller) Read(off uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, sub, ok := reg.ChannelOf(off); ok {
		sc := &c.channels[ch]
		switch sub {
		case reg.ChannelCharOffset:
			return sc.char
		case reg.ChannelSplitOffset:
			return sc.split
		case reg.ChannelIntOffset:
			return sc.hcint
		case reg.ChannelIntMaskOffset:
			return sc.intmsk
		case reg.ChannelSizeOffset:
			return sc.tsiz
		}
		return 0
	}
	if _, ok := reg.FIFOChannel(off); ok {
		if len(c.rxData) == 0 {
			return 0
		}
		w := c.rxData[0]
		c.rxData = c.rxData[1:]
		return w
	}

	switch off {
	case reg.GINTSTS:
		return c.gintstsLocked()
	case reg.GRXSTSR:
		if len(c.rxStatus) == 0 {
			return 0
		}
		return uint32(c.rxStatus[0])
	case reg.GRXSTSP:
		return c.popRxLocked()
	case reg.GNPTXSTS:
		return uint32(reg.MakeTxSts(c.npFree, c.npQueue))
	case reg.HPTXSTS:
		return uint32(reg.MakeTxSts(c.pFree, c.pQueue))
	case reg.GHWCFG2:
		var hw reg.GHWCfg2
		hw.SetArch(reg.ArchSlaveOnly)
		hw.SetNumHostChannels(uint8(c.cfg.Channels - 1))
		hw.SetFSPHYType(reg.FSPHYDedicated)
		if c.cfg.HighSpeed {
			hw.SetHSPHYType(reg.HSPHYUTMI)
		}
		return uint32(hw)
	case reg.HAINT:
		return c.haintLocked()
	case reg.HPRT:
		return c.hprt
	case reg.HFNUM:
		return c.frame & reg.HFNUMFrameNumberMask
	}
	return c.regs[off]
}

// Write implements dwc2.Bus. Bus traffic started by the write is answered
// by the Responder after the controller lock is released.
func (c *Controller) Write(off uint32, v uint32) {
	c.mu.Lock()
	act := c.writeLocked(off, v)
	c.mu.Unlock()

	switch act.kind {
	case actionEnable:
		c.serviceEnable(act.ch)
	case actionOut:
		c.serviceOut(act.ch, act.data)
	}
	c.signal()
}

func (c *Controller) writeLocked(off uint32, v uint32) action {
	if ch, sub, ok := reg.ChannelOf(off); ok {
		return c.writeChannelLocked(ch, sub, v)
	}
	if ch, ok := reg.FIFOChannel(off); ok {
		return c.writeFIFOLocked(ch, v)
	}

	switch off {
	case reg.GINTSTS:
		c.gintsts &^= v
	case reg.HPRT:
		c.writeHPRTLocked(v)
	case reg.GRXSTSR, reg.GRXSTSP, reg.GNPTXSTS, reg.HPTXSTS,
		reg.GHWCFG2, reg.HAINT, reg.HFNUM:
		// read-only
	default:
		c.regs[off] = v
	}
	return action{}
}

func (c *Controller) writeChannelLocked(ch int, sub uint32, v uint32) action {
	sc := &c.channels[ch]
	switch sub {
	case reg.ChannelCharOffset:
		char := reg.HCChar(v)
		switch {
		case char.Disable():
			char.SetDisable(false)
			char.SetEnable(false)
			sc.char = uint32(char)
			sc.pending = nil
			sc.hcint |= reg.HCINTChHalted
		case char.Enable():
			sc.char = v
			sc.enables++
			if char.EPDirIn() || sc.remaining == 0 {
				return action{kind: actionEnable, ch: ch}
			}
		default:
			sc.char = v
		}
	case reg.ChannelSplitOffset:
		sc.split = v
	case reg.ChannelIntOffset:
		sc.hcint &^= v
	case reg.ChannelIntMaskOffset:
		sc.intmsk = v
	case reg.ChannelSizeOffset:
		t := reg.HCTSiz(v)
		sc.tsiz = v
		sc.pid = t.PID()
		sc.remaining = int(t.XferSize())
		sc.packets = int(t.PacketCount())
		sc.pending = nil
		sc.tx = nil
	}
	return action{}
}

func (c *Controller) writeFIFOLocked(ch int, w uint32) action {
	sc := &c.channels[ch]
	char := reg.HCChar(sc.char)
	if !char.Enable() || char.EPDirIn() || sc.remaining == 0 {
		pkg.LogDebug(pkg.ComponentSim, "FIFO write to idle channel dropped", "ch", ch)
		return action{}
	}
	sc.pending = append(sc.pending, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	n := min(sc.remaining, int(char.EPSize()))
	if len(sc.pending) < n {
		return action{}
	}
	p := sc.pending[:n]
	sc.pending = nil
	return action{kind: actionOut, ch: ch, data: p}
}

func (c *Controller) writeHPRTLocked(v uint32) {
	prev := c.hprt
	c.hprt &^= v & (reg.HPRTConnDetect | reg.HPRTEnableChange | reg.HPRTOvrCurrChange)
	if v&reg.HPRTEnable != 0 && c.hprt&reg.HPRTEnable != 0 {
		c.hprt &^= reg.HPRTEnable
		c.hprt |= reg.HPRTEnableChange
	}

	const writable = reg.HPRTReset | reg.HPRTPower | reg.HPRTSuspend | reg.HPRTResume
	c.hprt = c.hprt&^writable | v&writable

	// The port enables at the end of a reset with a device attached.
	if prev&reg.HPRTReset != 0 && v&reg.HPRTReset == 0 && c.hprt&reg.HPRTConnStatus != 0 {
		p := reg.HPrt(c.hprt | reg.HPRTEnable | reg.HPRTEnableChange)
		p.SetSpeed(c.devSpeed)
		c.hprt = uint32(p)
	}
}

func (c *Controller) gintstsLocked() uint32 {
	v := c.gintsts | reg.GINTSTSCurMode
	if len(c.rxStatus) > 0 {
		v |= reg.GINTSTSRxFLvl
	}
	if 2*int(c.npFree) >= int(c.cfg.NPTxFIFOWords) {
		v |= reg.GINTSTSNPTxFEmp
	}
	if 2*int(c.pFree) >= int(c.cfg.PTxFIFOWords) {
		v |= reg.GINTSTSPTxFEmp
	}
	if c.haintLocked()&c.regs[reg.HAINTMSK] != 0 {
		v |= reg.GINTSTSHChInt
	}
	if c.hprt&(reg.HPRTConnDetect|reg.HPRTEnableChange|reg.HPRTOvrCurrChange) != 0 {
		v |= reg.GINTSTSPortInt
	}
	return v
}

func (c *Controller) haintLocked() uint32 {
	var v uint32
	for ch := 0; ch < c.cfg.Channels; ch++ {
		if c.channels[ch].hcint&c.channels[ch].intmsk != 0 {
			v |= 1 << uint(ch)
		}
	}
	return v
}

func (c *Controller) popRxLocked() uint32 {
	if len(c.rxStatus) == 0 {
		return 0
	}
	sts := c.rxStatus[0]
	c.rxStatus = c.rxStatus[1:]
	if sts.PacketStatus() == reg.PktStsInComplete {
		c.channels[sts.Channel()].hcint |= reg.HCINTXferComplete
	}
	return uint32(sts)
}

func (c *Controller) pushRxLocked(ch int, pktSts uint8, data []byte) {
	c.rxStatus = append(c.rxStatus, reg.MakeGRxSts(ch, uint16(len(data)), pktSts))
	for i := 0; i < len(data); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(data); j++ {
			w |= uint32(data[i+j]) << (8 * j)
		}
		c.rxData = append(c.rxData, w)
	}
}

func (c *Controller) token(ch int) Token {
	sc := &c.channels[ch]
	char := reg.HCChar(sc.char)
	return Token{
		Channel:   ch,
		Addr:      char.DevAddr(),
		Endpoint:  char.EPNum(),
		Type:      char.EPType(),
		PID:       sc.pid,
		MaxPacket: int(char.EPSize()),
	}
}

// serviceEnable runs the transactions of a freshly enabled IN channel, or
// the zero-length packet of an OUT channel.
func (c *Controller) serviceEnable(ch int) {
	if c.resp == nil {
		return
	}
	c.mu.Lock()
	in := reg.HCChar(c.channels[ch].char).EPDirIn()
	c.mu.Unlock()

	if !in {
		c.serviceOut(ch, nil)
		return
	}
	for {
		c.mu.Lock()
		tok := c.token(ch)
		c.mu.Unlock()

		data, hs := c.resp.In(tok)

		c.mu.Lock()
		more := c.completeInLocked(ch, data, hs)
		c.mu.Unlock()
		if !more {
			return
		}
	}
}

// completeInLocked applies the device's answer to an IN token. It returns
// true when the channel should issue another token.
func (c *Controller) completeInLocked(ch int, data []byte, hs Handshake) bool {
	sc := &c.channels[ch]
	char := reg.HCChar(sc.char)
	if !char.Enable() {
		return false
	}
	mps := int(char.EPSize())

	switch hs {
	case ACK:
		if len(data) > mps {
			c.haltLocked(ch, reg.HCINTBabbleErr)
			return false
		}
		if len(data) > 0 {
			c.pushRxLocked(ch, reg.PktStsInData, data)
		}
		sc.remaining = max(sc.remaining-len(data), 0)
		sc.packets--
		sc.pid = nextPID(sc.pid)
		sc.hcint |= reg.HCINTACK
		if len(data) < mps || sc.packets <= 0 {
			c.pushRxLocked(ch, reg.PktStsInComplete, nil)
			char.SetEnable(false)
			sc.char = uint32(char)
			return false
		}
		return true
	case NAK:
		sc.hcint |= reg.HCINTNAK
	case STALL:
		c.haltLocked(ch, reg.HCINTStall)
	default:
		c.haltLocked(ch, reg.HCINTXactErr)
	}
	return false
}

// serviceOut hands one OUT packet to the Responder.
func (c *Controller) serviceOut(ch int, data []byte) {
	if c.resp == nil {
		return
	}
	c.mu.Lock()
	tok := c.token(ch)
	c.mu.Unlock()

	hs := c.resp.Out(tok, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	sc := &c.channels[ch]
	char := reg.HCChar(sc.char)
	if !char.Enable() {
		return
	}
	switch hs {
	case ACK:
		sc.tx = append(sc.tx, data...)
		sc.remaining -= len(data)
		sc.packets--
		sc.pid = nextPID(sc.pid)
		sc.hcint |= reg.HCINTACK
		if sc.packets <= 0 || sc.remaining <= 0 {
			char.SetEnable(false)
			sc.char = uint32(char)
			sc.hcint |= reg.HCINTXferComplete
		}
	case NAK:
		// The packet is dropped; the driver does not rewind.
		sc.hcint |= reg.HCINTNAK
	case STALL:
		c.haltLocked(ch, reg.HCINTStall)
	default:
		c.haltLocked(ch, reg.HCINTXactErr)
	}
}

// haltLocked stops ch with the given cause.
func (c *Controller) haltLocked(ch int, cause uint32) {
	sc := &c.channels[ch]
	char := reg.HCChar(sc.char)
	char.SetEnable(false)
	sc.char = uint32(char)
	sc.pending = nil
	sc.hcint |= cause | reg.HCINTChHalted
}

func nextPID(pid uint8) uint8 {
	if pid == reg.PIDData0 {
		return reg.PIDData1
	}
	return reg.PIDData0
}

// Raise sets interrupt bits on a channel, as if the controller had
// reported them.
func (c *Controller) Raise(ch int, bits uint32) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[ch].hcint |= bits
}

// RaiseGlobal latches write-1-to-clear bits in GINTSTS.
func (c *Controller) RaiseGlobal(bits uint32) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gintsts |= bits
}

// PushRx appends a receive status entry for ch and its payload.
func (c *Controller) PushRx(ch int, pktSts uint8, data []byte) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushRxLocked(ch, pktSts, data)
}

// SetRequestQueue sets the free entries of the periodic or non-periodic
// request queue.
func (c *Controller) SetRequestQueue(periodic bool, n uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if periodic {
		c.pQueue = n
	} else {
		c.npQueue = n
	}
}

// SetTxFIFOFree sets the free words of the periodic or non-periodic
// transmit FIFO.
func (c *Controller) SetTxFIFOFree(periodic bool, words uint16) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	if periodic {
		c.pFree = words
	} else {
		c.npFree = words
	}
}

// SetFrame sets the frame number reported in HFNUM.
func (c *Controller) SetFrame(n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = n
}

// Connect attaches a device of the given speed to the root port. The port
// enables at the end of the next bus reset.
func (c *Controller) Connect(speed hal.Speed) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case speed == hal.SpeedHigh && c.cfg.HighSpeed:
		c.devSpeed = reg.HPRTSpeedHigh
	case speed == hal.SpeedLow:
		c.devSpeed = reg.HPRTSpeedLow
	default:
		c.devSpeed = reg.HPRTSpeedFull
	}
	c.hprt |= reg.HPRTConnStatus | reg.HPRTConnDetect
	pkg.LogDebug(pkg.ComponentSim, "device connected", "speed", speed)
}

// Disconnect detaches the device from the root port.
func (c *Controller) Disconnect() {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hprt &^= reg.HPRTConnStatus
	c.hprt |= reg.HPRTConnDetect
	if c.hprt&reg.HPRTEnable != 0 {
		c.hprt &^= reg.HPRTEnable
		c.hprt |= reg.HPRTEnableChange
	}
	c.gintsts |= reg.GINTSTSDisconnInt
	pkg.LogDebug(pkg.ComponentSim, "device disconnected")
}

// OverCurrent toggles the port over-current condition.
func (c *Controller) OverCurrent(active bool) {
	defer c.signal()
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.hprt |= reg.HPRTOvrCurrActive
	} else {
		c.hprt &^= reg.HPRTOvrCurrActive
	}
	c.hprt |= reg.HPRTOvrCurrChange
}

// EnableCount returns how many times ch has been enabled.
func (c *Controller) EnableCount(ch int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[ch].enables
}

// TxData returns the OUT payload the device accepted on ch since the
// channel was last programmed.
func (c *Controller) TxData(ch int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.channels[ch].tx...)
}

// Pending reports whether an unmasked controller interrupt is pending.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gintstsLocked()&c.regs[reg.GINTMSK] != 0
}

// signal raises the interrupt line if an unmasked interrupt is pending.
func (c *Controller) signal() {
	if !c.Pending() {
		return
	}
	select {
	case c.irq <- struct{}{}:
	default:
	}
}

// Serve stands in for the controller's interrupt line. It calls isr while
// an unmasked interrupt is pending, then waits for the next one, until ctx
// is done.
func (c *Controller) Serve(ctx context.Context, isr func()) error {
	for {
		for c.Pending() {
			if err := ctx.Err(); err != nil {
				return err
			}
			isr()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.irq:
		}
	}
}
