package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
)

// program writes a channel the way the driver does and enables it.
func program(c *Controller, ch int, epNum uint8, in bool, mps uint16, size uint32, pid uint8) {
	var ts reg.HCTSiz
	ts.SetXferSize(size)
	ts.SetPacketCount(uint16(max(1, (size+uint32(mps)-1)/uint32(mps))))
	ts.SetPID(pid)
	c.Write(reg.HCTSIZ(ch), uint32(ts))

	var char reg.HCChar
	char.SetEPSize(mps)
	char.SetEPNum(epNum)
	char.SetEPDirIn(in)
	char.SetEPType(reg.EPTypeBulk)
	char.SetDevAddr(1)
	c.Write(reg.HCINTMSK(ch), reg.HCINTXferComplete|reg.HCINTChHalted)
	char.SetEnable(true)
	c.Write(reg.HCCHAR(ch), uint32(char))
}

func TestHCINTWriteOneToClear(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Raise(2, reg.HCINTACK|reg.HCINTNAK)
	c.Write(reg.HCINT(2), reg.HCINTACK)
	assert.Equal(t, uint32(reg.HCINTNAK), c.Read(reg.HCINT(2)))
}

func TestHAINTFollowsChannelMasks(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Raise(1, reg.HCINTNAK)
	c.Raise(3, reg.HCINTXferComplete)
	c.Write(reg.HCINTMSK(3), reg.HCINTXferComplete)
	assert.Equal(t, uint32(1<<3), c.Read(reg.HAINT))

	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSHChInt, "HAINTMSK gates the summary bit")
	c.Write(reg.HAINTMSK, 1<<3)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSHChInt)
}

func TestGINTSTSLatchedBits(t *testing.T) {
	c := New(DefaultConfig(), nil)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSCurMode)

	c.RaiseGlobal(reg.GINTSTSConIDChng)
	c.Write(reg.GINTSTS, reg.GINTSTSCurMode)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSConIDChng)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSCurMode, "mode is read-only")

	c.Write(reg.GINTSTS, reg.GINTSTSConIDChng)
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSConIDChng)
}

func TestTxFIFOEmptyLevel(t *testing.T) {
	cfg := DefaultConfig()
	c := New(cfg, nil)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSNPTxFEmp)

	c.SetTxFIFOFree(false, cfg.NPTxFIFOWords/2-1)
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSNPTxFEmp)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSPTxFEmp)

	c.SetRequestQueue(true, 3)
	sts := reg.TxSts(c.Read(reg.HPTXSTS))
	assert.Equal(t, uint8(3), sts.QueueSpace())
	assert.Equal(t, cfg.PTxFIFOWords, sts.FIFOSpace())
}

func TestReceiveStatusQueue(t *testing.T) {
	c := New(DefaultConfig(), nil)
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSRxFLvl)

	c.PushRx(4, reg.PktStsInData, []byte{1, 2, 3, 4, 5})
	c.PushRx(4, reg.PktStsInComplete, nil)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSRxFLvl)

	peek := reg.GRxSts(c.Read(reg.GRXSTSR))
	assert.Equal(t, peek, reg.GRxSts(c.Read(reg.GRXSTSR)), "GRXSTSR does not pop")

	sts := reg.GRxSts(c.Read(reg.GRXSTSP))
	assert.Equal(t, 4, sts.Channel())
	assert.Equal(t, uint16(5), sts.ByteCount())
	assert.Equal(t, uint32(0x04030201), c.Read(reg.FIFO(0)))
	assert.Equal(t, uint32(0x05), c.Read(reg.FIFO(0)))

	assert.Zero(t, c.Read(reg.HCINT(4)))
	sts = reg.GRxSts(c.Read(reg.GRXSTSP))
	assert.Equal(t, uint8(reg.PktStsInComplete), sts.PacketStatus())
	assert.Equal(t, uint32(reg.HCINTXferComplete), c.Read(reg.HCINT(4)))
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSRxFLvl)
}

func TestHardwareConfig(t *testing.T) {
	tests := []struct {
		name      string
		channels  int
		highSpeed bool
		want      int
	}{
		{"default", 8, true, 8},
		{"clamped low", 0, false, 1},
		{"clamped high", 32, true, reg.ChannelMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Channels = tt.channels
			cfg.HighSpeed = tt.highSpeed
			hw := reg.GHWCfg2(New(cfg, nil).Read(reg.GHWCFG2))

			assert.Equal(t, tt.want, int(hw.NumHostChannels())+1)
			assert.Equal(t, uint8(reg.ArchSlaveOnly), hw.Arch())
			assert.Equal(t, tt.highSpeed, hw.HSPHYType() != reg.HSPHYNotSupported)
		})
	}
}

func TestPortResetSequence(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Connect(hal.SpeedHigh)
	p := reg.HPrt(c.Read(reg.HPRT))
	require.True(t, p.Connected())
	assert.NotZero(t, uint32(p)&reg.HPRTConnDetect)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSPortInt)

	c.Write(reg.HPRT, reg.HPRTConnDetect)
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSPortInt)

	c.Write(reg.HPRT, reg.HPRTReset|reg.HPRTPower)
	assert.False(t, reg.HPrt(c.Read(reg.HPRT)).Enabled())
	c.Write(reg.HPRT, reg.HPRTPower)

	p = reg.HPrt(c.Read(reg.HPRT))
	assert.True(t, p.Enabled())
	assert.NotZero(t, uint32(p)&reg.HPRTEnableChange)
	assert.Equal(t, uint8(reg.HPRTSpeedHigh), p.Speed())

	// Writing the enable bit disables the port.
	c.Write(reg.HPRT, reg.HPRTEnable|reg.HPRTEnableChange|reg.HPRTPower)
	p = reg.HPrt(c.Read(reg.HPRT))
	assert.False(t, p.Enabled())
	assert.NotZero(t, uint32(p)&reg.HPRTEnableChange)
}

func TestConnectSpeed(t *testing.T) {
	tests := []struct {
		name      string
		highSpeed bool
		speed     hal.Speed
		want      uint8
	}{
		{"high on high", true, hal.SpeedHigh, reg.HPRTSpeedHigh},
		{"high on full-speed core", false, hal.SpeedHigh, reg.HPRTSpeedFull},
		{"full", true, hal.SpeedFull, reg.HPRTSpeedFull},
		{"low", true, hal.SpeedLow, reg.HPRTSpeedLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.HighSpeed = tt.highSpeed
			c := New(cfg, nil)
			c.Connect(tt.speed)
			c.Write(reg.HPRT, reg.HPRTReset)
			c.Write(reg.HPRT, 0)
			assert.Equal(t, tt.want, reg.HPrt(c.Read(reg.HPRT)).Speed())
		})
	}
}

func TestDisconnect(t *testing.T) {
	c := New(DefaultConfig(), nil)
	c.Connect(hal.SpeedFull)
	c.Write(reg.HPRT, reg.HPRTReset)
	c.Write(reg.HPRT, 0)
	c.Write(reg.HPRT, reg.HPRTConnDetect|reg.HPRTEnableChange)

	c.Disconnect()
	p := reg.HPrt(c.Read(reg.HPRT))
	assert.False(t, p.Connected())
	assert.False(t, p.Enabled())
	assert.NotZero(t, uint32(p)&reg.HPRTConnDetect)
	assert.NotZero(t, c.Read(reg.GINTSTS)&reg.GINTSTSDisconnInt)
}

func TestChannelDisableHalts(t *testing.T) {
	c := New(DefaultConfig(), nil)
	program(c, 0, 1, true, 64, 64, reg.PIDData0)
	require.True(t, reg.HCChar(c.Read(reg.HCCHAR(0))).Enable())

	c.Write(reg.HCCHAR(0), c.Read(reg.HCCHAR(0))|reg.HCCHARChDis)
	char := reg.HCChar(c.Read(reg.HCCHAR(0)))
	assert.False(t, char.Enable())
	assert.False(t, char.Disable())
	assert.Equal(t, uint32(reg.HCINTChHalted), c.Read(reg.HCINT(0)))
}

func TestChannelInThroughLoopback(t *testing.T) {
	lb := NewLoopback()
	lb.Queue(1, 1, []byte("0123456789"))
	c := New(DefaultConfig(), lb)

	program(c, 0, 1, true, 8, 16, reg.PIDData0)
	assert.Equal(t, 1, c.EnableCount(0))

	// An 8-byte packet, a 2-byte short packet, then completion.
	sts := reg.GRxSts(c.Read(reg.GRXSTSP))
	assert.Equal(t, uint16(8), sts.ByteCount())
	c.Read(reg.FIFO(0))
	c.Read(reg.FIFO(0))
	sts = reg.GRxSts(c.Read(reg.GRXSTSP))
	assert.Equal(t, uint16(2), sts.ByteCount())
	assert.Equal(t, uint32('8')|uint32('9')<<8, c.Read(reg.FIFO(0)))
	sts = reg.GRxSts(c.Read(reg.GRXSTSP))
	assert.Equal(t, uint8(reg.PktStsInComplete), sts.PacketStatus())

	assert.NotZero(t, c.Read(reg.HCINT(0))&reg.HCINTXferComplete)
	assert.False(t, reg.HCChar(c.Read(reg.HCCHAR(0))).Enable())
}

func TestChannelInBabble(t *testing.T) {
	c := New(DefaultConfig(), babbler{})
	program(c, 0, 1, true, 8, 8, reg.PIDData0)
	assert.Equal(t, uint32(reg.HCINTBabbleErr|reg.HCINTChHalted), c.Read(reg.HCINT(0)))
	assert.Zero(t, c.Read(reg.GINTSTS)&reg.GINTSTSRxFLvl)
}

func TestChannelOutThroughLoopback(t *testing.T) {
	lb := NewLoopback()
	c := New(DefaultConfig(), lb)
	program(c, 0, 2, false, 8, 10, reg.PIDData0)

	words := []uint32{0x33323130, 0x37363534, 0x00003938}
	for _, w := range words[:2] {
		c.Write(reg.FIFO(0), w)
	}
	assert.Equal(t, []byte("01234567"), c.TxData(0))
	assert.Zero(t, c.Read(reg.HCINT(0))&reg.HCINTXferComplete)

	c.Write(reg.FIFO(0), words[2])
	assert.Equal(t, []byte("0123456789"), c.TxData(0))
	assert.NotZero(t, c.Read(reg.HCINT(0))&reg.HCINTXferComplete)

	data, hs := lb.In(Token{Addr: 1, Endpoint: 2, MaxPacket: 64})
	assert.Equal(t, ACK, hs)
	assert.Equal(t, []byte("0123456789"), data)
}

func TestLoopback(t *testing.T) {
	lb := NewLoopback()

	_, hs := lb.In(Token{Addr: 1, Endpoint: 1, MaxPacket: 8})
	assert.Equal(t, NAK, hs, "empty endpoint NAKs")

	data, hs := lb.In(Token{Addr: 1, Endpoint: 0, MaxPacket: 8})
	assert.Equal(t, ACK, hs, "status stage completes")
	assert.Empty(t, data)

	setup := Token{Addr: 1, Endpoint: 0, PID: reg.PIDSetup, MaxPacket: 8}
	require.True(t, setup.Setup())
	assert.Equal(t, ACK, lb.Out(setup, []byte{0x80, 6, 0, 1, 0, 0, 18, 0}))
	assert.Len(t, lb.Setups(), 1)

	lb.Stall(1, 0)
	assert.Equal(t, ACK, lb.Out(setup, make([]byte, 8)), "SETUP is always accepted")
	_, hs = lb.In(Token{Addr: 1, Endpoint: 0, MaxPacket: 8})
	assert.Equal(t, STALL, hs)
	lb.Unstall(1, 0)

	lb.Queue(2, 1, []byte("abcdefghij"))
	data, _ = lb.In(Token{Addr: 2, Endpoint: 1, MaxPacket: 4})
	assert.Equal(t, []byte("abcd"), data)
	_, hs = lb.In(Token{Addr: 1, Endpoint: 1, MaxPacket: 4})
	assert.Equal(t, NAK, hs, "queues are per device")
}

func TestHandshakeString(t *testing.T) {
	assert.Equal(t, "ACK", ACK.String())
	assert.Equal(t, "NAK", NAK.String())
	assert.Equal(t, "STALL", STALL.String())
	assert.Equal(t, "XACTERR", XactErr.String())
	assert.Equal(t, "unknown", Handshake(9).String())
}

// babbler answers IN tokens with more than a packet of data.
type babbler struct{}

func (babbler) In(t Token) ([]byte, Handshake) { return make([]byte, t.MaxPacket+1), ACK }
func (babbler) Out(Token, []byte) Handshake    { return ACK }
