package reg

// HCChar is a host channel characteristics register value. Endpoint slots
// keep one as a template with the enable bit meaning "slot open".
type HCChar uint32

// HCCHAR field layout.
const (
	hccharEPSizePos    = 0
	hccharEPSizeWidth  = 11
	hccharEPNumPos     = 11
	hccharEPNumWidth   = 4
	hccharEPDirPos     = 15
	hccharLowSpeedPos  = 17
	hccharEPTypePos    = 18
	hccharEPTypeWidth  = 2
	hccharMCPos        = 20
	hccharMCWidth      = 2
	hccharDevAddrPos   = 22
	hccharDevAddrWidth = 7
	hccharOddFramePos  = 29
	hccharDisablePos   = 30
	hccharEnablePos    = 31
)

// EPSize returns the maximum packet size.
func (c HCChar) EPSize() uint16 {
	return uint16(field(uint32(c), hccharEPSizePos, hccharEPSizeWidth))
}

// SetEPSize sets the maximum packet size.
func (c *HCChar) SetEPSize(n uint16) {
	*c = HCChar(setField(uint32(*c), hccharEPSizePos, hccharEPSizeWidth, uint32(n)))
}

// EPNum returns the endpoint number.
func (c HCChar) EPNum() uint8 {
	return uint8(field(uint32(c), hccharEPNumPos, hccharEPNumWidth))
}

// SetEPNum sets the endpoint number.
func (c *HCChar) SetEPNum(n uint8) {
	*c = HCChar(setField(uint32(*c), hccharEPNumPos, hccharEPNumWidth, uint32(n)))
}

// EPDirIn reports whether the channel is configured for IN.
func (c HCChar) EPDirIn() bool { return bit(uint32(c), hccharEPDirPos) }

// SetEPDirIn sets the channel direction.
func (c *HCChar) SetEPDirIn(in bool) {
	*c = HCChar(setBit(uint32(*c), hccharEPDirPos, in))
}

// LowSpeed reports whether the device is low-speed.
func (c HCChar) LowSpeed() bool { return bit(uint32(c), hccharLowSpeedPos) }

// SetLowSpeed marks the device as low-speed.
func (c *HCChar) SetLowSpeed(on bool) {
	*c = HCChar(setBit(uint32(*c), hccharLowSpeedPos, on))
}

// EPType returns the endpoint type (EPType* constants).
func (c HCChar) EPType() uint8 {
	return uint8(field(uint32(c), hccharEPTypePos, hccharEPTypeWidth))
}

// SetEPType sets the endpoint type.
func (c *HCChar) SetEPType(t uint8) {
	*c = HCChar(setField(uint32(*c), hccharEPTypePos, hccharEPTypeWidth, uint32(t)))
}

// Periodic reports whether the endpoint type is interrupt or isochronous.
func (c HCChar) Periodic() bool {
	t := c.EPType()
	return t == EPTypeInterrupt || t == EPTypeIsochronous
}

// MultiCount returns the error/multi count field.
func (c HCChar) MultiCount() uint8 {
	return uint8(field(uint32(c), hccharMCPos, hccharMCWidth))
}

// SetMultiCount sets the error/multi count field.
func (c *HCChar) SetMultiCount(n uint8) {
	*c = HCChar(setField(uint32(*c), hccharMCPos, hccharMCWidth, uint32(n)))
}

// DevAddr returns the device address.
func (c HCChar) DevAddr() uint8 {
	return uint8(field(uint32(c), hccharDevAddrPos, hccharDevAddrWidth))
}

// SetDevAddr sets the device address.
func (c *HCChar) SetDevAddr(a uint8) {
	*c = HCChar(setField(uint32(*c), hccharDevAddrPos, hccharDevAddrWidth, uint32(a)))
}

// OddFrame reports whether a periodic transfer targets odd frames.
func (c HCChar) OddFrame() bool { return bit(uint32(c), hccharOddFramePos) }

// SetOddFrame selects odd or even frames for periodic transfers.
func (c *HCChar) SetOddFrame(odd bool) {
	*c = HCChar(setBit(uint32(*c), hccharOddFramePos, odd))
}

// Disable reports the channel disable bit.
func (c HCChar) Disable() bool { return bit(uint32(c), hccharDisablePos) }

// SetDisable sets the channel disable bit.
func (c *HCChar) SetDisable(on bool) {
	*c = HCChar(setBit(uint32(*c), hccharDisablePos, on))
}

// Enable reports the channel enable bit.
func (c HCChar) Enable() bool { return bit(uint32(c), hccharEnablePos) }

// SetEnable sets the channel enable bit.
func (c *HCChar) SetEnable(on bool) {
	*c = HCChar(setBit(uint32(*c), hccharEnablePos, on))
}

// HCSplt is a host channel split control register value.
type HCSplt uint32

// HCSPLT field layout.
const (
	hcspltHubPortPos   = 0
	hcspltHubPortWidth = 7
	hcspltHubAddrPos   = 7
	hcspltHubAddrWidth = 7
	hcspltXactPosPos   = 14
	hcspltXactPosWidth = 2
	hcspltComplPos     = 16
	hcspltEnablePos    = 31
)

// HubPort returns the hub port number.
func (s HCSplt) HubPort() uint8 {
	return uint8(field(uint32(s), hcspltHubPortPos, hcspltHubPortWidth))
}

// SetHubPort sets the hub port number.
func (s *HCSplt) SetHubPort(p uint8) {
	*s = HCSplt(setField(uint32(*s), hcspltHubPortPos, hcspltHubPortWidth, uint32(p)))
}

// HubAddr returns the hub address.
func (s HCSplt) HubAddr() uint8 {
	return uint8(field(uint32(s), hcspltHubAddrPos, hcspltHubAddrWidth))
}

// SetHubAddr sets the hub address.
func (s *HCSplt) SetHubAddr(a uint8) {
	*s = HCSplt(setField(uint32(*s), hcspltHubAddrPos, hcspltHubAddrWidth, uint32(a)))
}

// XactPos returns the transaction position.
func (s HCSplt) XactPos() uint8 {
	return uint8(field(uint32(s), hcspltXactPosPos, hcspltXactPosWidth))
}

// SetXactPos sets the transaction position.
func (s *HCSplt) SetXactPos(p uint8) {
	*s = HCSplt(setField(uint32(*s), hcspltXactPosPos, hcspltXactPosWidth, uint32(p)))
}

// CompleteSplit reports whether the next transaction is a complete-split.
func (s HCSplt) CompleteSplit() bool { return bit(uint32(s), hcspltComplPos) }

// SetCompleteSplit selects a complete-split transaction.
func (s *HCSplt) SetCompleteSplit(on bool) {
	*s = HCSplt(setBit(uint32(*s), hcspltComplPos, on))
}

// SplitEnable reports whether split transactions are enabled.
func (s HCSplt) SplitEnable() bool { return bit(uint32(s), hcspltEnablePos) }

// SetSplitEnable enables split transactions.
func (s *HCSplt) SetSplitEnable(on bool) {
	*s = HCSplt(setBit(uint32(*s), hcspltEnablePos, on))
}

// HCTSiz is a host channel transfer size register value.
type HCTSiz uint32

// HCTSIZ field layout.
const (
	hctsizXferSizePos   = 0
	hctsizXferSizeWidth = 19
	hctsizPktCntPos     = 19
	hctsizPktCntWidth   = 10
	hctsizPIDPos        = 29
	hctsizPIDWidth      = 2
	hctsizDoPingPos     = 31
)

// Field limits of HCTSIZ.
const (
	MaxXferSize    = 1<<hctsizXferSizeWidth - 1
	MaxPacketCount = 1<<hctsizPktCntWidth - 1
)

// XferSize returns the transfer size in bytes.
func (t HCTSiz) XferSize() uint32 {
	return field(uint32(t), hctsizXferSizePos, hctsizXferSizeWidth)
}

// SetXferSize sets the transfer size in bytes.
func (t *HCTSiz) SetXferSize(n uint32) {
	*t = HCTSiz(setField(uint32(*t), hctsizXferSizePos, hctsizXferSizeWidth, n))
}

// PacketCount returns the packet count.
func (t HCTSiz) PacketCount() uint16 {
	return uint16(field(uint32(t), hctsizPktCntPos, hctsizPktCntWidth))
}

// SetPacketCount sets the packet count.
func (t *HCTSiz) SetPacketCount(n uint16) {
	*t = HCTSiz(setField(uint32(*t), hctsizPktCntPos, hctsizPktCntWidth, uint32(n)))
}

// PID returns the packet ID (PID* constants).
func (t HCTSiz) PID() uint8 {
	return uint8(field(uint32(t), hctsizPIDPos, hctsizPIDWidth))
}

// SetPID sets the packet ID.
func (t *HCTSiz) SetPID(pid uint8) {
	*t = HCTSiz(setField(uint32(*t), hctsizPIDPos, hctsizPIDWidth, uint32(pid)))
}

// DoPing reports whether the PING protocol is requested.
func (t HCTSiz) DoPing() bool { return bit(uint32(t), hctsizDoPingPos) }

// SetDoPing requests the PING protocol.
func (t *HCTSiz) SetDoPing(on bool) {
	*t = HCTSiz(setBit(uint32(*t), hctsizDoPingPos, on))
}

// GRxSts is a receive status entry popped from GRXSTSP.
type GRxSts uint32

// GRXSTS field layout.
const (
	grxstsChPos        = 0
	grxstsChWidth      = 4
	grxstsByteCntPos   = 4
	grxstsByteCntWidth = 11
	grxstsDPIDPos      = 15
	grxstsDPIDWidth    = 2
	grxstsPktStsPos    = 17
	grxstsPktStsWidth  = 4
)

// MakeGRxSts composes a receive status entry.
func MakeGRxSts(ch int, byteCount uint16, pktSts uint8) GRxSts {
	var v uint32
	v = setField(v, grxstsChPos, grxstsChWidth, uint32(ch))
	v = setField(v, grxstsByteCntPos, grxstsByteCntWidth, uint32(byteCount))
	v = setField(v, grxstsPktStsPos, grxstsPktStsWidth, uint32(pktSts))
	return GRxSts(v)
}

// Channel returns the channel number.
func (s GRxSts) Channel() int {
	return int(field(uint32(s), grxstsChPos, grxstsChWidth))
}

// ByteCount returns the byte count of the received packet.
func (s GRxSts) ByteCount() uint16 {
	return uint16(field(uint32(s), grxstsByteCntPos, grxstsByteCntWidth))
}

// DPID returns the data PID of the received packet.
func (s GRxSts) DPID() uint8 {
	return uint8(field(uint32(s), grxstsDPIDPos, grxstsDPIDWidth))
}

// PacketStatus returns the packet status (PktSts* constants).
func (s GRxSts) PacketStatus() uint8 {
	return uint8(field(uint32(s), grxstsPktStsPos, grxstsPktStsWidth))
}

// TxSts is a GNPTXSTS or HPTXSTS value. Both share the layout of their
// space fields.
type TxSts uint32

// TXSTS field layout.
const (
	txstsSpacePos   = 0
	txstsSpaceWidth = 16
	txstsQueuePos   = 16
	txstsQueueWidth = 8
)

// MakeTxSts composes a transmit status value.
func MakeTxSts(fifoWords uint16, queue uint8) TxSts {
	var v uint32
	v = setField(v, txstsSpacePos, txstsSpaceWidth, uint32(fifoWords))
	v = setField(v, txstsQueuePos, txstsQueueWidth, uint32(queue))
	return TxSts(v)
}

// FIFOSpace returns the free transmit FIFO space in 32-bit words.
func (s TxSts) FIFOSpace() uint16 {
	return uint16(field(uint32(s), txstsSpacePos, txstsSpaceWidth))
}

// QueueSpace returns the free request queue entries.
func (s TxSts) QueueSpace() uint8 {
	return uint8(field(uint32(s), txstsQueuePos, txstsQueueWidth))
}

// HPrt is a host port control and status register value.
type HPrt uint32

// HPRT field layout.
const (
	hprtSpeedPos   = 17
	hprtSpeedWidth = 2
)

// Connected reports the port connect status.
func (p HPrt) Connected() bool { return uint32(p)&HPRTConnStatus != 0 }

// Enabled reports whether the port is enabled.
func (p HPrt) Enabled() bool { return uint32(p)&HPRTEnable != 0 }

// Speed returns the port speed (HPRTSpeed* constants).
func (p HPrt) Speed() uint8 {
	return uint8(field(uint32(p), hprtSpeedPos, hprtSpeedWidth))
}

// SetSpeed sets the port speed field.
func (p *HPrt) SetSpeed(s uint8) {
	*p = HPrt(setField(uint32(*p), hprtSpeedPos, hprtSpeedWidth, uint32(s)))
}

// GHWCfg2 is the hardware configuration 2 register value.
type GHWCfg2 uint32

// GHWCFG2 field layout.
const (
	ghwcfg2ArchPos        = 3
	ghwcfg2ArchWidth      = 2
	ghwcfg2HSPHYPos       = 6
	ghwcfg2HSPHYWidth     = 2
	ghwcfg2FSPHYPos       = 8
	ghwcfg2FSPHYWidth     = 2
	ghwcfg2NumHostChPos   = 14
	ghwcfg2NumHostChWidth = 4
)

// Arch returns the architecture (Arch* constants).
func (h GHWCfg2) Arch() uint8 {
	return uint8(field(uint32(h), ghwcfg2ArchPos, ghwcfg2ArchWidth))
}

// SetArch sets the architecture field.
func (h *GHWCfg2) SetArch(a uint8) {
	*h = GHWCfg2(setField(uint32(*h), ghwcfg2ArchPos, ghwcfg2ArchWidth, uint32(a)))
}

// HSPHYType returns the high-speed PHY type.
func (h GHWCfg2) HSPHYType() uint8 {
	return uint8(field(uint32(h), ghwcfg2HSPHYPos, ghwcfg2HSPHYWidth))
}

// SetHSPHYType sets the high-speed PHY type.
func (h *GHWCfg2) SetHSPHYType(t uint8) {
	*h = GHWCfg2(setField(uint32(*h), ghwcfg2HSPHYPos, ghwcfg2HSPHYWidth, uint32(t)))
}

// FSPHYType returns the full-speed PHY type.
func (h GHWCfg2) FSPHYType() uint8 {
	return uint8(field(uint32(h), ghwcfg2FSPHYPos, ghwcfg2FSPHYWidth))
}

// SetFSPHYType sets the full-speed PHY type.
func (h *GHWCfg2) SetFSPHYType(t uint8) {
	*h = GHWCfg2(setField(uint32(*h), ghwcfg2FSPHYPos, ghwcfg2FSPHYWidth, uint32(t)))
}

// NumHostChannels returns the number of host channels minus one.
func (h GHWCfg2) NumHostChannels() uint8 {
	return uint8(field(uint32(h), ghwcfg2NumHostChPos, ghwcfg2NumHostChWidth))
}

// SetNumHostChannels sets the number of host channels minus one.
func (h *GHWCfg2) SetNumHostChannels(n uint8) {
	*h = GHWCfg2(setField(uint32(*h), ghwcfg2NumHostChPos, ghwcfg2NumHostChWidth, uint32(n)))
}
