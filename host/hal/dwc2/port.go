package dwc2

import (
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/pkg"
)

// handlePortInterrupt services connect-detect, enable-change, and
// over-current-change on the root port.
func (h *HCD) handlePortInterrupt(inISR bool) {
	raw := h.read(reg.HPRT)
	port := reg.HPrt(raw)
	ack := raw &^ reg.HPRTW1CMask

	if raw&reg.HPRTConnDetect != 0 {
		ack |= reg.HPRTConnDetect
		if port.Connected() {
			pkg.LogInfo(pkg.ComponentPort, "device attached", "port", h.port)
			h.raise(hal.Event{Type: hal.EventDeviceAttach, InISR: inISR})
		} else {
			pkg.LogInfo(pkg.ComponentPort, "device removed", "port", h.port)
			h.raise(hal.Event{Type: hal.EventDeviceRemove, InISR: inISR})
		}
	}

	if raw&reg.HPRTEnableChange != 0 {
		ack |= reg.HPRTEnableChange
		if port.Enabled() {
			h.configureFrameTiming(port.Speed())
		}
	}

	if raw&reg.HPRTOvrCurrChange != 0 {
		ack |= reg.HPRTOvrCurrChange
		pkg.LogWarn(pkg.ComponentPort, "over-current change",
			"port", h.port,
			"active", raw&reg.HPRTOvrCurrActive != 0)
	}

	h.write(reg.HPRT, ack)
}

// configureFrameTiming programs the FS/LS PHY clock select and the SOF
// interval for the link speed, in PHY clock cycles.
func (h *HCD) configureFrameTiming(speed uint8) {
	usbcfg := h.read(reg.GUSBCFG)
	hcfg := h.read(reg.HCFG) &^ reg.HCFGFSLSPHYClkMask

	var clockMHz uint32
	switch {
	case usbcfg&reg.GUSBCFGPHYSel != 0:
		clockMHz = 48 // dedicated full-speed PHY
		hcfg |= reg.HCFGFSLSPHYClk48
	case usbcfg&reg.GUSBCFGULPIUTMISel == 0 && usbcfg&reg.GUSBCFGPHYIf16 != 0:
		clockMHz = 30 // UTMI+ 16-bit
		hcfg |= reg.HCFGFSLSPHYClk3060
	default:
		clockMHz = 60 // UTMI+ or ULPI 8-bit
		hcfg |= reg.HCFGFSLSPHYClk3060
	}
	h.write(reg.HCFG, hcfg)

	interval := 1000 * clockMHz
	if speed == reg.HPRTSpeedHigh {
		interval = 125 * clockMHz
	}
	hfir := h.read(reg.HFIR)&^reg.HFIRFrameIntervalMask | interval
	h.write(reg.HFIR, hfir)

	pkg.LogDebug(pkg.ComponentPort, "frame timing configured",
		"speed", hprtSpeed(speed),
		"clockMHz", clockMHz,
		"interval", interval)
}

func hprtSpeed(s uint8) hal.Speed {
	switch s {
	case reg.HPRTSpeedHigh:
		return hal.SpeedHigh
	case reg.HPRTSpeedFull:
		return hal.SpeedFull
	case reg.HPRTSpeedLow:
		return hal.SpeedLow
	default:
		return hal.SpeedUnknown
	}
}

// PortConnected reports whether a device is connected to the root port.
func (h *HCD) PortConnected() bool {
	return reg.HPrt(h.read(reg.HPRT)).Connected()
}

// ResetPort starts a bus reset on the root port. The reset continues until
// ResetPortEnd is called, at least 10ms later.
func (h *HCD) ResetPort() {
	s := h.enter()
	defer h.exit(s)
	h.write(reg.HPRT, h.read(reg.HPRT)&^reg.HPRTW1CMask|reg.HPRTReset)
}

// ResetPortEnd ends the bus reset started by ResetPort.
func (h *HCD) ResetPortEnd() {
	s := h.enter()
	defer h.exit(s)
	h.write(reg.HPRT, h.read(reg.HPRT)&^(reg.HPRTW1CMask|reg.HPRTReset))
}

// PortSpeed returns the link speed of the root port.
func (h *HCD) PortSpeed() hal.Speed {
	return hprtSpeed(reg.HPrt(h.read(reg.HPRT)).Speed())
}

// FrameNumber returns the current (micro)frame number.
func (h *HCD) FrameNumber() uint32 {
	return h.read(reg.HFNUM) & reg.HFNUMFrameNumberMask
}

// EnableInterrupts sets the controller's global interrupt enable.
func (h *HCD) EnableInterrupts() {
	s := h.enter()
	defer h.exit(s)
	h.set(reg.GAHBCFG, reg.GAHBCFGGlobalInt)
}

// DisableInterrupts clears the controller's global interrupt enable.
func (h *HCD) DisableInterrupts() {
	s := h.enter()
	defer h.exit(s)
	h.clear(reg.GAHBCFG, reg.GAHBCFGGlobalInt)
}

// HighSpeedCapable reports whether the controller has a high-speed PHY.
func (h *HCD) HighSpeedCapable() bool {
	return h.highSpeed
}
