package sim

import (
	"sync"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/pkg"
)

// Standard requests answered by Device.
const (
	requestSetAddress       = 0x05
	requestGetDescriptor    = 0x06
	requestGetConfiguration = 0x08
	requestSetConfiguration = 0x09

	descriptorTypeDevice        = 0x01
	descriptorTypeConfiguration = 0x02
)

// Device is a Responder that emulates a USB device at the default control
// pipe. It answers GET_DESCRIPTOR for its device and configuration
// descriptors, SET_ADDRESS, and GET/SET_CONFIGURATION, and stalls any other
// request. Traffic on other endpoints is served by a Loopback.
//
// The device responds only to its current address, which is 0 until the
// status stage of a SET_ADDRESS request completes.
type Device struct {
	mu     sync.Mutex
	device []byte
	config []byte

	addr        uint8
	pendingAddr uint8
	addrPending bool
	configValue uint8

	response []byte // IN data stage of the current control transfer
	stalled  bool   // the current control transfer is stalled

	*Loopback
}

// NewDevice creates a Device with the given raw device descriptor and
// configuration descriptor set.
func NewDevice(device, config []byte) *Device {
	return &Device{
		device:   append([]byte(nil), device...),
		config:   append([]byte(nil), config...),
		Loopback: NewLoopback(),
	}
}

// Address returns the device's current address.
func (d *Device) Address() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Configuration returns the value set by the last SET_CONFIGURATION.
func (d *Device) Configuration() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configValue
}

// In implements Responder.
func (d *Device) In(t Token) ([]byte, Handshake) {
	d.mu.Lock()
	if t.Addr != d.addr {
		d.mu.Unlock()
		return nil, XactErr
	}
	if t.Endpoint != 0 {
		d.mu.Unlock()
		return d.Loopback.In(t)
	}
	defer d.mu.Unlock()

	if d.stalled {
		return nil, STALL
	}
	n := min(len(d.response), t.MaxPacket)
	p := append([]byte(nil), d.response[:n]...)
	d.response = d.response[n:]
	if n == 0 && d.addrPending {
		// The status stage of SET_ADDRESS is an IN zero-length packet.
		d.addr = d.pendingAddr
		d.addrPending = false
		pkg.LogDebug(pkg.ComponentSim, "device address set", "addr", d.addr)
	}
	return p, ACK
}

// Out implements Responder.
func (d *Device) Out(t Token, data []byte) Handshake {
	d.mu.Lock()
	if t.Addr != d.addr {
		d.mu.Unlock()
		return XactErr
	}
	if t.Endpoint != 0 {
		d.mu.Unlock()
		return d.Loopback.Out(t, data)
	}
	defer d.mu.Unlock()

	if !t.Setup() {
		if d.stalled {
			return STALL
		}
		return ACK
	}

	var setup hal.SetupPacket
	if !hal.ParseSetupPacket(data, &setup) {
		return XactErr
	}
	d.setup(&setup)
	return ACK
}

// setup starts a control transfer. A SETUP packet is always acknowledged;
// an unsupported request stalls the stages that follow.
func (d *Device) setup(s *hal.SetupPacket) {
	d.response = nil
	d.stalled = false
	d.addrPending = false

	switch s.Request {
	case requestGetDescriptor:
		var desc []byte
		switch uint8(s.Value >> 8) {
		case descriptorTypeDevice:
			desc = d.device
		case descriptorTypeConfiguration:
			desc = d.config
		}
		if desc == nil {
			d.stalled = true
			break
		}
		d.response = append([]byte(nil), desc[:min(len(desc), int(s.Length))]...)
	case requestSetAddress:
		d.pendingAddr = uint8(s.Value & 0x7F)
		d.addrPending = true
	case requestGetConfiguration:
		d.response = []byte{d.configValue}
	case requestSetConfiguration:
		d.configValue = uint8(s.Value)
	default:
		d.stalled = true
	}
	pkg.LogDebug(pkg.ComponentSim, "setup",
		"request", s.Request,
		"value", s.Value,
		"length", s.Length,
		"stalled", d.stalled)
}
