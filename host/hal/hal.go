package hal

import (
	"github.com/ardnew/dwc2hcd/pkg"
)

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants (USB 2.0 Specification).
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	default:
		return "Unknown"
	}
}

// Direction is the data direction of an endpoint, from the host's view.
type Direction uint8

// Endpoint directions.
const (
	DirOut Direction = 0 // Host to device
	DirIn  Direction = 1 // Device to host
)

// String returns "IN" or "OUT".
func (d Direction) String() string {
	if d == DirIn {
		return "IN"
	}
	return "OUT"
}

// EndpointAddress composes an endpoint address from its number and direction.
func EndpointAddress(num uint8, dir Direction) uint8 {
	return num&0x0F | uint8(dir)<<7
}

// SplitEndpointAddress returns the number and direction encoded in addr.
func SplitEndpointAddress(addr uint8) (uint8, Direction) {
	return addr & 0x0F, Direction(addr >> 7)
}

// SetupPacket represents a USB SETUP packet.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// TransferType indicates the type of USB transfer.
type TransferType uint8

// Transfer type constants. The values match the bmAttributes encoding and
// the controller's endpoint type field.
const (
	TransferControl     TransferType = 0 // Control transfer
	TransferIsochronous TransferType = 1 // Isochronous transfer
	TransferBulk        TransferType = 2 // Bulk transfer
	TransferInterrupt   TransferType = 3 // Interrupt transfer
)

// String returns the lower-case transfer type name.
func (t TransferType) String() string {
	switch t {
	case TransferControl:
		return "control"
	case TransferIsochronous:
		return "isochronous"
	case TransferBulk:
		return "bulk"
	case TransferInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Periodic reports whether transfers of this type are scheduled in the
// periodic frame list (interrupt and isochronous).
func (t TransferType) Periodic() bool {
	return t == TransferInterrupt || t == TransferIsochronous
}

// EndpointDescriptor describes an endpoint for HCD configuration.
type EndpointDescriptor struct {
	Address       uint8  // Endpoint address including direction bit
	Attributes    uint8  // Transfer type and sync/usage flags
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval for interrupt/isochronous
}

// Number returns the endpoint number (0-15).
func (e *EndpointDescriptor) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *EndpointDescriptor) IsIn() bool {
	return e.Address&0x80 != 0
}

// Direction returns the endpoint direction.
func (e *EndpointDescriptor) Direction() Direction {
	if e.IsIn() {
		return DirIn
	}
	return DirOut
}

// TransferType returns the transfer type.
func (e *EndpointDescriptor) TransferType() TransferType {
	return TransferType(e.Attributes & 0x03)
}

// PacketSize returns the payload size of a single packet, excluding the
// high-bandwidth multiplier bits.
func (e *EndpointDescriptor) PacketSize() uint16 {
	return e.MaxPacketSize & 0x07FF
}

// DeviceAddress represents a USB device address (0-127).
type DeviceAddress uint8

// Routing locates a device in the bus topology. The hub fields describe
// the nearest high-speed hub and are used for split transactions.
type Routing struct {
	Speed   Speed // Device speed
	HubAddr uint8 // Address of the parent hub, 0 for the root port
	HubPort uint8 // Port on the parent hub
}

// EventType discriminates HCD events.
type EventType uint8

// Event types.
const (
	EventDeviceAttach EventType = iota + 1 // Device connected on the root port
	EventDeviceRemove                      // Device removed from the root port
	EventXferComplete                      // Transfer finished (any result)
	EventXferAborted                       // Aborted transfer's channel reclaimed
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventDeviceAttach:
		return "attach"
	case EventDeviceRemove:
		return "remove"
	case EventXferComplete:
		return "xfer-complete"
	case EventXferAborted:
		return "xfer-aborted"
	default:
		return "unknown"
	}
}

// Event is an asynchronous notification from the HCD to the host stack.
type Event struct {
	Type     EventType
	Port     uint8              // Root hub port
	Addr     DeviceAddress      // Device address (transfer events)
	Endpoint uint8              // Endpoint address including direction bit
	Length   int                // Bytes transferred
	Result   pkg.TransferResult // Completion code (transfer events)
	InISR    bool               // Raised from interrupt context
}

// EventHandler receives HCD events. It is called outside the HCD critical
// section and may call back into the HCD.
type EventHandler func(Event)

// HCD defines the host controller driver contract used by the host stack.
//
// Implementations own a fixed pool of endpoint slots and hardware
// channels. Submission never blocks; results are delivered to the
// EventHandler supplied at construction.
type HCD interface {
	// OpenEndpoint records an endpoint's negotiated parameters.
	OpenEndpoint(addr DeviceAddress, desc *EndpointDescriptor, route Routing) error

	// CloseDevice forgets every endpoint belonging to addr.
	CloseDevice(addr DeviceAddress)

	// Submit starts a transfer of buf on an open endpoint. For IN endpoints
	// buf receives data; for OUT endpoints buf is sent.
	Submit(addr DeviceAddress, epAddr uint8, buf []byte) error

	// SendSetup starts the SETUP stage of a control transfer on endpoint 0.
	SendSetup(addr DeviceAddress, setup *SetupPacket) error

	// Abort requests cancellation of the active transfer on an endpoint.
	// The transfer ends with either EventXferComplete, if it finished
	// first, or EventXferAborted.
	Abort(addr DeviceAddress, epAddr uint8) error

	// ClearStall resets the endpoint's data toggle after a halt is cleared.
	ClearStall(addr DeviceAddress, epAddr uint8) error

	// HandleInterrupt services pending controller interrupts.
	HandleInterrupt(inISR bool)
}
