package host

import (
	"context"
	"sync"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/pkg"
)

// PortController is implemented by HCDs that drive a root port. Host uses
// it to reset the port before enumeration and to learn the link speed.
type PortController interface {
	PortConnected() bool
	PortSpeed() hal.Speed
	ResetPort()
	ResetPortEnd()
}

// Host tracks the devices behind one HCD and runs transfers on them.
type Host struct {
	hcd hal.HCD

	// Connected devices (indexed by address - 1)
	devices     [MaxDevices]*Device
	deviceCount int

	// Next available address
	nextAddress uint8

	// Outstanding transfers, keyed by device and endpoint address.
	waiters map[waiterKey]chan completion

	// Cancelled transfers whose channel has not yet ended. A new transfer
	// on the key waits for the channel to close.
	draining map[waiterKey]chan struct{}

	// Attach notifications not yet consumed by WaitDevice.
	attached chan struct{}

	mutex sync.Mutex

	// Callbacks
	onDeviceConnect    func(*Device)
	onDeviceDisconnect func(*Device)
}

// New creates a Host over hcd. Every event hcd raises must be passed to
// HandleEvent.
func New(hcd hal.HCD) *Host {
	return &Host{
		hcd:         hcd,
		nextAddress: 1,
		waiters:     make(map[waiterKey]chan completion),
		draining:    make(map[waiterKey]chan struct{}),
		attached:    make(chan struct{}, 1),
	}
}

// HandleEvent routes an HCD event. It never blocks and may be called from
// the HCD's interrupt path.
func (h *Host) HandleEvent(ev hal.Event) {
	switch ev.Type {
	case hal.EventXferComplete:
		h.complete(ev)
	case hal.EventXferAborted:
		h.aborted(ev)
	case hal.EventDeviceAttach:
		select {
		case h.attached <- struct{}{}:
		default:
		}
	case hal.EventDeviceRemove:
		h.detachAll()
	}
}

// WaitDevice blocks until a device attaches to the root port, then resets
// the port and enumerates the device.
func (h *Host) WaitDevice(ctx context.Context) (*Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.attached:
	}

	speed := hal.SpeedFull
	if pc, ok := h.hcd.(PortController); ok {
		if !pc.PortConnected() {
			return nil, ErrDeviceRemoved
		}
		if err := resetPort(ctx, pc); err != nil {
			return nil, err
		}
		speed = pc.PortSpeed()
	}

	dev, err := h.Enumerate(ctx, speed)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHost, "enumeration failed", "error", err)
		return nil, err
	}
	return dev, nil
}

// Devices returns all connected devices.
func (h *Host) Devices() []*Device {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	result := make([]*Device, 0, h.deviceCount)
	for i := 0; i < MaxDevices; i++ {
		if h.devices[i] != nil {
			result = append(result, h.devices[i])
		}
	}
	return result
}

// GetDevice returns the device at the given address.
func (h *Host) GetDevice(address uint8) *Device {
	if address == 0 || address > MaxDevices {
		return nil
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.devices[address-1]
}

// SetOnDeviceConnect sets the callback for device connection.
func (h *Host) SetOnDeviceConnect(cb func(*Device)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onDeviceConnect = cb
}

// SetOnDeviceDisconnect sets the callback for device disconnection.
func (h *Host) SetOnDeviceDisconnect(cb func(*Device)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onDeviceDisconnect = cb
}

// addDevice records an enumerated device.
func (h *Host) addDevice(dev *Device) {
	h.mutex.Lock()
	h.devices[dev.address-1] = dev
	h.deviceCount++
	cb := h.onDeviceConnect
	h.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHost, "device enumerated",
		"address", dev.address,
		"vendor", dev.descriptor.VendorID,
		"product", dev.descriptor.ProductID)

	if cb != nil {
		cb(dev)
	}
}

// detachAll forgets every device and fails every outstanding transfer.
func (h *Host) detachAll() {
	h.mutex.Lock()
	var gone []*Device
	for i := range h.devices {
		if h.devices[i] != nil {
			gone = append(gone, h.devices[i])
			h.devices[i] = nil
		}
	}
	h.deviceCount = 0
	for key, w := range h.waiters {
		w <- completion{err: ErrDeviceRemoved}
		delete(h.waiters, key)
	}
	for key, d := range h.draining {
		close(d)
		delete(h.draining, key)
	}
	cb := h.onDeviceDisconnect
	h.mutex.Unlock()

	for _, dev := range gone {
		h.hcd.CloseDevice(hal.DeviceAddress(dev.address))
		dev.Close()
		pkg.LogInfo(pkg.ComponentHost, "device disconnected", "address", dev.address)
		if cb != nil {
			cb(dev)
		}
	}
}

// allocateAddress allocates a new device address.
func (h *Host) allocateAddress() uint8 {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i := 0; i < MaxDevices; i++ {
		addr := h.nextAddress
		h.nextAddress++
		if h.nextAddress > MaxDevices {
			h.nextAddress = 1
		}

		if h.devices[addr-1] == nil {
			return addr
		}
	}
	return 0 // No address available
}
