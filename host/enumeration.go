package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/pkg"
)

// Enumeration errors.
var (
	ErrEnumerationFailed = errors.New("enumeration failed")
	ErrNoAddress         = errors.New("no address available")
)

// Bus timing (USB 2.0 Specification, 7.1.7.5 and 9.2.6.3).
const (
	resetDuration     = 10 * time.Millisecond
	resetRecovery     = 10 * time.Millisecond
	setAddressRecover = 2 * time.Millisecond
)

// resetPort drives a bus reset on the root port.
func resetPort(ctx context.Context, pc PortController) error {
	pc.ResetPort()
	err := sleep(ctx, resetDuration)
	pc.ResetPortEnd()
	if err != nil {
		return err
	}
	return sleep(ctx, resetRecovery)
}

// Enumerate configures the device answering at the default address, which
// must have just been reset. On success every endpoint of the device's
// first configuration is open in the HCD and the configuration is selected.
func (h *Host) Enumerate(ctx context.Context, speed hal.Speed) (*Device, error) {
	pkg.LogDebug(pkg.ComponentHost, "starting enumeration", "speed", speed)

	route := hal.Routing{Speed: speed}
	if err := h.openControl(0, maxPacketSize0(speed), route); err != nil {
		return nil, err
	}

	dev := newDevice(h, 0, speed)

	// Read the first 8 bytes of the device descriptor to get bMaxPacketSize0.
	var buf [MaxDescriptorSize]byte
	n, err := dev.GetDescriptor(ctx, DescriptorTypeDevice, 0, 0, buf[:8])
	if err != nil {
		h.hcd.CloseDevice(0)
		return nil, fmt.Errorf("%w: device descriptor: %w", ErrEnumerationFailed, err)
	}
	if n < 8 {
		h.hcd.CloseDevice(0)
		return nil, ErrEnumerationFailed
	}
	mps0 := uint16(buf[7])
	if mps0 == 0 {
		mps0 = 8
	}
	pkg.LogDebug(pkg.ComponentHost, "got max packet size", "size", mps0)

	address := h.allocateAddress()
	if address == 0 {
		h.hcd.CloseDevice(0)
		return nil, ErrNoAddress
	}

	if err := h.openControl(0, mps0, route); err != nil {
		return nil, err
	}
	setup := hal.SetupPacket{
		RequestType: RequestTypeOut | RequestTypeStandard | RequestTypeDevice,
		Request:     RequestSetAddress,
		Value:       uint16(address),
	}
	_, err = dev.ControlTransfer(ctx, &setup, nil)
	h.hcd.CloseDevice(0)
	if err != nil {
		return nil, fmt.Errorf("%w: set address: %w", ErrEnumerationFailed, err)
	}
	if err := sleep(ctx, setAddressRecover); err != nil {
		return nil, err
	}

	pkg.LogDebug(pkg.ComponentHost, "assigned address", "address", address)

	dev.address = address
	dev.setState(DeviceStateAddress)
	if err := h.openControl(hal.DeviceAddress(address), mps0, route); err != nil {
		return nil, err
	}

	fail := func(stage string, err error) (*Device, error) {
		h.hcd.CloseDevice(hal.DeviceAddress(address))
		if err == nil {
			return nil, fmt.Errorf("%w: %s", ErrEnumerationFailed, stage)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrEnumerationFailed, stage, err)
	}

	n, err = dev.GetDescriptor(ctx, DescriptorTypeDevice, 0, 0, buf[:DeviceDescriptorSize])
	if err != nil {
		return fail("device descriptor", err)
	}
	if n < DeviceDescriptorSize || !dev.parseDeviceDescriptor(buf[:n]) {
		return fail("device descriptor", nil)
	}

	pkg.LogDebug(pkg.ComponentHost, "device descriptor",
		"vendorID", dev.descriptor.VendorID,
		"productID", dev.descriptor.ProductID,
		"class", dev.descriptor.DeviceClass)

	// Read the configuration header first to learn the total length.
	n, err = dev.GetDescriptor(ctx, DescriptorTypeConfiguration, 0, 0, buf[:ConfigurationDescriptorSize])
	if err != nil {
		return fail("configuration descriptor", err)
	}
	if n < ConfigurationDescriptorSize {
		return fail("configuration descriptor", nil)
	}

	totalLength := min(int(uint16(buf[2])|uint16(buf[3])<<8), len(buf))
	n, err = dev.GetDescriptor(ctx, DescriptorTypeConfiguration, 0, 0, buf[:totalLength])
	if err != nil {
		return fail("configuration descriptor set", err)
	}
	dev.parseConfigurationTree(buf[:n])

	pkg.LogDebug(pkg.ComponentHost, "configuration descriptor",
		"numInterfaces", dev.config.NumInterfaces,
		"numEndpoints", len(dev.endpoints),
		"configValue", dev.config.ConfigurationValue)

	for i := range dev.endpoints {
		desc := dev.endpoints[i].HCD()
		if err := h.hcd.OpenEndpoint(hal.DeviceAddress(address), &desc, route); err != nil {
			return fail("open endpoint", err)
		}
	}

	if dev.config.ConfigurationValue > 0 {
		if err := dev.SetConfiguration(ctx, dev.config.ConfigurationValue); err != nil {
			return fail("set configuration", err)
		}
	}

	h.addDevice(dev)
	return dev, nil
}

// openControl opens the default control endpoint of addr in the HCD.
func (h *Host) openControl(addr hal.DeviceAddress, mps uint16, route hal.Routing) error {
	desc := hal.EndpointDescriptor{
		Address:       0x00,
		Attributes:    EndpointTypeControl,
		MaxPacketSize: mps,
	}
	return h.hcd.OpenEndpoint(addr, &desc, route)
}
