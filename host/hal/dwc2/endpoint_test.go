package dwc2

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/sim"
	"github.com/ardnew/dwc2hcd/pkg"
)

func TestOpenEndpointFields(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)

	desc := &hal.EndpointDescriptor{Address: 0x83, Attributes: 0x03, MaxPacketSize: 0x1840}
	require.NoError(t, h.OpenEndpoint(9, desc, hal.Routing{Speed: hal.SpeedLow, HubAddr: 2, HubPort: 4}))

	slot, ok := h.FindEndpoint(9, 3, hal.DirIn)
	require.True(t, ok)
	ep := h.endpoints[slot]

	assert.Equal(t, uint16(0x40), ep.char.EPSize())
	assert.Equal(t, uint8(3), ep.char.EPNum())
	assert.True(t, ep.char.EPDirIn())
	assert.True(t, ep.char.LowSpeed())
	assert.Equal(t, uint8(reg.EPTypeInterrupt), ep.char.EPType())
	assert.Equal(t, uint8(9), ep.char.DevAddr())
	assert.True(t, ep.char.Enable())
	assert.Equal(t, uint8(2), ep.split.HubAddr())
	assert.Equal(t, uint8(4), ep.split.HubPort())
	assert.False(t, ep.split.SplitEnable())
	assert.Equal(t, uint8(reg.PIDData0), ep.nextPID)
}

func TestOpenEndpointInvalid(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)

	tests := []struct {
		name string
		addr hal.DeviceAddress
		desc *hal.EndpointDescriptor
	}{
		{"nil descriptor", 1, nil},
		{"zero packet size", 1, &hal.EndpointDescriptor{Address: 0x81, Attributes: 0x02}},
		{"address out of range", 128, &hal.EndpointDescriptor{Address: 0x81, Attributes: 0x02, MaxPacketSize: 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.OpenEndpoint(tt.addr, tt.desc, hal.Routing{})
			assert.True(t, errors.Is(err, pkg.ErrInvalidParameter))
		})
	}
	assert.Zero(t, h.openEndpoints())
}

func TestOpenEndpointTableFull(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)

	for i := 0; i < EndpointMax; i++ {
		openEP(t, h, hal.DeviceAddress(i/8+1), uint8(0x80|(i%8+1)), hal.TransferBulk, 64)
	}
	before := h.endpoints

	err := h.OpenEndpoint(20, &hal.EndpointDescriptor{Address: 0x81, Attributes: 0x02, MaxPacketSize: 64}, hal.Routing{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkg.ErrNoFreeEndpoint))
	assert.True(t, errors.Is(err, pkg.ErrResourceExhausted))
	assert.Equal(t, before, h.endpoints, "a failed open must not touch existing slots")
}

func TestOpenEndpointReopenReusesSlot(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)

	openEP(t, h, 1, 0x81, hal.TransferBulk, 64)
	first, _ := h.FindEndpoint(1, 1, hal.DirIn)
	openEP(t, h, 1, 0x81, hal.TransferBulk, 512)
	second, _ := h.FindEndpoint(1, 1, hal.DirIn)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.openEndpoints())
	assert.Equal(t, uint16(512), h.endpoints[second].char.EPSize())
}

func TestFindEndpoint(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)
	openEP(t, h, 1, 0x00, hal.TransferControl, 64)
	openEP(t, h, 1, 0x82, hal.TransferBulk, 64)

	tests := []struct {
		name string
		addr hal.DeviceAddress
		num  uint8
		dir  hal.Direction
		want bool
	}{
		{"control OUT", 1, 0, hal.DirOut, true},
		{"control matches IN", 1, 0, hal.DirIn, true},
		{"bulk IN", 1, 2, hal.DirIn, true},
		{"bulk OUT not open", 1, 2, hal.DirOut, false},
		{"other device", 2, 0, hal.DirOut, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := h.FindEndpoint(tt.addr, tt.num, tt.dir)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCloseDevice(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)
	openEP(t, h, 1, 0x00, hal.TransferControl, 64)
	openEP(t, h, 1, 0x81, hal.TransferBulk, 64)
	openEP(t, h, 2, 0x81, hal.TransferBulk, 64)

	h.CloseDevice(1)
	assert.Equal(t, 1, h.openEndpoints())
	_, ok := h.FindEndpoint(2, 1, hal.DirIn)
	assert.True(t, ok)

	h.CloseDevice(1)
	assert.Equal(t, 1, h.openEndpoints())
}

func TestClearStall(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)
	openEP(t, h, 1, 0x81, hal.TransferBulk, 64)

	require.NoError(t, h.Submit(1, 0x81, make([]byte, 8)))
	slot, _ := h.FindEndpoint(1, 1, hal.DirIn)
	require.Equal(t, uint8(reg.PIDData1), h.endpoints[slot].nextPID)

	require.NoError(t, h.ClearStall(1, 0x81))
	assert.Equal(t, uint8(reg.PIDData0), h.endpoints[slot].nextPID)

	assert.True(t, errors.Is(h.ClearStall(1, 0x02), pkg.ErrEndpointNotOpen))
}

// Random open/close sequences never exceed capacity or duplicate a tuple.
func TestEndpointTableInvariants(t *testing.T) {
	h, _, _ := newTestHCD(t, sim.DefaultConfig(), nil)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		addr := hal.DeviceAddress(rng.Intn(4) + 1)
		if rng.Intn(10) == 0 {
			h.CloseDevice(addr)
			continue
		}
		num := uint8(rng.Intn(4))
		dir := uint8(rng.Intn(2)) << 7
		desc := &hal.EndpointDescriptor{Address: dir | num, Attributes: 0x02, MaxPacketSize: 64}
		err := h.OpenEndpoint(addr, desc, hal.Routing{})
		if err != nil {
			require.True(t, errors.Is(err, pkg.ErrNoFreeEndpoint))
		}

		require.LessOrEqual(t, h.openEndpoints(), EndpointMax)
		seen := make(map[[3]uint8]bool)
		for _, ep := range h.endpoints {
			if !ep.open() {
				continue
			}
			key := [3]uint8{ep.char.DevAddr(), ep.char.EPNum(), 0}
			if ep.char.EPNum() != 0 && ep.char.EPDirIn() {
				key[2] = 1
			}
			require.False(t, seen[key], "duplicate slot for %v", key)
			seen[key] = true
		}
	}
}
