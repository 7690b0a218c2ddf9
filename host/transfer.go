package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/pkg"
)

// Transfer errors.
var (
	ErrEndpointBusy  = errors.New("transfer already pending on endpoint")
	ErrDeviceRemoved = errors.New("device removed")
)

type waiterKey struct {
	addr hal.DeviceAddress
	ep   uint8
}

type completion struct {
	n   int
	err error
}

// Transfer runs one transfer on an open endpoint and waits for it to
// complete. IN transfers fill buf; OUT transfers send it.
//
// If ctx is done first, the transfer is aborted and ctx.Err() returned.
// buf must not be reused until the HCD has reclaimed the channel, which
// happens at the next halt. A later transfer on the same endpoint waits
// for that.
func (h *Host) Transfer(ctx context.Context, addr hal.DeviceAddress, ep uint8, buf []byte) (int, error) {
	return h.run(ctx, addr, ep, func() error {
		return h.hcd.Submit(addr, ep, buf)
	})
}

// ControlTransfer runs the setup, data, and status stages of a control
// transfer on endpoint 0. The data stage direction follows the setup
// packet's request type and is skipped when setup.Length or data is empty.
// It returns the length of the data stage.
func (h *Host) ControlTransfer(ctx context.Context, addr hal.DeviceAddress, setup *hal.SetupPacket, data []byte) (int, error) {
	if setup == nil {
		return 0, pkg.ErrInvalidParameter
	}

	if _, err := h.run(ctx, addr, 0x00, func() error {
		return h.hcd.SendSetup(addr, setup)
	}); err != nil {
		return 0, err
	}

	in := setup.RequestType&RequestTypeIn != 0
	n := 0
	if len(data) > 0 && setup.Length > 0 {
		data = data[:min(len(data), int(setup.Length))]
		ep := uint8(0x00)
		if in {
			ep = 0x80
		}
		var err error
		if n, err = h.Transfer(ctx, addr, ep, data); err != nil {
			return 0, err
		}
	} else {
		in = false
	}

	// The status stage runs opposite to the data stage, IN when there was
	// none.
	status := uint8(0x80)
	if in {
		status = 0x00
	}
	if _, err := h.Transfer(ctx, addr, status, nil); err != nil {
		return 0, err
	}
	return n, nil
}

// run registers a waiter for (addr, ep), starts the transfer with submit,
// and waits for its completion.
func (h *Host) run(ctx context.Context, addr hal.DeviceAddress, ep uint8, submit func() error) (int, error) {
	key := waiterKey{addr: addr, ep: ep}
	w := make(chan completion, 1)

	h.mutex.Lock()
	for {
		d, ok := h.draining[key]
		if !ok {
			break
		}
		h.mutex.Unlock()
		select {
		case <-d:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		h.mutex.Lock()
	}
	if _, busy := h.waiters[key]; busy {
		h.mutex.Unlock()
		return 0, ErrEndpointBusy
	}
	h.waiters[key] = w
	h.mutex.Unlock()

	if err := submit(); err != nil {
		h.dropWaiter(key, w)
		return 0, err
	}

	select {
	case c := <-w:
		return c.n, c.err
	case <-ctx.Done():
		if err := h.hcd.Abort(addr, ep); err != nil && !errors.Is(err, pkg.ErrNothingToAbort) {
			pkg.LogWarn(pkg.ComponentHost, "abort failed",
				"addr", addr,
				"ep", ep,
				"error", err)
		}
		h.drain(key, w)
		return 0, ctx.Err()
	}
}

// complete delivers a transfer-complete event to its waiter.
func (h *Host) complete(ev hal.Event) {
	key := waiterKey{addr: ev.Addr, ep: ev.Endpoint}

	h.mutex.Lock()
	if h.release(key) {
		h.mutex.Unlock()
		pkg.LogDebug(pkg.ComponentHost, "cancelled transfer completed",
			"addr", ev.Addr,
			"ep", ev.Endpoint,
			"result", ev.Result)
		return
	}
	w, ok := h.waiters[key]
	delete(h.waiters, key)
	h.mutex.Unlock()

	if !ok {
		pkg.LogDebug(pkg.ComponentHost, "completion without waiter",
			"addr", ev.Addr,
			"ep", ev.Endpoint,
			"result", ev.Result)
		return
	}
	w <- completion{n: ev.Length, err: ev.Result.Err()}
}

// aborted ends a cancelled transfer whose channel the HCD reclaimed.
func (h *Host) aborted(ev hal.Event) {
	key := waiterKey{addr: ev.Addr, ep: ev.Endpoint}

	h.mutex.Lock()
	ok := h.release(key)
	h.mutex.Unlock()

	if !ok {
		pkg.LogDebug(pkg.ComponentHost, "abort without cancelled transfer",
			"addr", ev.Addr,
			"ep", ev.Endpoint)
	}
}

// drain replaces the waiter of a cancelled transfer with a marker that
// holds the endpoint until the HCD reports how the transfer ended. If the
// completion was already delivered to w there is nothing to hold.
func (h *Host) drain(key waiterKey, w chan completion) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.waiters[key] == w {
		delete(h.waiters, key)
		h.draining[key] = make(chan struct{})
	}
}

// release lets transfers waiting on key proceed. Callers hold the mutex.
func (h *Host) release(key waiterKey) bool {
	d, ok := h.draining[key]
	if ok {
		close(d)
		delete(h.draining, key)
	}
	return ok
}

func (h *Host) dropWaiter(key waiterKey, w chan completion) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.waiters[key] == w {
		delete(h.waiters, key)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pipe is a pair of bulk or interrupt endpoints on one device used as a
// byte stream.
type Pipe struct {
	device  *Device
	epIn    uint8
	epOut   uint8
	maxSize int

	mu sync.Mutex
}

// NewPipe creates a pipe over the given endpoints. Writes are split into
// transfers of at most maxTransfer bytes.
func NewPipe(dev *Device, epIn, epOut uint8, maxTransfer int) *Pipe {
	return &Pipe{
		device:  dev,
		epIn:    epIn,
		epOut:   epOut,
		maxSize: max(1, maxTransfer),
	}
}

// Read runs one IN transfer into data.
func (p *Pipe) Read(ctx context.Context, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device.Transfer(ctx, p.epIn, data)
}

// Write sends data as one or more OUT transfers.
func (p *Pipe) Write(ctx context.Context, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for len(data) > 0 {
		n := min(len(data), p.maxSize)
		written, err := p.device.Transfer(ctx, p.epOut, data[:n])
		if err != nil {
			return total, err
		}
		total += written
		data = data[n:]
	}
	return total, nil
}

// Device returns the device this pipe is connected to.
func (p *Pipe) Device() *Device {
	return p.device
}
