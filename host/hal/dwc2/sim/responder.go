package sim

import (
	"sync"

	"github.com/ardnew/dwc2hcd/host/hal/dwc2/reg"
)

// Handshake is a device's response to a token.
type Handshake uint8

// Handshake values. XactErr stands for a missing or corrupt response.
const (
	ACK Handshake = iota
	NAK
	STALL
	XactErr
)

// String returns the handshake name.
func (h Handshake) String() string {
	switch h {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	case STALL:
		return "STALL"
	case XactErr:
		return "XACTERR"
	default:
		return "unknown"
	}
}

// Token describes a transaction issued by a host channel.
type Token struct {
	Channel   int
	Addr      uint8 // device address
	Endpoint  uint8 // endpoint number
	Type      uint8 // reg.EPType* value
	PID       uint8 // reg.PID* value of the data stage
	MaxPacket int
}

// Setup reports whether the token carries a SETUP packet.
func (t Token) Setup() bool {
	return t.Endpoint == 0 && t.PID == reg.PIDSetup
}

// Responder stands in for the device on the bus. It is called without the
// controller lock held.
type Responder interface {
	// In answers an IN token with at most MaxPacket bytes.
	In(t Token) ([]byte, Handshake)

	// Out accepts an OUT or SETUP packet.
	Out(t Token, data []byte) Handshake
}

type endpointKey struct {
	addr uint8
	num  uint8
}

// Loopback is a Responder that queues every OUT payload per endpoint number
// and returns it on IN tokens to the same endpoint. SETUP packets are
// acknowledged and recorded. An IN token with nothing queued is NAKed,
// except on endpoint 0 where it completes the status stage with a
// zero-length packet.
type Loopback struct {
	mu      sync.Mutex
	queued  map[endpointKey][]byte
	stalled map[endpointKey]bool
	setups  [][]byte
}

// NewLoopback creates an empty Loopback.
func NewLoopback() *Loopback {
	return &Loopback{
		queued:  make(map[endpointKey][]byte),
		stalled: make(map[endpointKey]bool),
	}
}

// Stall makes every later token to the endpoint return STALL until cleared
// with Unstall.
func (l *Loopback) Stall(addr, num uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stalled[endpointKey{addr, num}] = true
}

// Unstall clears a stall set with Stall.
func (l *Loopback) Unstall(addr, num uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.stalled, endpointKey{addr, num})
}

// Queue appends data to be returned on IN tokens to the endpoint.
func (l *Loopback) Queue(addr, num uint8, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := endpointKey{addr, num}
	l.queued[k] = append(l.queued[k], data...)
}

// Setups returns the SETUP packets received so far.
func (l *Loopback) Setups() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.setups...)
}

// In implements Responder.
func (l *Loopback) In(t Token) ([]byte, Handshake) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := endpointKey{t.Addr, t.Endpoint}
	if l.stalled[k] {
		return nil, STALL
	}
	q := l.queued[k]
	if len(q) == 0 {
		if t.Endpoint == 0 {
			return nil, ACK
		}
		return nil, NAK
	}
	n := min(len(q), t.MaxPacket)
	p := append([]byte(nil), q[:n]...)
	l.queued[k] = q[n:]
	return p, ACK
}

// Out implements Responder.
func (l *Loopback) Out(t Token, data []byte) Handshake {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := endpointKey{t.Addr, t.Endpoint}
	if l.stalled[k] && !t.Setup() {
		return STALL
	}
	if t.Setup() {
		l.setups = append(l.setups, append([]byte(nil), data...))
		return ACK
	}
	if t.Endpoint == 0 {
		// Control data and status stages are consumed.
		return ACK
	}
	l.queued[k] = append(l.queued[k], data...)
	return ACK
}
