package pkg

import (
	"errors"
	"fmt"
)

// ErrResourceExhausted is the category of every error reporting that a
// fixed-size pool (endpoint slots, channels, request queue entries) had no
// room. Test for it with errors.Is.
var ErrResourceExhausted = errors.New("resource exhausted")

// Submission and bookkeeping errors.
var (
	// ErrNoFreeEndpoint indicates the endpoint table is full.
	ErrNoFreeEndpoint = fmt.Errorf("%w: no free endpoint slot", ErrResourceExhausted)

	// ErrNoFreeChannel indicates every host channel is bound to a transfer.
	ErrNoFreeChannel = fmt.Errorf("%w: no free channel", ErrResourceExhausted)

	// ErrRequestQueueFull indicates the hardware token request queue has no
	// free entry.
	ErrRequestQueueFull = fmt.Errorf("%w: request queue full", ErrResourceExhausted)

	// ErrEndpointNotOpen indicates no open endpoint matches the request.
	ErrEndpointNotOpen = errors.New("endpoint not open")

	// ErrNothingToAbort indicates the endpoint has no active channel.
	ErrNothingToAbort = errors.New("no active transfer to abort")

	// ErrDisableBusy indicates a channel disable could not be queued because
	// the request queue was full. The caller may retry.
	ErrDisableBusy = errors.New("channel disable deferred: request queue full")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")
)

// USB protocol errors reported through TransferResult.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrTimeout indicates a transfer timeout.
	ErrTimeout = errors.New("transfer timeout")

	// ErrProtocol indicates a protocol error (transaction error, babble,
	// data toggle mismatch, or exhausted retries).
	ErrProtocol = errors.New("protocol error")
)

// TransferResult is the completion code delivered with a transfer-complete
// event.
type TransferResult uint8

// Transfer result values.
const (
	ResultInvalid TransferResult = iota // Not complete
	ResultSuccess                       // Transfer completed successfully
	ResultFailed                        // Transfer failed
	ResultStalled                       // Endpoint stalled
	ResultTimeout                       // Transfer timed out
)

// String returns a string representation of the transfer result.
func (r TransferResult) String() string {
	switch r {
	case ResultInvalid:
		return "invalid"
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultStalled:
		return "stalled"
	case ResultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error corresponding to the transfer result, or nil on
// success.
func (r TransferResult) Err() error {
	switch r {
	case ResultSuccess:
		return nil
	case ResultStalled:
		return ErrStall
	case ResultTimeout:
		return ErrTimeout
	default:
		return ErrProtocol
	}
}
