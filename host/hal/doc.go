// Package hal defines the contract between a USB host stack and a host
// controller driver (HCD).
//
// The host stack owns device and endpoint identity: it enumerates devices,
// assigns addresses, and parses descriptors. The HCD owns the controller:
// it maps opened endpoints onto hardware channels, executes transfers, and
// reports completions through an [EventHandler].
//
// # Interface Overview
//
// The [HCD] interface exposes the operations the host stack needs:
//   - Endpoint bookkeeping: OpenEndpoint, CloseDevice, ClearStall
//   - Transfers: Submit, SendSetup, Abort
//   - Interrupt servicing: HandleInterrupt
//
// All transfer results arrive asynchronously as [Event] values with type
// [EventXferComplete]. An aborted transfer that did not finish first ends
// with [EventXferAborted] once its channel is reclaimed. Root port connects and disconnects arrive as
// [EventDeviceAttach] and [EventDeviceRemove].
//
// # Example
//
//	hcd, err := dwc2.New(bus, dwc2.Config{
//	    OnEvent: func(ev hal.Event) {
//	        if ev.Type == hal.EventXferComplete {
//	            fmt.Println(ev.Endpoint, ev.Length, ev.Result)
//	        }
//	    },
//	})
//
// The DesignWare OTG implementation lives in
// [github.com/ardnew/dwc2hcd/host/hal/dwc2].
package hal
