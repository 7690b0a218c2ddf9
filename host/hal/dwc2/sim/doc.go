// Package sim provides an in-memory DWC2 controller for exercising the
// dwc2 host channel engine without hardware.
//
// A [Controller] implements dwc2.Bus over the register map in package reg and
// reproduces the side effects the engine depends on: write-1-to-clear
// interrupt bits, the receive status pop, the data FIFO windows, request
// queue and FIFO space reporting, and channel enable and disable. Bus
// traffic is answered by a [Responder] standing in for the attached device;
// [Loopback] echoes OUT payloads back on IN.
//
// Tests may also inject interrupt bits and receive entries directly with
// [Controller.Raise] and [Controller.PushRx].
package sim
