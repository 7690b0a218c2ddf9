// Package pkg provides shared utilities for the DWC2 host controller driver.
//
// This package contains functionality used by every layer of the driver:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for submission failures and USB protocol errors
//   - The [TransferResult] code carried by completion events
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component tag:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogDebug(pkg.ComponentChannel, "channel allocated", "ch", 3)
//
// Records below the configured level are discarded before any attribute is
// built, so logging calls are safe on the interrupt path.
//
// # Errors
//
// Resource exhaustion errors share a category:
//
//	if errors.Is(err, pkg.ErrResourceExhausted) {
//	    // retry once a transfer completes
//	}
package pkg
