//go:build !profile

package prof

import (
	"io"
	"net/http"
)

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Profiling errors, never returned without the "profile" tag.
var (
	ErrCPUProfileActive error
	ErrInvalidProfile   error
)

// StartCPU is a no-op without the "profile" tag.
func StartCPU(string) error { return nil }

// StopCPU is a no-op without the "profile" tag.
func StopCPU() {}

// IsCPUActive always returns false without the "profile" tag.
func IsCPUActive() bool { return false }

// Write is a no-op without the "profile" tag.
func Write(Profile, string) error { return nil }

// WriteTo is a no-op without the "profile" tag.
func WriteTo(Profile, io.Writer) error { return nil }

// Register is a no-op without the "profile" tag.
func Register(*http.ServeMux) {}
