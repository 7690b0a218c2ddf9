// Package prof wraps [runtime/pprof] for profiling the DWC2 host engine and
// its simulator.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/dwc2sim
//	go test -tags profile ./...
//
// Without the tag every function is a no-op and [Enabled] is false, so call
// sites stay in place at no cost.
//
// # CPU Profiling
//
//	if err := prof.StartCPU("cpu.prof"); err != nil {
//	    return err
//	}
//	defer prof.StopCPU()
//
// Starting a second CPU profile returns [ErrCPUProfileActive].
//
// # Snapshot Profiles
//
//	prof.Write(prof.ProfileHeap, "heap.prof")
//	prof.WriteTo(prof.ProfileGoroutine, os.Stdout)
//
// [ProfileCPU] cannot be written as a snapshot; use [StartCPU] and
// [StopCPU].
//
// # HTTP
//
// [Register] mounts the /debug/pprof/ handlers on a mux, which dwc2sim
// serves next to /metrics.
package prof
