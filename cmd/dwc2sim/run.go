package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efficientgo/core/errors"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ardnew/dwc2hcd/host"
	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/sim"
	"github.com/ardnew/dwc2hcd/pkg"
	"github.com/ardnew/dwc2hcd/pkg/prof"
)

// defaultTransferTimeout bounds a transfer whose scenario entry sets none.
const defaultTransferTimeout = 5 * time.Second

// RunCmd runs a scenario against the simulated controller.
type RunCmd struct {
	Scenario      string        `arg:"" type:"existingfile" help:"Scenario file (.yaml, .yml, or .toml)."`
	Timeout       time.Duration `help:"Time limit for the whole scenario." default:"30s"`
	MetricsListen string        `help:"Serve Prometheus metrics on this address." placeholder:"ADDR"`
	Linger        bool          `help:"Keep serving metrics after the scenario finishes, until interrupted."`
	CPUProfile    string        `help:"Write a CPU profile of the run to this file (requires the profile build tag)." type:"path" placeholder:"FILE"`
	HeapProfile   string        `help:"Write a heap profile to this file after the run (requires the profile build tag)." type:"path" placeholder:"FILE"`
}

// Run is called by kong when the run command is executed.
func (r *RunCmd) Run() error {
	sc, err := LoadScenario(r.Scenario)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b, err := newBench(sc, reg)
	if err != nil {
		return err
	}

	if (r.CPUProfile != "" || r.HeapProfile != "") && !prof.Enabled {
		pkg.LogWarn(component, "profiling not compiled in; rebuild with -tags profile")
	}
	if r.CPUProfile != "" {
		if err := prof.StartCPU(r.CPUProfile); err != nil {
			return errors.Wrapf(err, "start CPU profile %s", r.CPUProfile)
		}
		defer prof.StopCPU()
	}

	var g run.Group
	{
		// Deliver controller interrupts.
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			if err := b.ctrl.Serve(ctx, b.isr); !stderrors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}, func(error) {
			cancel()
		})
	}

	{
		// Run the scenario, then optionally linger until interrupted.
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			sctx, scancel := context.WithTimeout(ctx, r.Timeout)
			rep, err := b.execute(sctx, sc)
			scancel()
			pkg.LogInfo(component, "scenario finished",
				"transfers", rep.Transfers,
				"unmet", rep.Unmet,
				"bytes", rep.Bytes)
			if err != nil || !r.Linger {
				return err
			}
			pkg.LogInfo(component, "lingering until interrupted", "metrics", r.MetricsListen)
			<-ctx.Done()
			return nil
		}, func(error) {
			cancel()
		})
	}

	if r.MetricsListen != "" {
		// Serve metrics over HTTP.
		l, err := net.Listen("tcp", r.MetricsListen)
		if err != nil {
			return errors.Wrapf(err, "listen on %s", r.MetricsListen)
		}
		mux := newMetricsMux(reg)
		g.Add(func() error {
			pkg.LogInfo(component, "serving metrics", "addr", l.Addr().String())
			if err := http.Serve(l, mux); err != nil && !stderrors.Is(err, http.ErrServerClosed) &&
				!stderrors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "metrics server exited unexpectedly")
			}
			return nil
		}, func(error) {
			_ = l.Close()
		})
	}

	{
		// Exit gracefully on SIGINT and SIGTERM.
		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)
		cancel := make(chan struct{})
		g.Add(func() error {
			select {
			case <-term:
				pkg.LogInfo(component, "caught interrupt, shutting down")
			case <-cancel:
			}
			return nil
		}, func(error) {
			signal.Stop(term)
			close(cancel)
		})
	}

	err = g.Run()
	if r.HeapProfile != "" {
		if perr := prof.Write(prof.ProfileHeap, r.HeapProfile); perr != nil {
			pkg.LogWarn(component, "heap profile not written", "path", r.HeapProfile, "error", perr)
		}
	}
	return err
}

func newMetricsMux(g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	prof.Register(mux)
	return mux
}

// bench is a host stack over a simulated controller and device.
type bench struct {
	ctrl   *sim.Controller
	device *sim.Device
	hcd    *dwc2.HCD
	host   *host.Host
}

func newBench(sc *Scenario, reg prometheus.Registerer) (*bench, error) {
	devDesc, cfgDesc, err := sc.Device.Descriptors()
	if err != nil {
		return nil, errors.Wrap(err, "build descriptors")
	}

	b := &bench{device: sim.NewDevice(devDesc, cfgDesc)}
	b.ctrl = sim.New(sc.SimConfig(), b.device)
	b.hcd, err = dwc2.New(b.ctrl, dwc2.Config{
		Port:       1,
		OnEvent:    func(ev hal.Event) { b.host.HandleEvent(ev) },
		Registerer: reg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create HCD")
	}
	b.host = host.New(b.hcd)
	b.hcd.EnableInterrupts()

	pkg.LogDebug(component, "controller ready", "channels", b.hcd.ChannelCount())
	return b, nil
}

func (b *bench) isr() {
	b.hcd.HandleInterrupt(true)
}

// Report summarizes a scenario run.
type Report struct {
	Transfers int // transfers attempted
	Unmet     int // transfers whose outcome differed from the scenario
	Bytes     int // bytes moved by successful transfers
}

// execute attaches the scenario's device, waits for enumeration, and runs
// the scenario's transfers in order.
func (b *bench) execute(ctx context.Context, sc *Scenario) (Report, error) {
	var rep Report

	speed, err := parseSpeed(sc.Device.Speed)
	if err != nil {
		return rep, err
	}
	b.ctrl.Connect(speed)
	dev, err := b.host.WaitDevice(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "enumerate device")
	}
	pkg.LogInfo(component, "device ready",
		"address", dev.Address(),
		"speed", dev.Speed(),
		"vendor", dev.VendorID(),
		"product", dev.ProductID(),
		"endpoints", len(dev.Endpoints()))

	for _, ep := range sc.Device.Endpoints {
		if ep.Stall {
			b.device.Stall(dev.Address(), ep.Address&0x0F)
		}
	}

	for i := range sc.Transfers {
		t := &sc.Transfers[i]
		for r, reps := 0, max(1, t.Repeat); r < reps; r++ {
			if err := ctx.Err(); err != nil {
				return rep, errors.Wrap(err, "scenario interrupted")
			}
			rep.Transfers++
			n, err := b.transfer(ctx, dev, t)
			if err != nil {
				rep.Unmet++
				pkg.LogWarn(component, "unexpected transfer outcome",
					"index", i,
					"endpoint", t.Endpoint,
					"error", err)
				continue
			}
			rep.Bytes += n
		}
	}

	if sc.Disconnect {
		b.ctrl.Disconnect()
	}

	if rep.Unmet > 0 {
		return rep, errors.Newf("%d of %d transfers did not go as expected", rep.Unmet, rep.Transfers)
	}
	return rep, nil
}

// transfer runs one scenario transfer and checks its outcome. It returns
// the bytes moved.
func (b *bench) transfer(ctx context.Context, dev *host.Device, t *TransferSpec) (int, error) {
	d, err := t.timeout(defaultTransferTimeout)
	if err != nil {
		return 0, err
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	buf := t.Payload()
	n, err := dev.Transfer(tctx, t.Endpoint, buf)
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var want error
	switch t.ExpectError {
	case expectStall:
		want = pkg.ErrStall
	case expectTimeout:
		want = context.DeadlineExceeded
	case expectFailed:
		want = pkg.ErrProtocol
	}
	switch {
	case want == nil && err != nil:
		return 0, err
	case want != nil && !stderrors.Is(err, want):
		return 0, errors.Newf("got error %v, want %v", err, want)
	case want != nil:
		pkg.LogDebug(component, "transfer failed as expected", "endpoint", t.Endpoint, "error", err)
		return 0, nil
	}

	if t.Endpoint&0x80 != 0 && !bytes.HasPrefix(buf, []byte(t.Expect)) {
		return 0, errors.Newf("read %q, want %q", buf, t.Expect)
	}
	pkg.LogDebug(component, "transfer complete", "endpoint", t.Endpoint, "length", n)
	return n, nil
}
