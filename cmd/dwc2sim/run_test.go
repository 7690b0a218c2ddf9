package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/dwc2hcd/pkg"
	"github.com/ardnew/dwc2hcd/pkg/prof"
)

// startBench builds a bench for the scenario at path and delivers its
// interrupts until the test ends.
func startBench(t *testing.T, path string) (*bench, *Scenario, *prometheus.Registry) {
	t.Helper()

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	b, err := newBench(sc, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.ctrl.Serve(ctx, b.isr) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return b, sc, reg
}

// foxes is the payload testdata/loopback.yaml sends through the bulk pair.
const foxes = "the quick brown fox jumps over the lazy dog; the quick brown fox jumps over the lazy dog"

func TestBenchExecute(t *testing.T) {
	tests := []struct {
		path      string
		transfers int
		bytes     int
	}{
		// The stalled and timed-out transfers move nothing.
		{"testdata/loopback.yaml", 8, 2*len(foxes) + 3*4 + 12},
		{"testdata/fullspeed.toml", 2, 2 * len("full speed")},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			b, sc, _ := startBench(t, tt.path)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			rep, err := b.execute(ctx, sc)
			require.NoError(t, err)
			assert.Equal(t, tt.transfers, rep.Transfers)
			assert.Zero(t, rep.Unmet)
			assert.Equal(t, tt.bytes, rep.Bytes)
		})
	}
}

func TestBenchExecuteMismatch(t *testing.T) {
	b, sc, _ := startBench(t, "testdata/mismatch.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rep, err := b.execute(ctx, sc)
	require.Error(t, err)
	assert.Equal(t, 2, rep.Transfers)
	assert.Equal(t, 1, rep.Unmet)
}

func TestMetricsMux(t *testing.T) {
	b, sc, reg := startBench(t, "testdata/loopback.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := b.execute(ctx, sc)
	require.NoError(t, err)

	srv := httptest.NewServer(newMetricsMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dwc2_transfers_total")
	assert.Contains(t, string(body), "dwc2_channel_allocations_total")
	assert.Contains(t, string(body), "dwc2_nak_retries_total")
}

func TestRunCmd(t *testing.T) {
	t.Run("loopback", func(t *testing.T) {
		cmd := RunCmd{Scenario: "testdata/loopback.yaml", Timeout: 10 * time.Second}
		assert.NoError(t, cmd.Run())
	})

	t.Run("mismatch", func(t *testing.T) {
		cmd := RunCmd{Scenario: "testdata/mismatch.yaml", Timeout: 10 * time.Second}
		assert.Error(t, cmd.Run())
	})

	t.Run("missing", func(t *testing.T) {
		cmd := RunCmd{Scenario: filepath.Join(t.TempDir(), "none.yaml"), Timeout: time.Second}
		assert.Error(t, cmd.Run())
	})

	t.Run("profiles", func(t *testing.T) {
		dir := t.TempDir()
		cmd := RunCmd{
			Scenario:    "testdata/fullspeed.toml",
			Timeout:     10 * time.Second,
			CPUProfile:  filepath.Join(dir, "cpu.prof"),
			HeapProfile: filepath.Join(dir, "heap.prof"),
		}
		require.NoError(t, cmd.Run())
		assert.False(t, prof.IsCPUActive(), "the CPU profile is stopped when the run ends")
		if prof.Enabled {
			assert.FileExists(t, cmd.CPUProfile)
			assert.FileExists(t, cmd.HeapProfile)
		}
	})

	t.Run("badListen", func(t *testing.T) {
		cmd := RunCmd{Scenario: "testdata/loopback.yaml", Timeout: time.Second, MetricsListen: "not an address"}
		assert.Error(t, cmd.Run())
	})
}

func TestInitCmd(t *testing.T) {
	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "nested", "scenario."+format)
			cmd := InitCmd{Format: format, Output: dest}
			require.NoError(t, cmd.Run())

			sc, err := LoadScenario(dest)
			require.NoError(t, err)
			assert.Equal(t, SampleScenario(), sc)

			assert.Error(t, cmd.Run(), "refuses to overwrite")
			cmd.Force = true
			assert.NoError(t, cmd.Run())
		})
	}
}

func TestSampleScenarioRuns(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, (&InitCmd{Format: "yaml", Output: dest}).Run())

	cmd := RunCmd{Scenario: dest, Timeout: 10 * time.Second}
	assert.NoError(t, cmd.Run())
}

func TestMarshalScenarioUnknownFormat(t *testing.T) {
	_, err := marshalScenario(SampleScenario(), "ini")
	assert.Error(t, err)
}

func TestLogConfig(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		format string
		want   pkg.LogFormat
	}{
		{"json", pkg.LogFormatJSON},
		{"text", pkg.LogFormatText},
		{"auto", pkg.LogFormatJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LogConfig{Format: tt.format}.format(&buf), tt.format)
	}

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, pkg.LogFormatJSON, LogConfig{Format: "auto"}.format(f), "a regular file is not a terminal")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
	assert.Equal(t, "INFO", parseLevel("info").String())
	assert.Equal(t, "INFO", parseLevel("").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
	assert.Equal(t, "WARN+2", parseLevel("WARN+2").String())
}

func TestFindUserConfig(t *testing.T) {
	t.Setenv("DWC2SIM_CONFIG", "")

	assert.Equal(t, "a.yaml", findUserConfig([]string{"run", "--config=a.yaml", "s.yaml"}))
	assert.Equal(t, "b.toml", findUserConfig([]string{"--config", "b.toml", "run"}))
	assert.Empty(t, findUserConfig([]string{"run", "--config"}))

	t.Setenv("DWC2SIM_CONFIG", "env.json")
	assert.Equal(t, "env.json", findUserConfig([]string{"run"}))
}

func TestConfigLoader(t *testing.T) {
	for _, path := range []string{"", "a.yaml", "a.yml", "a.toml", "a.json"} {
		assert.NotNil(t, configLoader(path), path)
	}
}
