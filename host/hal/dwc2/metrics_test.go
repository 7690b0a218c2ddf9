package dwc2

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/dwc2hcd/host/hal"
	"github.com/ardnew/dwc2hcd/host/hal/dwc2/sim"
)

// metricValue returns the value of the named series whose labels include
// every pair in labels, or -1 if there is none.
func metricValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, m := range f.GetMetric() {
			have := make(map[string]string)
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if have[k] != v {
					continue series
				}
			}
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func newMetricsHCD(t *testing.T, cfg sim.Config, resp sim.Responder) (*HCD, *sim.Controller, *prometheus.Registry) {
	t.Helper()
	r := prometheus.NewRegistry()
	c := sim.New(cfg, resp)
	h, err := New(c, Config{Port: 1, Registerer: r})
	require.NoError(t, err)
	return h, c, r
}

func TestMetricsTransferTraffic(t *testing.T) {
	h, c, r := newMetricsHCD(t, sim.DefaultConfig(), sim.NewLoopback())
	openEP(t, h, 1, 0x02, hal.TransferBulk, 64)
	openEP(t, h, 1, 0x82, hal.TransferBulk, 64)

	require.NoError(t, h.Submit(1, 0x02, pattern(150)))
	assert.Equal(t, 1.0, metricValue(t, r, "dwc2_active_channels", nil))
	pump(t, h, c)

	require.NoError(t, h.Submit(1, 0x82, make([]byte, 256)))
	pump(t, h, c)

	assert.Equal(t, 2.0, metricValue(t, r, "dwc2_channel_allocations_total", nil))
	assert.Equal(t, 0.0, metricValue(t, r, "dwc2_active_channels", nil))
	assert.Equal(t, 2.0, metricValue(t, r, "dwc2_transfers_total",
		map[string]string{"result": "success"}))
	assert.Equal(t, 150.0, metricValue(t, r, "dwc2_fifo_bytes_total",
		map[string]string{"direction": "out"}))
	assert.Equal(t, 150.0, metricValue(t, r, "dwc2_fifo_bytes_total",
		map[string]string{"direction": "in"}))
}

func TestMetricsChannelExhaustion(t *testing.T) {
	cfg := sim.DefaultConfig()
	cfg.Channels = 1
	h, _, r := newMetricsHCD(t, cfg, nil)
	openEP(t, h, 1, 0x81, hal.TransferBulk, 64)
	openEP(t, h, 1, 0x82, hal.TransferBulk, 64)

	require.NoError(t, h.Submit(1, 0x81, make([]byte, 8)))
	require.Error(t, h.Submit(1, 0x82, make([]byte, 8)))
	assert.Equal(t, 1.0, metricValue(t, r, "dwc2_channel_exhausted_total", nil))
}

func TestMetricsErrorCounters(t *testing.T) {
	h, c, r := newMetricsHCD(t, sim.DefaultConfig(), failingDevice{})
	openEP(t, h, 1, 0x02, hal.TransferBulk, 64)
	require.NoError(t, h.Submit(1, 0x02, nil))
	pump(t, h, c)

	assert.Equal(t, float64(errorMax), metricValue(t, r, "dwc2_transaction_errors_total", nil))
	assert.Equal(t, 1.0, metricValue(t, r, "dwc2_transfers_total",
		map[string]string{"result": "failed"}))
}

func TestMetricsWithoutRegisterer(t *testing.T) {
	h, c, _ := newTestHCD(t, sim.DefaultConfig(), sim.NewLoopback())
	openEP(t, h, 1, 0x02, hal.TransferBulk, 64)
	require.NoError(t, h.Submit(1, 0x02, pattern(10)))
	pump(t, h, c)
	assert.Zero(t, h.activeChannels())
}
