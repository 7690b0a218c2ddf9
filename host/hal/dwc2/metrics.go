package dwc2

import "github.com/prometheus/client_golang/prometheus"

// metrics are the HCD's Prometheus collectors, named with the "dwc2_"
// prefix when registered.
type metrics struct {
	channelAllocs    prometheus.Counter
	channelExhausted prometheus.Counter
	activeChannels   prometheus.Gauge
	transfers        *prometheus.CounterVec
	nakRetries       prometheus.Counter
	xactErrors       prometheus.Counter
	toggleErrors     prometheus.Counter
	fifoBytes        *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		channelAllocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "channel_allocations_total",
			Help: "The number of host channels bound to a transfer.",
		}),
		channelExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "channel_exhausted_total",
			Help: "The number of submissions refused because every channel was busy.",
		}),
		activeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_channels",
			Help: "The number of host channels currently bound to a transfer.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfers_total",
			Help: "The number of completed transfers by result.",
		}, []string{"result"}),
		nakRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nak_retries_total",
			Help: "The number of IN tokens reissued after a NAK.",
		}),
		xactErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transaction_errors_total",
			Help: "The number of transaction errors reported by host channels.",
		}),
		toggleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "data_toggle_errors_total",
			Help: "The number of receive status entries reporting a data toggle mismatch.",
		}),
		fifoBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fifo_bytes_total",
			Help: "The number of payload bytes moved through the data FIFOs.",
		}, []string{"direction"}),
	}

	if reg != nil {
		prometheus.WrapRegistererWithPrefix("dwc2_", reg).MustRegister(
			m.channelAllocs,
			m.channelExhausted,
			m.activeChannels,
			m.transfers,
			m.nakRetries,
			m.xactErrors,
			m.toggleErrors,
			m.fifoBytes,
		)
	}

	return m
}
