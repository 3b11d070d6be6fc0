// Package prom mirrors pipeline metrics snapshots into a Prometheus
// registry. Channel counters accumulate inside the runtime and are
// sampled, not incremented here, so every series is a gauge set from the
// latest snapshot.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "openneuro"

// channelLabels identify one channel series.
var channelLabels = []string{"node", "channel"}

// subscriberLabels identify one subscriber series.
var subscriberLabels = []string{"node", "channel", "subscriber"}

// metricSet holds the metric vectors of one exporter.
type metricSet struct {
	nodesRunning prometheus.Gauge

	channelMessages *prometheus.GaugeVec
	channelBytes    *prometheus.GaugeVec
	bufferDepth     *prometheus.GaugeVec

	subscriberMessages *prometheus.GaugeVec
	subscriberBytes    *prometheus.GaugeVec
	subscriberLag      *prometheus.GaugeVec
}

func newMetricSet() *metricSet {
	return &metricSet{
		nodesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_running",
			Help:      "Number of nodes currently in running status",
		}),
		channelMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_messages_total",
			Help:      "Cumulative messages published on a channel this session",
		}, channelLabels),
		channelBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_bytes_total",
			Help:      "Cumulative bytes published on a channel this session",
		}, channelLabels),
		bufferDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_buffer_depth",
			Help:      "Deepest subscriber buffer of a channel",
		}, channelLabels),
		subscriberMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriber_messages_total",
			Help:      "Cumulative messages delivered to a subscriber this session",
		}, subscriberLabels),
		subscriberBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriber_bytes_total",
			Help:      "Cumulative bytes delivered to a subscriber this session",
		}, subscriberLabels),
		subscriberLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriber_lag",
			Help:      "Messages dropped for a subscriber due to buffer pressure",
		}, subscriberLabels),
	}
}

// all returns every collector of the set for registration.
func (m *metricSet) all() []prometheus.Collector {
	return []prometheus.Collector{
		m.nodesRunning,
		m.channelMessages,
		m.channelBytes,
		m.bufferDepth,
		m.subscriberMessages,
		m.subscriberBytes,
		m.subscriberLag,
	}
}

// reset clears all labeled series so removed channels and subscribers
// disappear from the next scrape.
func (m *metricSet) reset() {
	m.channelMessages.Reset()
	m.channelBytes.Reset()
	m.bufferDepth.Reset()
	m.subscriberMessages.Reset()
	m.subscriberBytes.Reset()
	m.subscriberLag.Reset()
}
