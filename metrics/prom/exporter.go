package prom

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Project-NEURIA/OpenNeuro/graph"
	"github.com/Project-NEURIA/OpenNeuro/metrics"
)

// Exporter translates metrics snapshots into Prometheus series and serves
// them from its own registry.
type Exporter struct {
	registry *prometheus.Registry
	set      *metricSet
}

// NewExporter creates an exporter with a fresh registry carrying the
// pipeline series plus Go runtime and process collectors.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	set := newMetricSet()
	for _, c := range set.all() {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Exporter{registry: reg, set: set}
}

// NewExporterWithRegistry creates an exporter over a caller-owned registry.
func NewExporterWithRegistry(reg *prometheus.Registry) *Exporter {
	set := newMetricSet()
	for _, c := range set.all() {
		reg.MustRegister(c)
	}
	return &Exporter{registry: reg, set: set}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler returns the scrape handler for the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Observe mirrors one snapshot into the registry, replacing all labeled
// series so removed entities drop out of the next scrape.
func (e *Exporter) Observe(snap metrics.Snapshot) {
	e.set.reset()

	running := 0
	for nodeID, node := range snap.Nodes {
		if node.Status == string(graph.StatusRunning) {
			running++
		}
		for chName, ch := range node.Channels {
			slot := slotOf(chName)
			e.set.channelMessages.WithLabelValues(nodeID, slot).Set(float64(ch.MsgCount))
			e.set.channelBytes.WithLabelValues(nodeID, slot).Set(float64(ch.ByteCount))
			e.set.bufferDepth.WithLabelValues(nodeID, slot).Set(float64(ch.BufferDepth))
			for subID, sub := range ch.Subscribers {
				e.set.subscriberMessages.WithLabelValues(nodeID, slot, subID).Set(float64(sub.MsgCount))
				e.set.subscriberBytes.WithLabelValues(nodeID, slot, subID).Set(float64(sub.ByteCount))
				e.set.subscriberLag.WithLabelValues(nodeID, slot, subID).Set(float64(sub.Lag))
			}
		}
	}
	e.set.nodesRunning.Set(float64(running))
}

// Run consumes snapshots from the engine until ctx is canceled or the
// engine shuts down.
func (e *Exporter) Run(ctx context.Context, engine *metrics.Engine) error {
	snaps, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			e.Observe(snap)
		}
	}
}

// slotOf extracts the slot part of a "node.slot" channel name.
func slotOf(chName string) string {
	if i := strings.LastIndexByte(chName, '.'); i >= 0 {
		return chName[i+1:]
	}
	return chName
}
