package prom

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-NEURIA/OpenNeuro/metrics"
)

func sampleSnapshot() metrics.Snapshot {
	started := 100.5
	return metrics.Snapshot{
		Timestamp: 101.0,
		Nodes: map[string]metrics.NodeMetrics{
			"mic": {
				Status:    "running",
				StartedAt: &started,
				Channels: map[string]metrics.ChannelMetrics{
					"mic.out": {
						ElemType:    "bytes",
						MsgCount:    40,
						ByteCount:   64000,
						BufferDepth: 3,
						Subscribers: map[string]metrics.SubscriberMetrics{
							"vad": {Lag: 5, MsgCount: 35, ByteCount: 56000},
						},
					},
				},
			},
			"vad": {
				Status:   "stopped",
				Channels: map[string]metrics.ChannelMetrics{},
			},
		},
	}
}

func TestObserve(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleSnapshot())

	assert.Equal(t, 1.0, testutil.ToFloat64(e.set.nodesRunning))
	assert.Equal(t, 40.0, testutil.ToFloat64(e.set.channelMessages.WithLabelValues("mic", "out")))
	assert.Equal(t, 64000.0, testutil.ToFloat64(e.set.channelBytes.WithLabelValues("mic", "out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.set.bufferDepth.WithLabelValues("mic", "out")))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.set.subscriberLag.WithLabelValues("mic", "out", "vad")))
	assert.Equal(t, 35.0, testutil.ToFloat64(e.set.subscriberMessages.WithLabelValues("mic", "out", "vad")))
}

func TestObserveReplacesSeries(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleSnapshot())

	// A later snapshot without the channel removes its series.
	e.Observe(metrics.Snapshot{Nodes: map[string]metrics.NodeMetrics{
		"vad": {Status: "stopped"},
	}})

	assert.Equal(t, 0.0, testutil.ToFloat64(e.set.nodesRunning))
	assert.Equal(t, 0, testutil.CollectAndCount(e.set.channelMessages))
	assert.Equal(t, 0, testutil.CollectAndCount(e.set.subscriberLag))
}

func TestHandlerServesScrape(t *testing.T) {
	e := NewExporter()
	e.Observe(sampleSnapshot())

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "openneuro_nodes_running 1"))
	assert.True(t, strings.Contains(text, `openneuro_subscriber_lag{channel="out",node="mic",subscriber="vad"} 5`))
}

func TestSlotOf(t *testing.T) {
	assert.Equal(t, "out", slotOf("mic.out"))
	assert.Equal(t, "bare", slotOf("bare"))
}
