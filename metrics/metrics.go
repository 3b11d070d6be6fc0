// Package metrics samples the runtime on a fixed cadence and fans the
// resulting snapshots out to attached observers. A snapshot carries both
// instantaneous cumulative counters and the delta since the previous
// sample; lag is reported as its current value because it accumulates on
// the channel and is never cleared by the core.
package metrics

// SubscriberMetrics is one subscriber's view of a channel in a snapshot.
type SubscriberMetrics struct {
	Lag            uint64 `json:"lag"`
	MsgCount       uint64 `json:"msg_count"`
	ByteCount      uint64 `json:"byte_count"`
	MsgCountDelta  uint64 `json:"msg_count_delta"`
	ByteCountDelta uint64 `json:"byte_count_delta"`
	BufferDepth    int    `json:"buffer_depth"`
}

// ChannelMetrics is one channel's counters in a snapshot, keyed under the
// producing node.
type ChannelMetrics struct {
	ElemType       string                       `json:"type"`
	MsgCount       uint64                       `json:"msg_count"`
	ByteCount      uint64                       `json:"byte_count"`
	MsgCountDelta  uint64                       `json:"msg_count_delta"`
	ByteCountDelta uint64                       `json:"byte_count_delta"`
	LastSendTime   float64                      `json:"last_send_time"`
	BufferDepth    int                          `json:"buffer_depth"`
	Subscribers    map[string]SubscriberMetrics `json:"subscribers"`
}

// NodeMetrics is one node's status plus the channels it produces.
type NodeMetrics struct {
	Status    string                    `json:"status"`
	StartedAt *float64                  `json:"started_at"`
	Error     string                    `json:"error,omitempty"`
	Channels  map[string]ChannelMetrics `json:"channels"`
}

// Snapshot is one timestamped metrics record covering every node and
// channel of the graph.
type Snapshot struct {
	Timestamp float64                `json:"timestamp"`
	Nodes     map[string]NodeMetrics `json:"nodes"`
}
