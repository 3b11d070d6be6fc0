package metrics

import (
	"context"
	"time"

	"github.com/Project-NEURIA/OpenNeuro/logger"
	"github.com/Project-NEURIA/OpenNeuro/runtime"
)

// DefaultInterval is the sampling cadence when none is configured.
const DefaultInterval = 500 * time.Millisecond

// cumulative holds one entity's counters from the previous sample.
type cumulative struct {
	msgs  uint64
	bytes uint64
}

// Engine periodically samples the runtime and broadcasts snapshots.
// Sampling reads channel counters under their own locks and never blocks
// node tasks beyond that.
type Engine struct {
	rt       *runtime.Runtime
	interval time.Duration
	b        *broadcaster

	// previous cumulative values, keyed by channel name and by
	// channel name + "|" + subscriber id. Guarded by the sampling
	// loop being single-threaded plus Sample's external callers
	// being test-only.
	prevChans map[string]cumulative
	prevSubs  map[string]cumulative
}

// NewEngine creates an engine over the given runtime. A non-positive
// interval falls back to DefaultInterval.
func NewEngine(rt *runtime.Runtime, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		rt:        rt,
		interval:  interval,
		b:         &broadcaster{},
		prevChans: make(map[string]cumulative),
		prevSubs:  make(map[string]cumulative),
	}
}

// Interval returns the sampling cadence.
func (e *Engine) Interval() time.Duration { return e.interval }

// Subscribe attaches an observer. The returned cancel detaches it; the
// channel is closed when the engine shuts down.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := e.b.subscribe()
	return ch, func() { e.b.unsubscribe(ch) }
}

// Run samples on the configured cadence until ctx is canceled, then
// closes every observer.
func (e *Engine) Run(ctx context.Context) error {
	logger.Info("metrics engine started", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer e.b.close()

	for {
		select {
		case <-ctx.Done():
			logger.Info("metrics engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.b.send(e.Sample())
		}
	}
}

// Sample takes one snapshot and advances the delta baseline. Channels
// that vanished since the previous sample (session restart, node
// removal) are forgotten; a counter that moved backwards is treated as
// a fresh channel and its delta restarts from the cumulative value.
func (e *Engine) Sample() Snapshot {
	now := float64(time.Now().UnixNano()) / float64(time.Second)
	chanStats := e.rt.ChannelStats()

	snap := Snapshot{Timestamp: now, Nodes: make(map[string]NodeMetrics)}
	seenChans := make(map[string]struct{})
	seenSubs := make(map[string]struct{})

	for _, n := range e.rt.Graph().Nodes() {
		nm := NodeMetrics{
			Status:    string(n.Status),
			StartedAt: n.StartedAt,
			Error:     n.Err,
			Channels:  make(map[string]ChannelMetrics),
		}

		for _, st := range chanStats[n.ID] {
			seenChans[st.Name] = struct{}{}
			prev := e.prevChans[st.Name]
			cm := ChannelMetrics{
				ElemType:       st.ElemType,
				MsgCount:       st.MsgCount,
				ByteCount:      st.ByteCount,
				MsgCountDelta:  delta(st.MsgCount, prev.msgs),
				ByteCountDelta: delta(st.ByteCount, prev.bytes),
				LastSendTime:   st.LastSend,
				BufferDepth:    st.BufferDepth,
				Subscribers:    make(map[string]SubscriberMetrics),
			}
			e.prevChans[st.Name] = cumulative{msgs: st.MsgCount, bytes: st.ByteCount}

			for _, sub := range st.Subscribers {
				key := st.Name + "|" + sub.ID
				seenSubs[key] = struct{}{}
				subPrev := e.prevSubs[key]
				cm.Subscribers[sub.ID] = SubscriberMetrics{
					Lag:            sub.Lag,
					MsgCount:       sub.MsgCount,
					ByteCount:      sub.ByteCount,
					MsgCountDelta:  delta(sub.MsgCount, subPrev.msgs),
					ByteCountDelta: delta(sub.ByteCount, subPrev.bytes),
					BufferDepth:    sub.Depth,
				}
				e.prevSubs[key] = cumulative{msgs: sub.MsgCount, bytes: sub.ByteCount}
			}

			nm.Channels[st.Name] = cm
		}

		snap.Nodes[n.ID] = nm
	}

	for name := range e.prevChans {
		if _, ok := seenChans[name]; !ok {
			delete(e.prevChans, name)
		}
	}
	for key := range e.prevSubs {
		if _, ok := seenSubs[key]; !ok {
			delete(e.prevSubs, key)
		}
	}

	return snap
}

// delta returns cur-prev, restarting from cur when the counter reset.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}
