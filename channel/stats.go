package channel

// SubscriberStats is a point-in-time view of one subscriber's counters.
// Counts are cumulative since subscription; Depth is the current buffer fill.
type SubscriberStats struct {
	ID        string
	MsgCount  uint64
	ByteCount uint64
	Lag       uint64
	Depth     int
}

// Stats is a point-in-time view of a channel's counters. BufferDepth is the
// maximum fill across subscribers.
type Stats struct {
	Name        string
	ElemType    string
	MsgCount    uint64
	ByteCount   uint64
	LastSend    float64
	BufferDepth int
	Subscribers []SubscriberStats
}

// Stats samples the channel counters under the channel lock. It never
// blocks the producer beyond a brief counter read.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Name:        c.name,
		ElemType:    c.elemType,
		MsgCount:    c.msgCount,
		ByteCount:   c.byteCount,
		LastSend:    c.lastSend,
		Subscribers: make([]SubscriberStats, 0, len(c.subs)),
	}
	for _, sub := range c.subs {
		depth := len(sub.buf)
		if depth > st.BufferDepth {
			st.BufferDepth = depth
		}
		st.Subscribers = append(st.Subscribers, SubscriberStats{
			ID:        sub.id,
			MsgCount:  sub.msgCount.Load(),
			ByteCount: sub.byteCount.Load(),
			Lag:       sub.lag.Load(),
			Depth:     depth,
		})
	}
	return st
}
