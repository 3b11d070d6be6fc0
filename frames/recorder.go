// Package frames keeps a bounded history of recently published items for
// the pipeline inspector. The recorder is a debugging aid: it never blocks
// producers and silently overwrites the oldest entries.
package frames

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Project-NEURIA/OpenNeuro/channel"
)

// DefaultHistory is the default number of retained entries.
const DefaultHistory = 100

// summaryLimit caps the rendered message preview length.
const summaryLimit = 120

// Snapshot is one recorded publish.
type Snapshot struct {
	Node      string  `json:"node"`
	Slot      string  `json:"slot"`
	Type      string  `json:"type"`
	Summary   string  `json:"message"`
	SizeBytes int     `json:"size_bytes"`
	Timestamp float64 `json:"timestamp"`
}

// Recorder is a fixed-size ring of publish snapshots.
type Recorder struct {
	mu    sync.Mutex
	ring  []Snapshot
	next  int
	count int
}

// NewRecorder creates a recorder retaining the last capacity entries.
// A capacity below one falls back to DefaultHistory.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = DefaultHistory
	}
	return &Recorder{ring: make([]Snapshot, capacity)}
}

// Record stores a snapshot of one published item. Nil-receiver safe so the
// runtime can run without an inspector attached.
func (r *Recorder) Record(node, slot, elemType string, item any) {
	if r == nil {
		return
	}

	snap := Snapshot{
		Node:      node,
		Slot:      slot,
		Type:      elemType,
		Summary:   summarize(item),
		SizeBytes: channel.SizeOf(item),
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}

	r.mu.Lock()
	r.ring[r.next] = snap
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	r.mu.Unlock()
}

// Recent returns the retained snapshots, oldest first.
func (r *Recorder) Recent() []Snapshot {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.ring)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)])
	}
	return out
}

// summarize renders a short preview of an item. Binary payloads are shown
// by size only.
func summarize(item any) string {
	var s string
	switch v := item.(type) {
	case []byte:
		return fmt.Sprintf("bytes[%d]", len(v))
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > summaryLimit {
		// Cut on a rune boundary so the preview stays valid UTF-8.
		cut := summaryLimit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}
