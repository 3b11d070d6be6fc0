package metrics

import "sync"

// observerBuffer is the channel buffer size for snapshot observers.
const observerBuffer = 8

// broadcaster fans out snapshots to multiple observers. A slow observer
// drops snapshots rather than blocking the sampling loop; the next
// snapshot supersedes anything missed.
type broadcaster struct {
	mu     sync.Mutex
	subs   []chan Snapshot
	closed bool
}

// subscribe adds a new observer and returns its channel.
func (b *broadcaster) subscribe() chan Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Snapshot, observerBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// unsubscribe removes an observer channel.
func (b *broadcaster) unsubscribe(ch chan Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// send broadcasts a snapshot to all observers.
func (b *broadcaster) send(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// slow observer — drop snapshot to avoid blocking
		}
	}
}

// close closes all observer channels and rejects further sends.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
