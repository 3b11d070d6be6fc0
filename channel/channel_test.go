package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-NEURIA/OpenNeuro/errors"
)

type sized struct{ n int }

func (s sized) SizeBytes() int { return s.n }

func TestSizeOf(t *testing.T) {
	tests := []struct {
		name string
		item any
		want int
	}{
		{"bytes", []byte("abcd"), 4},
		{"string", "abc", 3},
		{"sizer", sized{n: 17}, 17},
		{"int has no natural size", 42, 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SizeOf(tt.item))
		})
	}
}

func TestSubscribeDuplicate(t *testing.T) {
	ch := New("src.out", "int", 4)

	_, err := ch.Subscribe("a")
	require.NoError(t, err)

	_, err = ch.Subscribe("a")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlreadySubscribed))
}

func TestSubscribeClosed(t *testing.T) {
	ch := New("src.out", "int", 4)
	ch.Close()

	_, err := ch.Subscribe("a")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindChannelClosed))
}

func TestPublishReceiveFIFO(t *testing.T) {
	ch := New("src.out", "int", 16)
	sub, err := ch.Subscribe("sink")
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		ch.Publish(i)
	}

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		item, ok := sub.Receive(ctx)
		require.True(t, ok)
		assert.Equal(t, i, item)
	}
}

func TestFanOutIndependentSequences(t *testing.T) {
	ch := New("src.out", "int", 64)
	a, err := ch.Subscribe("a")
	require.NoError(t, err)
	b, err := ch.Subscribe("b")
	require.NoError(t, err)

	const n = 50
	for i := 0; i < n; i++ {
		ch.Publish(i)
	}

	ctx := context.Background()
	for _, sub := range []*Subscription{a, b} {
		for i := 0; i < n; i++ {
			item, ok := sub.Receive(ctx)
			require.True(t, ok)
			assert.Equal(t, i, item)
		}
	}
}

func TestDropOldestAndLag(t *testing.T) {
	ch := New("src.out", "int", 8)
	sub, err := ch.Subscribe("slow")
	require.NoError(t, err)

	// 20 published into a capacity-8 buffer: 12 oldest dropped.
	for i := 0; i < 20; i++ {
		ch.Publish(i)
	}

	assert.Equal(t, uint64(12), sub.Lag())

	// The survivors are the newest 8, still in order.
	ctx := context.Background()
	for i := 12; i < 20; i++ {
		item, ok := sub.Receive(ctx)
		require.True(t, ok)
		assert.Equal(t, i, item)
	}
}

func TestSlowSubscriberDoesNotDisturbFast(t *testing.T) {
	ch := New("src.out", "int", 4)
	slow, err := ch.Subscribe("slow")
	require.NoError(t, err)
	fast, err := ch.Subscribe("fast")
	require.NoError(t, err)

	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(1)
	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			item, ok := fast.Receive(ctx)
			if !ok {
				return
			}
			got = append(got, item.(int))
		}
	}()

	for i := 0; i < n; i++ {
		ch.Publish(i)
		time.Sleep(100 * time.Microsecond)
	}
	wg.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	// slow never received; it dropped everything beyond its capacity.
	assert.Equal(t, uint64(n-4), slow.Lag())
}

func TestCloseWakesReceiversAndRetainsBuffer(t *testing.T) {
	ch := New("src.out", "int", 8)
	sub, err := ch.Subscribe("sink")
	require.NoError(t, err)

	ch.Publish(1)
	ch.Publish(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain what is available, then block.
		ctx := context.Background()
		for {
			if _, ok := sub.Receive(ctx); !ok {
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}

	// Publish after close is a no-op.
	before := ch.Stats().MsgCount
	ch.Publish(3)
	assert.Equal(t, before, ch.Stats().MsgCount)
}

func TestCloseBeforeDrainPreservesItems(t *testing.T) {
	ch := New("src.out", "int", 8)
	sub, err := ch.Subscribe("sink")
	require.NoError(t, err)

	ch.Publish(1)
	ch.Publish(2)
	ch.Close()

	// Closure wins over buffered items; the buffer is retained for inspection.
	_, ok := sub.Receive(context.Background())
	assert.False(t, ok)

	st := ch.Stats()
	require.Len(t, st.Subscribers, 1)
	assert.Equal(t, 2, st.Subscribers[0].Depth)
}

func TestPublishZeroSubscribersCountsAtChannelLevel(t *testing.T) {
	ch := New("src.out", "bytes", 8)

	ch.Publish([]byte("abcdef"))
	st := ch.Stats()
	assert.Equal(t, uint64(1), st.MsgCount)
	assert.Equal(t, uint64(6), st.ByteCount)
	assert.NotZero(t, st.LastSend)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	ch := New("src.out", "int", 8)
	_, err := ch.Subscribe("a")
	require.NoError(t, err)

	ch.Publish(1)
	ch.Unsubscribe("a")
	ch.Unsubscribe("a")

	assert.Empty(t, ch.Stats().Subscribers)
}

func TestReceiveContextCancel(t *testing.T) {
	ch := New("src.out", "int", 8)
	sub, err := ch.Subscribe("a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := sub.Receive(ctx)
		done <- ok
	}()

	cancel()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Receive did not observe cancellation")
	}
}

func TestStatsCounters(t *testing.T) {
	ch := New("src.out", "bytes", 8)
	sub, err := ch.Subscribe("a")
	require.NoError(t, err)

	ch.Publish([]byte("xy"))
	ch.Publish([]byte("z"))

	ctx := context.Background()
	_, ok := sub.Receive(ctx)
	require.True(t, ok)

	st := ch.Stats()
	assert.Equal(t, uint64(2), st.MsgCount)
	assert.Equal(t, uint64(3), st.ByteCount)
	require.Len(t, st.Subscribers, 1)
	assert.Equal(t, uint64(1), st.Subscribers[0].MsgCount)
	assert.Equal(t, uint64(2), st.Subscribers[0].ByteCount)
	assert.Equal(t, 1, st.BufferDepth)
}
