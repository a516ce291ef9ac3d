package events

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/circuitbreaker"
	"github.com/SkynetNext/flow-gateway/internal/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (s *fakeSink) Publish(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func testEvent(id uint32) Event {
	return Event{
		Type: flow.ReasonEvicted,
		Flow: flow.Entry{Key: flow.Key{Peer: netip.MustParseAddrPort("10.0.0.1:4000"), FlowID: id}},
	}
}

func TestBatcher_FlushBySize(t *testing.T) {
	sink := &fakeSink{}
	b := NewBatcher(sink, Options{BatchSize: 2, FlushInterval: time.Hour})
	b.Start()
	defer b.Shutdown(context.Background())

	require.True(t, b.Record(context.Background(), testEvent(1)))
	require.True(t, b.Record(context.Background(), testEvent(2)))

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.batches, 1)
	assert.Equal(t, uint32(1), sink.batches[0][0].Flow.Key.FlowID)
	assert.False(t, sink.batches[0][0].At.IsZero(), "timestamp filled in")
}

func TestBatcher_FlushByInterval(t *testing.T) {
	sink := &fakeSink{}
	b := NewBatcher(sink, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	b.Start()
	defer b.Shutdown(context.Background())

	b.Record(context.Background(), testEvent(1))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBatcher_ShutdownFlushes(t *testing.T) {
	sink := &fakeSink{}
	b := NewBatcher(sink, Options{BatchSize: 100, FlushInterval: time.Hour})
	b.Start()

	for i := uint32(0); i < 5; i++ {
		b.Record(context.Background(), testEvent(i))
	}
	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, 5, sink.count())

	assert.False(t, b.Record(context.Background(), testEvent(9)), "closed batcher drops")
	assert.NoError(t, b.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestBatcher_BufferFullDrops(t *testing.T) {
	b := NewBatcher(&fakeSink{}, Options{BatchSize: 2})
	// not started: nothing drains the buffer
	for i := uint32(0); i < 4; i++ {
		require.True(t, b.Record(context.Background(), testEvent(i)))
	}
	assert.False(t, b.Record(context.Background(), testEvent(5)))
}

func TestBatcher_FallbackOnSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("redis down")}
	fallback := &fakeSink{}
	breaker := circuitbreaker.NewBreaker(1, time.Hour)
	b := NewBatcher(sink, Options{BatchSize: 1, FlushInterval: time.Hour, Breaker: breaker, Fallback: fallback})
	b.Start()

	b.Record(context.Background(), testEvent(1))
	require.Eventually(t, func() bool { return fallback.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	// breaker open: sink is skipped entirely
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	b.Record(context.Background(), testEvent(2))
	require.NoError(t, b.Shutdown(context.Background()))

	assert.Equal(t, 2, fallback.count())
	assert.Equal(t, 0, sink.count())
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.Publish(context.Background(), []Event{testEvent(1)}))
}
