package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/circuitbreaker"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/SkynetNext/flow-gateway/internal/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options configures a Batcher
type Options struct {
	// Flush after this many events
	BatchSize int

	// Flush at least this often
	FlushInterval time.Duration

	// Per-flush publish deadline
	PublishTimeout time.Duration

	// Optional; guards the sink. Batches rejected or failed by the sink go
	// to Fallback.
	Breaker *circuitbreaker.Breaker

	// Receives batches the sink could not take. Defaults to LogSink.
	Fallback Sink
}

// Batcher buffers events and publishes them in batches from one goroutine.
// Record never blocks the caller; when the buffer is full the event is
// dropped.
type Batcher struct {
	sink     Sink
	opts     Options
	eventCh  chan Event
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  atomic.Bool
}

// NewBatcher creates a batcher publishing to sink
func NewBatcher(sink Sink, opts Options) *Batcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 3 * time.Second
	}
	if opts.Fallback == nil {
		opts.Fallback = LogSink{}
	}
	return &Batcher{
		sink:    sink,
		opts:    opts,
		eventCh: make(chan Event, opts.BatchSize*2), // Buffer 2x batch size
		stopCh:  make(chan struct{}),
	}
}

// Start starts the batch processing goroutine
func (b *Batcher) Start() {
	b.wg.Add(1)
	go b.processBatches()
}

// Record queues an event. ctx only contributes its trace ID.
// It reports whether the event was accepted.
func (b *Batcher) Record(ctx context.Context, e Event) bool {
	if b.stopped.Load() {
		metrics.EventsDropped.WithLabelValues("stopped").Inc()
		return false
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		e.TraceID = span.SpanContext().TraceID().String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	// Non-blocking send
	select {
	case b.eventCh <- e:
		return true
	default:
		metrics.EventsDropped.WithLabelValues("buffer_full").Inc()
		logger.L.Warn("event buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("flow", e.Flow.Key.String()),
		)
		return false
	}
}

// Shutdown stops accepting events, flushes what is buffered and waits for
// the processing goroutine or ctx, whichever comes first.
func (b *Batcher) Shutdown(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.stopCh)
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processBatches processes events in batches
func (b *Batcher) processBatches() {
	defer b.wg.Done()

	batch := make([]Event, 0, b.opts.BatchSize)
	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			// Drain whatever was queued before stop
		drain:
			for {
				select {
				case e := <-b.eventCh:
					batch = append(batch, e)
					if len(batch) >= b.opts.BatchSize {
						b.flush(batch)
						batch = batch[:0]
					}
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				b.flush(batch)
			}
			return
		case e := <-b.eventCh:
			batch = append(batch, e)
			if len(batch) >= b.opts.BatchSize {
				b.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flush publishes one batch. The sink must not keep the slice.
func (b *Batcher) flush(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.PublishTimeout)
	defer cancel()

	publish := func() error { return b.sink.Publish(ctx, batch) }

	var err error
	if b.opts.Breaker != nil {
		err = b.opts.Breaker.Do(publish)
	} else {
		err = publish()
	}
	if err == nil {
		metrics.EventsPublished.Add(float64(len(batch)))
		return
	}

	reason := "sink_error"
	if errors.Is(err, circuitbreaker.ErrOpen) {
		reason = "breaker_open"
	} else {
		logger.L.Warn("event sink publish failed, using fallback",
			zap.Int("batch", len(batch)),
			zap.Error(err),
		)
	}
	metrics.EventsDropped.WithLabelValues(reason).Add(float64(len(batch)))

	if err := b.opts.Fallback.Publish(ctx, batch); err != nil {
		logger.L.Error("event fallback publish failed", zap.Error(err))
	}
}
