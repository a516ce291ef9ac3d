package events

import (
	"context"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/flow"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"go.uber.org/zap"
)

// Event reports a flow leaving the table
type Event struct {
	Type    flow.Reason `json:"type"`
	Flow    flow.Entry  `json:"flow"`
	At      time.Time   `json:"at"`
	TraceID string      `json:"trace_id,omitempty"`
}

// Sink delivers a batch of events somewhere durable or observable
type Sink interface {
	Publish(ctx context.Context, batch []Event) error
}

// LogSink writes every event as a structured log line.
// It is the sink when Redis is disabled and the fallback when it fails.
type LogSink struct{}

// Publish implements Sink
func (LogSink) Publish(_ context.Context, batch []Event) error {
	for _, e := range batch {
		fields := []zap.Field{
			zap.String("type", string(e.Type)),
			zap.String("peer", e.Flow.Key.Peer.String()),
			zap.Uint32("flow_id", e.Flow.Key.FlowID),
			zap.Uint64("packets", e.Flow.Packets),
			zap.Uint64("bytes", e.Flow.Bytes),
			zap.Duration("lifetime", e.Flow.LastSeen.Sub(e.Flow.FirstSeen)),
		}
		if e.TraceID != "" {
			fields = append(fields, zap.String("trace_id", e.TraceID))
		}
		logger.L.Info("flow_event", fields...)
	}
	return nil
}
