package gateway

import (
	"github.com/SkynetNext/flow-gateway/internal/circuitbreaker"
	"github.com/SkynetNext/flow-gateway/internal/config"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/SkynetNext/flow-gateway/internal/metrics"
	"go.uber.org/zap"
)

// sinkBreakerTarget labels the event sink breaker in metrics
const sinkBreakerTarget = "redis"

// newSinkBreaker creates the breaker guarding the Redis event sink and
// mirrors its state into metrics
func newSinkBreaker(cfg config.EventsConfig) *circuitbreaker.Breaker {
	breaker := circuitbreaker.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerTimeout)
	breaker.OnStateChange(func(s circuitbreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(sinkBreakerTarget).Set(float64(s))
		logger.L.Info("event sink circuit breaker state changed",
			zap.String("target", sinkBreakerTarget),
			zap.Stringer("state", s),
		)
	})
	metrics.CircuitBreakerState.WithLabelValues(sinkBreakerTarget).Set(float64(breaker.State()))
	return breaker
}
