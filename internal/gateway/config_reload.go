package gateway

import (
	"fmt"

	"github.com/SkynetNext/flow-gateway/internal/config"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/SkynetNext/flow-gateway/internal/metrics"
	"go.uber.org/zap"
)

// UpdateConfig updates the gateway configuration (hot reload).
// Limits, log level, idle timeout, read timeout and max message size take
// effect immediately; listener addresses, table sizing and the event sink
// need a restart.
func (g *Gateway) UpdateConfig(newConfig *config.Config) error {
	if err := config.ValidateConfig(newConfig); err != nil {
		metrics.ConfigReloads.WithLabelValues("invalid").Inc()
		return fmt.Errorf("invalid configuration: %w", err)
	}

	g.configMu.Lock()
	defer g.configMu.Unlock()
	old := g.config

	if newConfig.Security.MaxConnections != old.Security.MaxConnections {
		g.rateLimiter.SetMax(int64(newConfig.Security.MaxConnections))
		logger.L.Info("connection limiter updated",
			zap.Int("old_max", old.Security.MaxConnections),
			zap.Int("new_max", newConfig.Security.MaxConnections),
		)
	}

	if newConfig.Security.MaxConnectionsPerIP != old.Security.MaxConnectionsPerIP ||
		newConfig.Security.ConnectionRateLimit != old.Security.ConnectionRateLimit {
		g.ipLimiter.SetLimits(newConfig.Security.MaxConnectionsPerIP, newConfig.Security.ConnectionRateLimit)
		logger.L.Info("IP limiter updated",
			zap.Int("old_max_per_ip", old.Security.MaxConnectionsPerIP),
			zap.Int("new_max_per_ip", newConfig.Security.MaxConnectionsPerIP),
			zap.Int("old_rate_limit", old.Security.ConnectionRateLimit),
			zap.Int("new_rate_limit", newConfig.Security.ConnectionRateLimit),
		)
	}

	if newConfig.Server.LogLevel != old.Server.LogLevel {
		logger.SetLevel(newConfig.Server.LogLevel)
		logger.L.Info("log level updated", zap.String("level", logger.Level()))
	}

	if newConfig.Table.IdleTimeout != old.Table.IdleTimeout {
		g.idleTimeout.Store(int64(newConfig.Table.IdleTimeout))
		logger.L.Info("flow idle timeout updated",
			zap.Duration("old", old.Table.IdleTimeout),
			zap.Duration("new", newConfig.Table.IdleTimeout),
		)
	}

	if restartOnlyChanged(old, newConfig) {
		logger.L.Warn("listener, table, redis or events settings changed; restart to apply")
	}

	g.config = newConfig
	metrics.ConfigReloads.WithLabelValues("success").Inc()
	logger.L.Info("configuration updated successfully")
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (g *Gateway) GetConfig() *config.Config {
	g.configMu.RLock()
	defer g.configMu.RUnlock()
	return g.config
}

func restartOnlyChanged(old, cur *config.Config) bool {
	return old.Server.ListenAddr != cur.Server.ListenAddr ||
		old.Server.HTTPAddr != cur.Server.HTTPAddr ||
		old.Table.Capacity != cur.Table.Capacity ||
		old.Table.LoadFactor != cur.Table.LoadFactor ||
		old.Table.Shards != cur.Table.Shards ||
		old.Table.CleanupInterval != cur.Table.CleanupInterval ||
		old.Redis != cur.Redis ||
		old.Events != cur.Events
}
