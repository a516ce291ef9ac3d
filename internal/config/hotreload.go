package config

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/logger"
	"go.uber.org/zap"
)

// HotReloadManager manages hot reloading of configuration
type HotReloadManager struct {
	config     *Config
	mu         sync.RWMutex
	reloadFunc func(*Config) error
}

// NewHotReloadManager creates a new hot reload manager
func NewHotReloadManager(initialConfig *Config, reloadFunc func(*Config) error) *HotReloadManager {
	return &HotReloadManager{
		config:     initialConfig,
		reloadFunc: reloadFunc,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (h *HotReloadManager) GetConfig() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// UpdateConfig validates newConfig, hands it to the reload function and
// makes it current. It reports whether anything changed.
func (h *HotReloadManager) UpdateConfig(newConfig *Config) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if reflect.DeepEqual(h.config, newConfig) {
		return false, nil
	}

	// Validate new configuration
	if err := validateConfig(newConfig); err != nil {
		return false, err
	}

	// Call reload function if provided
	if h.reloadFunc != nil {
		if err := h.reloadFunc(newConfig); err != nil {
			return false, err
		}
	}

	h.config = newConfig
	return true, nil
}

// WatchConfigFile re-reads configPath every interval and applies changes
// until ctx is cancelled. Bad files are logged and the current config kept.
func (h *HotReloadManager) WatchConfigFile(ctx context.Context, configPath string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			newConfig, err := Load(configPath)
			if err != nil {
				logger.L.Warn("config reload: keeping current configuration",
					zap.String("path", configPath),
					zap.Error(err),
				)
				continue
			}

			changed, err := h.UpdateConfig(newConfig)
			if err != nil {
				logger.L.Warn("config reload rejected",
					zap.String("path", configPath),
					zap.Error(err),
				)
				continue
			}
			if changed {
				logger.L.Info("configuration reloaded", zap.String("path", configPath))
			}
		}
	}
}
