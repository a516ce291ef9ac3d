package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/SkynetNext/flow-gateway/internal/config"
	"github.com/SkynetNext/flow-gateway/internal/gateway"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/SkynetNext/flow-gateway/internal/tracing"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	pflag.StringVarP(&configPath, "config", "c", "config/config.yaml", "Configuration file path")
	pflag.StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error (default: server.log_level, then $LOG_LEVEL)")
	pflag.BoolVar(&showVersion, "version", false, "Print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("flow-gateway %s (commit %s, built %s)\n", version, gitCommit, buildTime)
		return
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flag beats environment beats config file
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize tracing (optional, if Jaeger endpoint is provided)
	jaegerEndpoint := cfg.Tracing.JaegerEndpoint
	if env := os.Getenv("JAEGER_ENDPOINT"); env != "" {
		jaegerEndpoint = env
	}
	if jaegerEndpoint != "" {
		if err := tracing.Init(cfg.Tracing.ServiceName, version, jaegerEndpoint); err != nil {
			logger.L.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			logger.L.Info("Tracing initialized", zap.String("endpoint", jaegerEndpoint))
		}
	}

	// Create gateway instance
	gw, err := gateway.New(cfg, configPath)
	if err != nil {
		logger.L.Fatal("Failed to create gateway", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start service
	if err := gw.Start(ctx); err != nil {
		logger.L.Fatal("Failed to start gateway", zap.Error(err))
	}

	logger.L.Info("Flow Gateway started successfully",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("git_commit", gitCommit),
		zap.String("listen_addr", gw.Addr().String()),
		zap.String("http_addr", gw.HTTPAddr().String()),
		zap.Int("table_capacity", gw.Table().Capacity()),
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.L.Info("Received stop signal, starting graceful shutdown...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gw.GetConfig().GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Error during gateway shutdown", zap.Error(err))
	}
	cancel()

	// Shutdown tracing
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.L.Warn("Error during tracing shutdown", zap.Error(err))
	}

	logger.L.Info("Flow Gateway closed")
}
