package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/buffer"
	"github.com/SkynetNext/flow-gateway/internal/circuitbreaker"
	"github.com/SkynetNext/flow-gateway/internal/config"
	"github.com/SkynetNext/flow-gateway/internal/events"
	"github.com/SkynetNext/flow-gateway/internal/flow"
	"github.com/SkynetNext/flow-gateway/internal/logger"
	"github.com/SkynetNext/flow-gateway/internal/metrics"
	"github.com/SkynetNext/flow-gateway/internal/protocol"
	"github.com/SkynetNext/flow-gateway/internal/ratelimit"
	"github.com/SkynetNext/flow-gateway/internal/redis"
	"github.com/SkynetNext/flow-gateway/internal/retry"
	"github.com/SkynetNext/flow-gateway/internal/tracing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// metricsRefreshInterval is how often table occupancy gauges are updated
const metricsRefreshInterval = 5 * time.Second

// Gateway accepts framed client connections and accounts every frame to a
// flow in a fixed-capacity flow table.
type Gateway struct {
	config     *config.Config
	configPath string
	configMu   sync.RWMutex // Protects config updates
	reload     *config.HotReloadManager

	// Components
	table       *flow.Table
	batcher     *events.Batcher
	redisClient *redis.Client           // nil when events are disabled
	breaker     *circuitbreaker.Breaker // guards redisClient

	// Admission
	rateLimiter *ratelimit.Limiter
	ipLimiter   *ratelimit.IPLimiter

	idleTimeout atomic.Int64 // time.Duration, hot reloadable

	// Network
	listener     net.Listener
	httpListener net.Listener
	httpServer   *http.Server
	conns        sync.Map // net.Conn -> struct{}

	// Background loops
	loops       *errgroup.Group
	cancelLoops context.CancelFunc

	// State
	draining int32 // Atomic: 0=Running, 1=Draining
	wg       sync.WaitGroup
}

// New creates a gateway. configPath is re-read for hot reload when
// cfg.ReloadInterval is set; pass "" to disable.
func New(cfg *config.Config, configPath string) (*Gateway, error) {
	g := &Gateway{
		config:      cfg,
		configPath:  configPath,
		rateLimiter: ratelimit.NewLimiter(int64(cfg.Security.MaxConnections)),
		ipLimiter: ratelimit.NewIPLimiter(
			cfg.Security.MaxConnectionsPerIP,
			cfg.Security.ConnectionRateLimit,
		),
	}
	g.idleTimeout.Store(int64(cfg.Table.IdleTimeout))

	table, err := flow.NewTable(flow.Options{
		Capacity:   cfg.Table.Capacity,
		LoadFactor: cfg.Table.LoadFactor,
		Shards:     cfg.Table.Shards,
		OnRemove:   g.onFlowRemoved,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create flow table: %w", err)
	}
	g.table = table
	metrics.FlowTableCapacity.Set(float64(table.Capacity()))

	var sink events.Sink = events.LogSink{}
	if cfg.Events.Enabled {
		redisCli := redis.NewClient(&cfg.Redis, cfg.Events.RecentLimit)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout*time.Duration(cfg.Events.MaxRetries+1))
		defer cancel()
		err := retry.Do(ctx, retry.RetryConfig{
			MaxRetries: cfg.Events.MaxRetries,
			RetryDelay: cfg.Events.RetryDelay,
			OnRetry: func(attempt int, err error) {
				logger.L.Warn("redis ping failed, retrying",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			},
		}, redisCli.Ping)
		if err != nil {
			redisCli.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		g.redisClient = redisCli
		g.breaker = newSinkBreaker(cfg.Events)
		sink = redisCli
	}

	g.batcher = events.NewBatcher(sink, events.Options{
		BatchSize:     cfg.Events.BatchSize,
		FlushInterval: cfg.Events.FlushInterval,
		Breaker:       g.breaker,
	})
	g.reload = config.NewHotReloadManager(cfg, g.UpdateConfig)

	return g, nil
}

// Start starts the gateway service
func (g *Gateway) Start(ctx context.Context) error {
	// 1. Event publishing
	g.batcher.Start()

	// 2. Background loops
	loopCtx, cancel := context.WithCancel(ctx)
	g.cancelLoops = cancel
	g.loops, loopCtx = errgroup.WithContext(loopCtx)
	g.loops.Go(func() error { return g.cleanupLoop(loopCtx) })
	g.loops.Go(func() error { return g.metricsLoop(loopCtx) })
	if g.configPath != "" && g.config.ReloadInterval > 0 {
		path, interval := g.configPath, g.config.ReloadInterval
		g.loops.Go(func() error { return g.reload.WatchConfigFile(loopCtx, path, interval) })
	}

	// 3. Metrics, health and flow API server
	if err := g.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	// 4. Client listener
	if err := g.startListener(ctx); err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the gateway. Connections still open when
// ctx expires are closed.
func (g *Gateway) Shutdown(ctx context.Context) error {
	// 1. Enter drain mode
	atomic.StoreInt32(&g.draining, 1)

	// 2. Stop accepting new connections
	if g.listener != nil {
		g.listener.Close()
	}

	// 3. Wait for active connections to close (with timeout)
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		n := 0
		g.conns.Range(func(key, _ any) bool {
			key.(net.Conn).Close()
			n++
			return true
		})
		logger.L.Warn("shutdown timeout, closed remaining connections", zap.Int("count", n))
		<-done
	}

	// 4. Stop background loops
	if g.cancelLoops != nil {
		g.cancelLoops()
		if err := g.loops.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.L.Warn("background loop stopped with error", zap.Error(err))
		}
	}

	// 5. Shutdown http server
	if g.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}

	// 6. Flush flow events, including the closes from step 3
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.batcher.Shutdown(flushCtx); err != nil {
		logger.L.Warn("flow events not fully flushed", zap.Error(err))
	}

	// 7. Close Redis connection
	if g.redisClient != nil {
		if err := g.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}

	return nil
}

// Addr returns the client listener address once started
func (g *Gateway) Addr() net.Addr {
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// HTTPAddr returns the http server address once started
func (g *Gateway) HTTPAddr() net.Addr {
	if g.httpListener == nil {
		return nil
	}
	return g.httpListener.Addr()
}

// Table returns the flow table
func (g *Gateway) Table() *flow.Table {
	return g.table
}

// startHTTPServer starts the metrics, health check and flow API server
func (g *Gateway) startHTTPServer() error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return err
	}
	g.httpListener = ln
	g.httpServer = &http.Server{
		Handler:           g.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.L.Error("http server error", zap.Error(err))
		}
	}()

	logger.L.Info("http server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// startListener starts the client listener
func (g *Gateway) startListener(ctx context.Context) error {
	var err error
	g.listener, err = net.Listen("tcp", g.config.Server.ListenAddr)
	if err != nil {
		return err
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.acceptLoop(ctx)
	}()

	logger.L.Info("listener started", zap.String("addr", g.listener.Addr().String()))
	return nil
}

// acceptLoop accepts incoming connections
func (g *Gateway) acceptLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Set accept timeout to allow context cancellation check
		if tcpListener, ok := g.listener.(*net.TCPListener); ok {
			tcpListener.SetDeadline(time.Now().Add(1 * time.Second))
		}

		conn, err := g.listener.Accept()
		if err != nil {
			// Check if listener was closed (normal shutdown)
			if atomic.LoadInt32(&g.draining) == 1 || errors.Is(err, net.ErrClosed) {
				return
			}
			// Check for timeout (expected when checking context)
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			logger.L.Warn("accept connection error", zap.Error(err))
			continue
		}

		g.wg.Add(1)
		go func(c net.Conn) {
			defer g.wg.Done()
			g.handleConnection(ctx, c)
		}(conn)
	}
}

// handleConnection admits a client connection and serves its frames
func (g *Gateway) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	g.conns.Store(conn, struct{}{})
	defer g.conns.Delete(conn)

	remoteAddr := conn.RemoteAddr().String()

	// Create span for distributed tracing
	ctx, span := tracing.StartSpan(ctx, "gateway.handle_connection")
	defer span.End()

	ip := extractIP(remoteAddr)

	// IP-based rate limiting
	if !g.ipLimiter.Allow(ip) {
		logger.WarnWithTrace(ctx, "IP rate limit exceeded",
			zap.String("remote_addr", remoteAddr),
			zap.String("ip", ip),
		)
		metrics.IncConnectionRejected("ip_limit")
		return
	}
	defer g.ipLimiter.Release(ip)

	// Global connection limit
	if !g.rateLimiter.Allow() {
		logger.WarnWithTrace(ctx, "connection limit exceeded",
			zap.String("remote_addr", remoteAddr),
			zap.Int64("max_connections", g.rateLimiter.Max()),
			zap.Int64("current_connections", g.rateLimiter.Current()),
		)
		metrics.IncConnectionRejected("max_connections")
		return
	}
	defer g.rateLimiter.Release()

	metrics.TotalConnections.Inc()
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	logger.DebugWithTrace(ctx, "new connection", zap.String("remote_addr", remoteAddr))

	flows := newConnFlows(peerOf(conn.RemoteAddr()), g.table.Capacity())
	defer func() {
		if n := g.releaseFlows(flows); n > 0 {
			logger.DebugWithTrace(ctx, "released flows of closed connection",
				zap.String("remote_addr", remoteAddr),
				zap.Int("flows", n),
			)
		}
	}()

	err := g.serveFrames(conn, flows)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	case errors.Is(err, protocol.ErrMessageTooLarge):
		logger.WarnWithTrace(ctx, "message too large, closing connection",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		metrics.IncConnectionRejected("message_too_large")
	default:
		logger.DebugWithTrace(ctx, "connection closed",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// serveFrames reads frames until the connection fails or the gateway drains
func (g *Gateway) serveFrames(conn net.Conn, flows *connFlows) error {
	for atomic.LoadInt32(&g.draining) == 0 {
		// Thread-safe read, supports hot reload
		g.configMu.RLock()
		readTimeout := g.config.Server.ReadTimeout
		maxMessageSize := g.config.Security.MaxMessageSize
		g.configMu.RUnlock()

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		h, body, err := protocol.ReadFrame(conn, maxMessageSize)
		if err != nil {
			return err
		}
		// Bodies are opaque to the gateway
		buffer.Put(body)

		metrics.BytesProcessed.Add(float64(protocol.HeaderSize + int(h.Length)))
		key := flows.key(h.FlowID)

		switch h.MessageID {
		case protocol.MessageFlowClose:
			metrics.FramesProcessed.WithLabelValues("close").Inc()
			g.table.Close(key)
			flows.forget(h.FlowID)
		default:
			metrics.FramesProcessed.WithLabelValues("data").Inc()
			if _, created := g.table.Observe(key, int(h.Length), time.Now()); created {
				metrics.FlowLookups.WithLabelValues("miss").Inc()
				flows.add(h.FlowID)
			} else {
				metrics.FlowLookups.WithLabelValues("hit").Inc()
			}
		}
	}
	return nil
}

// onFlowRemoved runs for every flow leaving the table outside of Reset
func (g *Gateway) onFlowRemoved(e flow.Entry, reason flow.Reason) {
	metrics.FlowsRemoved.WithLabelValues(string(reason)).Inc()
	g.batcher.Record(context.Background(), events.Event{Type: reason, Flow: e, At: time.Now()})
}

// cleanupLoop releases idle flows
func (g *Gateway) cleanupLoop(ctx context.Context) error {
	g.configMu.RLock()
	interval := g.config.Table.CleanupInterval
	g.configMu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			timeout := time.Duration(g.idleTimeout.Load())
			if n := g.table.CleanupIdle(timeout, time.Now()); n > 0 {
				logger.L.Debug("idle flows released",
					zap.Int("count", n),
					zap.Duration("idle_timeout", timeout),
				)
			}
		}
	}
}

// metricsLoop refreshes the table occupancy gauges
func (g *Gateway) metricsLoop(ctx context.Context) error {
	ticker := time.NewTicker(metricsRefreshInterval)
	defer ticker.Stop()

	for {
		g.refreshTableMetrics()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Gateway) refreshTableMetrics() {
	metrics.FlowTableSize.Set(float64(g.table.Len()))
	metrics.FlowTableAvailable.Set(float64(g.table.Available()))
}

// extractIP extracts the IP part of a host:port address
func extractIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// peerOf converts a connection's remote address to a flow peer.
// Unparseable addresses (pipes, unix sockets) map to the zero AddrPort.
func peerOf(addr net.Addr) netip.AddrPort {
	var ap netip.AddrPort
	if tcp, ok := addr.(*net.TCPAddr); ok {
		ap = tcp.AddrPort()
	} else {
		ap, _ = netip.ParseAddrPort(addr.String())
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
