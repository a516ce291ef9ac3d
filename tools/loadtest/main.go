package main

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/protocol"
	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
)

var (
	addr        = pflag.String("addr", "localhost:8080", "Gateway client address")
	statsURL    = pflag.String("stats-url", "http://localhost:9091/flows/stats", "Flow table stats endpoint; empty to skip")
	connections = pflag.Int("connections", 100, "Number of concurrent connections")
	flows       = pflag.Int("flows", 50, "Distinct flow IDs per connection")
	duration    = pflag.Duration("duration", 30*time.Second, "Test duration")
	rate        = pflag.Float64("rate", 10.0, "Frames per second per connection")
	closeRatio  = pflag.Float64("close-ratio", 0.05, "Fraction of frames that close their flow")
	messageSize = pflag.Int("message-size", 64, "Frame body size in bytes")
	timeout     = pflag.Duration("timeout", 5*time.Second, "Dial and write timeout")
	verbose     = pflag.BoolP("verbose", "v", false, "Verbose output")
)

type Stats struct {
	TotalConnections atomic.Int64
	SuccessfulConns  atomic.Int64
	FailedConns      atomic.Int64
	DataFrames       atomic.Int64
	CloseFrames      atomic.Int64
	FailedFrames     atomic.Int64
	TotalBytes       atomic.Int64
}

var stats Stats

func main() {
	pflag.Parse()

	fmt.Printf("=== Flow Gateway Load Test ===\n")
	fmt.Printf("Target: %s\n", *addr)
	fmt.Printf("Connections: %d x %d flows\n", *connections, *flows)
	fmt.Printf("Duration: %v\n", *duration)
	fmt.Printf("Rate: %.2f frames/s per connection\n", *rate)
	fmt.Printf("\n")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	statsDone := make(chan struct{})
	go reportStats(ctx, statsDone)

	var wg sync.WaitGroup
	startTime := time.Now()
	for i := 0; i < *connections; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			runConnection(ctx, rand.New(rand.NewSource(seed)))
		}(startTime.UnixNano() + int64(i))
	}

	wg.Wait()
	elapsed := time.Since(startTime)

	<-statsDone
	printFinalReport(elapsed)
}

func runConnection(ctx context.Context, rng *rand.Rand) {
	stats.TotalConnections.Add(1)

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		stats.FailedConns.Add(1)
		if *verbose {
			fmt.Printf("Connection failed: %v\n", err)
		}
		return
	}
	defer conn.Close()
	stats.SuccessfulConns.Add(1)

	body := make([]byte, *messageSize)
	interval := time.Duration(float64(time.Second) / *rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flowID := uint32(rng.Intn(*flows)) + 1
			messageID, payload := protocol.MessageData, body
			if rng.Float64() < *closeRatio {
				messageID, payload = protocol.MessageFlowClose, nil
			}

			conn.SetWriteDeadline(time.Now().Add(*timeout))
			if err := protocol.WriteFrame(conn, messageID, flowID, payload); err != nil {
				stats.FailedFrames.Add(1)
				if *verbose {
					fmt.Printf("Send frame failed: %v\n", err)
				}
				return
			}

			if messageID == protocol.MessageFlowClose {
				stats.CloseFrames.Add(1)
			} else {
				stats.DataFrames.Add(1)
			}
			stats.TotalBytes.Add(int64(protocol.HeaderSize + len(payload)))
		}
	}
}

func reportStats(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("\r[Stats] Conns: %d/%d (failed: %d) | Frames: %d data, %d close (failed: %d) | Bytes: %d",
				stats.SuccessfulConns.Load(), stats.TotalConnections.Load(), stats.FailedConns.Load(),
				stats.DataFrames.Load(), stats.CloseFrames.Load(), stats.FailedFrames.Load(),
				stats.TotalBytes.Load())
		}
	}
}

// fetchTableStats reads the gateway's flow table counters
func fetchTableStats() (map[string]any, error) {
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*statsURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func printFinalReport(elapsed time.Duration) {
	fmt.Printf("\n\n=== Final Report ===\n")
	fmt.Printf("Duration: %v\n", elapsed)

	totalConns := stats.TotalConnections.Load()
	failedConns := stats.FailedConns.Load()
	frames := stats.DataFrames.Load() + stats.CloseFrames.Load()
	failedFrames := stats.FailedFrames.Load()
	totalBytes := stats.TotalBytes.Load()

	fmt.Printf("\n--- Connections ---\n")
	fmt.Printf("Total: %d\n", totalConns)
	fmt.Printf("Failed: %d\n", failedConns)

	fmt.Printf("\n--- Frames ---\n")
	fmt.Printf("Data: %d\n", stats.DataFrames.Load())
	fmt.Printf("Close: %d\n", stats.CloseFrames.Load())
	fmt.Printf("Failed: %d\n", failedFrames)
	fmt.Printf("Throughput: %.2f frames/s, %.2f MB/s\n",
		float64(frames)/elapsed.Seconds(),
		float64(totalBytes)/1024/1024/elapsed.Seconds())

	if *statsURL != "" {
		fmt.Printf("\n--- Flow Table ---\n")
		if tableStats, err := fetchTableStats(); err != nil {
			fmt.Printf("unavailable: %v\n", err)
		} else {
			for _, k := range []string{"capacity", "in_use", "available", "hits", "misses", "evictions", "releases"} {
				fmt.Printf("%s: %v\n", k, tableStats[k])
			}
		}
	}

	if failedConns > totalConns/10 || failedFrames > frames/10 {
		fmt.Printf("\nTest failed: too many errors\n")
		os.Exit(1)
	}
	fmt.Printf("\nTest completed successfully\n")
}
