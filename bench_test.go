package main

import (
	"net/netip"
	"testing"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/flow"
)

func newBenchTable(b *testing.B, capacity, shards int) *flow.Table {
	b.Helper()
	t, err := flow.NewTable(flow.Options{Capacity: capacity, LoadFactor: 0.75, Shards: shards})
	if err != nil {
		b.Fatal(err)
	}
	return t
}

func benchKeys(n int) []flow.Key {
	keys := make([]flow.Key, n)
	for i := range keys {
		peer := netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, byte(i >> 8), byte(i)}), uint16(10000+i%50000))
		keys[i] = flow.Key{Peer: peer, FlowID: uint32(i)}
	}
	return keys
}

// BenchmarkTable_ObserveHit measures the steady state where every flow fits
func BenchmarkTable_ObserveHit(b *testing.B) {
	keys := benchKeys(4096)
	t := newBenchTable(b, 8192, 16)
	now := time.Now()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			t.Observe(keys[i%len(keys)], 64, now)
			i++
		}
	})
}

// BenchmarkTable_ObserveEvict measures a working set twice the capacity
func BenchmarkTable_ObserveEvict(b *testing.B) {
	keys := benchKeys(16384)
	t := newBenchTable(b, 8192, 16)
	now := time.Now()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			t.Observe(keys[i%len(keys)], 64, now)
			i += 7
		}
	})
}

func BenchmarkTable_ObserveClose(b *testing.B) {
	keys := benchKeys(1024)
	t := newBenchTable(b, 2048, 4)
	now := time.Now()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%len(keys)]
		t.Observe(k, 64, now)
		t.Close(k)
	}
}
