package slotpool

import "github.com/cespare/xxhash/v2"

// Hasher maps a key to a 64-bit hash. Equal keys must hash equally.
type Hasher[K any] func(K) uint64

// StringHasher hashes string keys with xxhash.
func StringHasher(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Uint64Hasher spreads integer keys with the splitmix64 finalizer, so
// sequential IDs do not pile up in neighbouring buckets.
func Uint64Hasher(key uint64) uint64 {
	key ^= key >> 30
	key *= 0xbf58476d1ce4e5b9
	key ^= key >> 27
	key *= 0x94d049bb133111eb
	key ^= key >> 31
	return key
}

// Int64Hasher is Uint64Hasher for signed IDs such as session IDs.
func Int64Hasher(key int64) uint64 {
	return Uint64Hasher(uint64(key))
}

// Bytes16Hasher hashes fixed 16-byte keys (UUIDs, IPv6 addresses).
func Bytes16Hasher(key [16]byte) uint64 {
	return xxhash.Sum64(key[:])
}
