package buffer

import "sync"

// DefaultSize covers the largest body a frame header can announce
const DefaultSize = 0xFFFF

// Pool provides a pool of frame body buffers for reuse
var Pool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultSize)
		return &b
	},
}

// Get retrieves a buffer of length n from the pool.
// Requests larger than DefaultSize are allocated directly.
func Get(n int) []byte {
	if n > DefaultSize {
		return make([]byte, n)
	}
	b := Pool.Get().(*[]byte)
	return (*b)[:n]
}

// Put returns a buffer to the pool
func Put(buf []byte) {
	if cap(buf) != DefaultSize {
		// Only buffers that came from the pool go back
		return
	}
	buf = buf[:cap(buf)]
	Pool.Put(&buf)
}
