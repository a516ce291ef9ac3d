package flow

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
)

// Key identifies a flow: one client endpoint plus the flow ID it stamps on
// its frames.
type Key struct {
	Peer   netip.AddrPort
	FlowID uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Peer, k.FlowID)
}

// HashKey hashes the address bytes, port and flow ID with xxhash.
// IPv4 and IPv4-mapped IPv6 peers hash alike, which only costs a compare.
func HashKey(k Key) uint64 {
	var buf [22]byte
	addr := k.Peer.Addr().As16()
	copy(buf[:16], addr[:])
	binary.LittleEndian.PutUint16(buf[16:18], k.Peer.Port())
	binary.LittleEndian.PutUint32(buf[18:22], k.FlowID)
	return xxhash.Sum64(buf[:])
}

// Record is the per-flow state kept in a table slot.
type Record struct {
	Packets   uint64
	Bytes     uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

// Entry is a flow copied out of the table.
type Entry struct {
	Key Key
	Record
}

// entryJSON is the wire shape of an Entry on the HTTP API and in events.
type entryJSON struct {
	Peer      string    `json:"peer"`
	FlowID    uint32    `json:"flow_id"`
	Packets   uint64    `json:"packets"`
	Bytes     uint64    `json:"bytes"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Peer:      e.Key.Peer.String(),
		FlowID:    e.Key.FlowID,
		Packets:   e.Packets,
		Bytes:     e.Bytes,
		FirstSeen: e.FirstSeen,
		LastSeen:  e.LastSeen,
	})
}

// Reason says why a flow left the table.
type Reason string

const (
	// ReasonEvicted: the table was full and the flow was least recently active
	ReasonEvicted Reason = "evicted"
	// ReasonExpired: the flow was idle longer than the idle timeout
	ReasonExpired Reason = "expired"
	// ReasonClosed: the client closed the flow or disconnected
	ReasonClosed Reason = "closed"
)
