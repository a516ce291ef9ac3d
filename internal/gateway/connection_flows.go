package gateway

import (
	"net/netip"

	"github.com/SkynetNext/flow-gateway/internal/flow"
)

// connFlows remembers which flows a connection opened so they can be
// released when it goes away. It is owned by the connection goroutine.
type connFlows struct {
	peer  netip.AddrPort
	seen  map[uint32]struct{}
	limit int
}

func newConnFlows(peer netip.AddrPort, limit int) *connFlows {
	return &connFlows{
		peer:  peer,
		seen:  make(map[uint32]struct{}),
		limit: limit,
	}
}

func (c *connFlows) key(flowID uint32) flow.Key {
	return flow.Key{Peer: c.peer, FlowID: flowID}
}

// add tracks flowID. Past limit the table has recycled older flows anyway;
// untracked ones then age out through the idle sweep.
func (c *connFlows) add(flowID uint32) {
	if len(c.seen) < c.limit {
		c.seen[flowID] = struct{}{}
	}
}

func (c *connFlows) forget(flowID uint32) {
	delete(c.seen, flowID)
}

// releaseFlows closes every flow the connection still holds and returns how
// many were still in the table.
func (g *Gateway) releaseFlows(c *connFlows) int {
	n := 0
	for id := range c.seen {
		if g.table.Close(c.key(id)) {
			n++
		}
	}
	clear(c.seen)
	return n
}
