package session

import "github.com/corewire/mongodrv/pack"

// ClusterClock tracks the most recent $clusterTime this core has observed
// from any server reply and gossips it back on every subsequent
// command, per x/mongo/driverx/driver.go's addClusterTime/
// responseClusterTime/updateClusterTimes pattern.
//
// A real clusterTime comparison is by the embedded BSON Timestamp's
// (time, increment) pair; this core's Pack contract has no Timestamp
// accessor, so ClusterClock takes the simpler "most recently observed
// value wins" rule instead of a numeric max. This is a deliberate
// simplification of updateClusterTimes's real comparison, not an
// oversight: see DESIGN.md.
type ClusterClock struct {
	current pack.Value
}

// Advance folds a reply's $clusterTime field into the clock, if present.
func (c *ClusterClock) Advance(p pack.Pack, reply pack.Value) {
	if reply == nil {
		return
	}
	if ct, found := p.Lookup(reply, "$clusterTime"); found {
		c.current = ct
	}
}

// Gossip returns the value to attach as a command's outgoing
// $clusterTime field, or nil if nothing has been observed yet.
func (c *ClusterClock) Gossip() pack.Value {
	return c.current
}
