package connection

import "github.com/corewire/mongodrv/pack"

// Status classifies a node from its isMaster/hello reply — the node
// health classification this connection layer owns. Grounded on
// core/results.go's
// isMasterResult.ServerType(), generalized from its seven-way
// replica-set/mongos/standalone split down to the coarser
// unknown/connecting/primary/secondary/unreachable set.
type Status int

const (
	StatusUnknown Status = iota
	StatusConnecting
	StatusPrimary
	StatusSecondary
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusPrimary:
		return "primary"
	case StatusSecondary:
		return "secondary"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// NodeDescription is the shape decoded from a successful isMaster/hello
// reply, carrying the fields classifyStatus and the connection handshake
// both need.
type NodeDescription struct {
	Status         Status
	SetName        string
	MaxWireVersion int
	Compression    []string
	Me             string
	Hosts          []string
}

// classifyStatus mirrors isMasterResult.ServerType(): a replica-set
// member with ismaster=true is StatusPrimary, one with an explicit
// secondary=true is StatusSecondary (the hidden flag is not read), and
// any other replica-set member is StatusUnknown. A node with no setName
// that replied ok is treated as a directly-usable standalone/mongos
// primary, since this core has no arbiter/ghost routing concept of its
// own. A reply without ok=1 is StatusUnreachable.
func classifyStatus(p pack.Pack, reply pack.Value) NodeDescription {
	ok := false
	if okVal, found := p.Lookup(reply, "ok"); found {
		if f, isNum := p.AsFloat64(okVal); isNum {
			ok = f == 1
		}
	}
	if !ok {
		return NodeDescription{Status: StatusUnreachable}
	}

	desc := NodeDescription{Status: StatusPrimary}

	if setName, ok := p.Lookup(reply, "setName"); ok {
		if s, ok := p.StringValue(setName); ok {
			desc.SetName = s
		}
	}
	if me, ok := p.Lookup(reply, "me"); ok {
		if s, ok := p.StringValue(me); ok {
			desc.Me = s
		}
	}
	if maxWV, ok := p.Lookup(reply, "maxWireVersion"); ok {
		if n, ok := p.Int32Value(maxWV); ok {
			desc.MaxWireVersion = int(n)
		}
	}
	if compression, ok := p.Lookup(reply, "compression"); ok {
		if arr, ok := p.Array(compression); ok {
			for _, v := range arr {
				if s, ok := p.StringValue(v); ok {
					desc.Compression = append(desc.Compression, s)
				}
			}
		}
	}
	if hosts, ok := p.Lookup(reply, "hosts"); ok {
		if arr, ok := p.Array(hosts); ok {
			for _, v := range arr {
				if s, ok := p.StringValue(v); ok {
					desc.Hosts = append(desc.Hosts, s)
				}
			}
		}
	}

	if desc.SetName != "" {
		if isMaster, found := p.Lookup(reply, "ismaster"); found {
			if b, ok := p.BoolValue(isMaster); ok && b {
				desc.Status = StatusPrimary
				return desc
			}
		}
		if secondary, found := p.Lookup(reply, "secondary"); found {
			if b, ok := p.BoolValue(secondary); ok && b {
				desc.Status = StatusSecondary
				return desc
			}
		}
		desc.Status = StatusUnknown
		return desc
	}

	return desc
}
