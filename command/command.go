// Package command implements the typed command algebra: every
// operation is expressible as (collection?, body, read_concern?,
// write_concern?, session?), assembled into a wire document, dispatched
// over a round tripper, and decoded into either a result document or a
// classified mongoerr exception.
package command

import (
	"context"

	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/wire"
	"github.com/corewire/mongodrv/wireversion"
)

// SessionAttachment carries the session/transaction fields a dispatched
// command attaches: lsid, txnNumber, autocommit, startTransaction, plus
// the gossiped cluster time. HasTxnNumber=false omits txnNumber, and a
// nil Autocommit/ClusterTime omits that field, matching the server's own
// optional-field handling.
type SessionAttachment struct {
	LSID             pack.Value
	TxnNumber        int64
	HasTxnNumber     bool
	Autocommit       *bool
	StartTransaction bool
	ClusterTime      pack.Value
}

// Command is the (collection?, body, read_concern?, write_concern?,
// session?) tuple every operation is expressed as. Primary overrides
// the default "collection name, or 1" primary field value for commands like
// renameCollection whose primary value is a full namespace rather than
// a bare collection name.
type Command struct {
	Name         string
	Database     string
	Collection   string
	Primary      pack.Value
	Fields       []pack.Element
	ReadConcern  pack.Value
	WriteConcern pack.Value
	Session      *SessionAttachment
}

// Build assembles the command into a single document, grounded on
// x/mongo/driverx/driver.go's addSession/addClusterTime/addReadConcern/
// addWriteConcern, which each append their fields to the outgoing
// command in the same order used here.
func (c Command) Build(p pack.Pack) pack.Value {
	elems := make([]pack.Element, 0, len(c.Fields)+8)

	primary := c.Primary
	if primary == nil {
		if c.Collection != "" {
			primary = p.String(c.Collection)
		} else {
			primary = p.Int32(1)
		}
	}
	elems = append(elems, p.ElementProducer(c.Name, primary))
	elems = append(elems, c.Fields...)
	elems = append(elems, p.ElementProducer("$db", p.String(c.Database)))

	if c.ReadConcern != nil {
		elems = append(elems, p.ElementProducer("readConcern", c.ReadConcern))
	}
	if c.WriteConcern != nil {
		elems = append(elems, p.ElementProducer("writeConcern", c.WriteConcern))
	}
	if c.Session != nil {
		elems = append(elems, p.ElementProducer("lsid", c.Session.LSID))
		if c.Session.HasTxnNumber {
			elems = append(elems, p.ElementProducer("txnNumber", p.Int64(c.Session.TxnNumber)))
		}
		if c.Session.Autocommit != nil {
			elems = append(elems, p.ElementProducer("autocommit", p.Bool(*c.Session.Autocommit)))
		}
		if c.Session.StartTransaction {
			elems = append(elems, p.ElementProducer("startTransaction", p.Bool(true)))
		}
		if c.Session.ClusterTime != nil {
			elems = append(elems, p.ElementProducer("$clusterTime", c.Session.ClusterTime))
		}
	}

	return p.MakeDocument(elems...)
}

// RoundTripper sends a framed wire message and returns the framed
// response, already decompressed. Implemented by connection.Connection
//; kept as a narrow interface here so command doesn't import
// connection and force a cycle.
type RoundTripper interface {
	RoundTrip(ctx context.Context, wm []byte) ([]byte, error)
}

// WireVersioner is implemented by round trippers that know their
// negotiated wire version. Dispatch type-asserts for it to pick
// OP_MSG vs the legacy OP_QUERY framing; a round tripper that doesn't
// implement it (e.g. a test double) is assumed to speak OP_MSG.
type WireVersioner interface {
	WireVersion() wireversion.WireVersion
}

// Dispatch builds, sends, awaits and decodes a command. The reply's
// cluster time/operation time gossip is left to the caller (session
// package) to fold back in; this layer only returns the decoded result
// document.
func Dispatch(ctx context.Context, p pack.Pack, rt RoundTripper, cmd Command) (pack.Value, error) {
	body := cmd.Build(p)

	wv := wireversion.CapabilityOpMsg
	if vr, ok := rt.(WireVersioner); ok {
		wv = vr.WireVersion()
	}

	if cmd.Session != nil && cmd.Session.HasTxnNumber && !wv.Supports(wireversion.CapabilityTransactions) {
		return nil, mongoerr.UnsupportedOperation{
			Required: wireversion.CapabilityTransactions.String(),
			Actual:   wv.String(),
		}
	}

	var wm []byte
	var err error
	if wv.AtLeast(wireversion.CapabilityOpMsg) {
		wm, err = wire.BuildOpMsg(p, body, wire.NextRequestID())
	} else {
		wm, err = wire.BuildOpQuery(p, cmd.Database, body, wire.NextRequestID())
	}
	if err != nil {
		return nil, mongoerr.ProtocolError{Cause: err}
	}

	respBytes, err := rt.RoundTrip(ctx, wm)
	if err != nil {
		return nil, err
	}

	reply, err := wire.ParseReply(p, respBytes, nil)
	if err != nil {
		return nil, mongoerr.ProtocolError{Cause: err}
	}

	return DecodeResult(p, reply.Document)
}
