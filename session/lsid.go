// Package session implements the session manager and transaction
// state machine: a session carries a logical session id (LSID)
// and a gossiped cluster time, and owns at most one transaction at a
// time. The x/mongo/driver/session package's own source isn't
// available here — only its call shape, visible through
// x/mongo/driverx/driver.go's addSession/addClusterTime/
// updateClusterTimes/updateOperationTime fragments. Those fragments
// ground the field-embedding and cluster-time-gossip design here; the
// session/transaction state machine itself is built directly from the
// server-session and transaction lifecycle rules MongoDB drivers share.
package session

import (
	"github.com/google/uuid"

	"github.com/corewire/mongodrv/pack"
)

// LSID is a session's logical session id: a random UUID, wrapped as the
// {id: <binary>} document the wire protocol expects in a command's
// lsid field, per this module's data model.
type LSID struct {
	id uuid.UUID
}

// NewLSID generates a fresh LSID backed by a random UUID.
func NewLSID() LSID {
	return LSID{id: uuid.New()}
}

// String renders the LSID for logging.
func (l LSID) String() string {
	return l.id.String()
}

// Document builds the {id: <binary>} value a command's lsid field
// expects.
func (l LSID) Document(p pack.Pack) pack.Value {
	raw := l.id
	return p.MakeDocument(p.ElementProducer("id", p.Binary(raw[:])))
}
