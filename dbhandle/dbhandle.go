// Package dbhandle implements the database/collection handle: the
// caller-facing surface that turns Commands and Aggregation
// pipelines into dispatched wire traffic, applying the failover
// strategy and attaching session/transaction state when present. Its
// programmatic surface
// (`Connection.database(name, failover?) -> DatabaseHandle`,
// `DatabaseHandle.collection(name) -> CollectionHandle`) mirrors the role
// `mongo.Database`/`mongo.Collection` play upstream — see
// collection.go/admin.go/cursor.go for the per-file grounding notes.
package dbhandle

import (
	"context"
	"sync"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/connection"
	"github.com/corewire/mongodrv/failover"
	"github.com/corewire/mongodrv/internal/logger"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
	"github.com/corewire/mongodrv/session"
	"github.com/corewire/mongodrv/wireversion"
)

// pinRegistry remembers which *connection.Connection a session's
// in-progress transaction is pinned to, by design ("all
// commands are pinned to the same server"). Session itself only holds
// an opaque any via Pin/SetPin to avoid importing connection; this
// registry is where the concrete *connection.Connection type is
// attached and read back.
type pinRegistry struct {
	mu   sync.Mutex
	pins map[*session.Session]*connection.Connection
}

func newPinRegistry() *pinRegistry {
	return &pinRegistry{pins: make(map[*session.Session]*connection.Connection)}
}

func (r *pinRegistry) get(s *session.Session) *connection.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pins[s]
}

func (r *pinRegistry) set(s *session.Session, c *connection.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pins[s] = c
}

func (r *pinRegistry) pop(s *session.Session) *connection.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.pins[s]
	delete(r.pins, s)
	return c
}

// DatabaseHandle is the (connection_ref, name, failover, session?)
// tuple this module's design note names, held by value: every mutation
// (StartSession, EndSession, KillSession) returns a new DatabaseHandle
// rather than mutating the receiver, matching the "handles are immutable values"
// design this module calls for. The pool and pin registry fields are
// pointers and so are genuinely shared across copies, which is the
// point: a session started on one DatabaseHandle value is visible to
// every CollectionHandle derived from it.
type DatabaseHandle struct {
	pk       pack.Pack
	pool     *connection.Pool
	strategy *failover.Strategy
	log      *logger.Logger
	sessions *session.Manager
	pins     *pinRegistry

	name string
	sess *session.Session
}

// New constructs a root DatabaseHandle over pool, per this module's
// `Connection.database(name, failover?)`. strategy may be nil, meaning
// operations are attempted exactly once with no retry.
func New(pk pack.Pack, pool *connection.Pool, name string, strategy *failover.Strategy, log *logger.Logger) DatabaseHandle {
	return DatabaseHandle{
		pk:       pk,
		pool:     pool,
		strategy: strategy,
		log:      log,
		sessions: session.NewManager(log),
		pins:     newPinRegistry(),
		name:     name,
	}
}

// Name returns the database name.
func (d DatabaseHandle) Name() string { return d.name }

// Collection returns a handle to a named collection within this
// database, per this module's `collection(name)`.
func (d DatabaseHandle) Collection(name string) CollectionHandle {
	return CollectionHandle{db: d, name: name}
}

// acquire obtains the connection a command on this handle should use:
// the session's pinned connection if one is in flight for an open
// transaction, otherwise a fresh pool checkout. release returns the
// connection to the pool unless it remains pinned for the transaction's
// remaining lifetime.
func (d DatabaseHandle) acquire(ctx context.Context) (*connection.Connection, func(), error) {
	if d.sess != nil {
		if pinned := d.pins.get(d.sess); pinned != nil {
			return pinned, func() {}, nil
		}
	}

	conn, err := d.pool.Checkout(ctx)
	if err != nil {
		return nil, nil, err
	}

	if d.sess != nil && d.sess.PinnedDuringTransaction() {
		d.pins.set(d.sess, conn)
		return conn, func() {}, nil
	}

	return conn, func() { d.pool.Return(conn) }, nil
}

// dispatch attaches this handle's session (if any), applies the
// failover strategy (if any), and runs cmd to completion. Commands on a
// session are serialized to preserve per-session ordering.
func (d DatabaseHandle) dispatch(ctx context.Context, cmd command.Command) (pack.Value, error) {
	if d.sess != nil {
		d.sess.Lock()
		defer d.sess.Unlock()
		cmd.Session = d.sess.Attachment(d.pk)
	}

	op := func(ctx context.Context) (pack.Value, error) {
		conn, release, err := d.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		if d.strategy != nil && !conn.WireVersion().Supports(wireversion.CapabilityRetryableWrites) {
			return nil, mongoerr.UnsupportedOperation{
				Required: wireversion.CapabilityRetryableWrites.String(),
				Actual:   conn.WireVersion().String(),
			}
		}

		reply, err := command.Dispatch(ctx, d.pk, conn, cmd)
		if d.sess != nil && reply != nil {
			d.sess.ObserveReply(d.pk, reply)
		}
		return reply, err
	}

	if d.strategy != nil {
		return failover.Execute(ctx, *d.strategy, d.log, op)
	}
	return op(ctx)
}

// releasePin returns a pinned connection (if any) to the pool; called
// once a transaction ends (commit, abort, or kill), by design
func (d DatabaseHandle) releasePin() {
	if d.sess == nil {
		return
	}
	if conn := d.pins.pop(d.sess); conn != nil {
		d.pool.Return(conn)
	}
}

// invalidArgument is a small helper for the caller-side preconditions
// this module calls out (renameCollection outside admin, etc).
func invalidArgument(reason string) error {
	return mongoerr.InvalidArgument{Reason: reason}
}
