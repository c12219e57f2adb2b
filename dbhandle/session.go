package dbhandle

import (
	"context"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/session"
)

// StartSession implements this module's startSession, returning a new
// DatabaseHandle value carrying the (possibly reused, possibly brand
// new) session.
func (d DatabaseHandle) StartSession(failIfAlreadyStarted bool) (DatabaseHandle, error) {
	sess, err := d.sessions.StartSession(d.sess, failIfAlreadyStarted)
	if err != nil {
		return d, err
	}
	d.sess = sess
	return d, nil
}

// EndSession implements this module's endSession, dispatching
// endSessions to the server over this handle's current connection and
// returning a session-less DatabaseHandle.
func (d DatabaseHandle) EndSession(ctx context.Context, failIfNotStarted bool) (DatabaseHandle, error) {
	if d.sess != nil {
		d.releasePin()
	}

	conn, release, err := d.acquire(ctx)
	if err != nil {
		return d, err
	}
	defer release()

	sess, err := d.sessions.EndSession(ctx, d.pk, conn, d.sess, failIfNotStarted)
	d.sess = sess
	return d, err
}

// KillSession implements this module's killSession: drops the local
// session state (forcing any in-progress transaction to Aborted) without
// a server round trip, and always succeeds.
func (d DatabaseHandle) KillSession() DatabaseHandle {
	if d.sess != nil {
		d.releasePin()
	}
	d.sess = d.sessions.KillSession(d.sess)
	return d
}

// StartTransaction implements this module's startTransaction.
func (d DatabaseHandle) StartTransaction(failIfAlreadyStarted bool) error {
	if d.sess == nil {
		return mongoerr.SessionStateError{Reason: "no session attached"}
	}
	return d.sess.StartTransaction(failIfAlreadyStarted)
}

// CommitTransaction implements this module's commitTransaction,
// dispatching the commitTransaction command over the transaction's
// pinned connection and releasing the pin once the server responds. A
// transaction still in Starting has never had a real operation dispatch
// mark it InProgress, so there is no server-side transaction to commit;
// that case is resolved locally by Session.CommitTransaction, which moves
// Starting straight to Committed without a server round trip. None,
// Committed and Aborted take the same local branch (a no-op, or an error
// when failIfNotStarted is set).
func (d DatabaseHandle) CommitTransaction(ctx context.Context, failIfNotStarted bool) error {
	if d.sess == nil {
		return mongoerr.SessionStateError{Reason: "no session attached"}
	}
	if d.sess.TransactionState() != session.TxnInProgress {
		return d.sess.CommitTransaction(failIfNotStarted)
	}

	_, dispatchErr := d.dispatch(ctx, command.CommitTransaction(d.pk, nil))
	stateErr := d.sess.CommitTransaction(failIfNotStarted)
	d.releasePin()

	if dispatchErr != nil {
		return dispatchErr
	}
	return stateErr
}

// AbortTransaction implements this module's abortTransaction,
// swallowing server code 251 (NoSuchTransaction) as idempotent success.
// As with CommitTransaction, a transaction still in Starting never
// dispatched a real operation, so aborting it is handled locally rather
// than sent to the server.
func (d DatabaseHandle) AbortTransaction(ctx context.Context, failIfNotStarted bool) error {
	if d.sess == nil {
		return mongoerr.SessionStateError{Reason: "no session attached"}
	}
	if d.sess.TransactionState() != session.TxnInProgress {
		return d.sess.AbortTransaction(failIfNotStarted)
	}

	_, dispatchErr := d.dispatch(ctx, command.AbortTransaction(d.pk, nil))
	stateErr := d.sess.AbortTransaction(failIfNotStarted)
	d.releasePin()

	if dispatchErr != nil {
		var cmdErr mongoerr.CommandException
		if !asCommandException(dispatchErr, &cmdErr) || cmdErr.Code != mongoerr.CodeNoSuchTransaction {
			return dispatchErr
		}
	}
	return stateErr
}

func asCommandException(err error, target *mongoerr.CommandException) bool {
	ce, ok := err.(mongoerr.CommandException)
	if !ok {
		return false
	}
	*target = ce
	return true
}
