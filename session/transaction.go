package session

import "github.com/corewire/mongodrv/mongoerr"

// TransactionState is the transaction state machine: None -> Starting ->
// InProgress -> Committed | Aborted, with a
// committed or aborted transaction eligible to start a fresh one (a new
// transaction after commit/abort is ordinary multi-transaction session
// use, not a terminal state for the session itself).
type TransactionState int

const (
	TxnNone TransactionState = iota
	TxnStarting
	TxnInProgress
	TxnCommitted
	TxnAborted
)

func (s TransactionState) String() string {
	switch s {
	case TxnStarting:
		return "Starting"
	case TxnInProgress:
		return "InProgress"
	case TxnCommitted:
		return "Committed"
	case TxnAborted:
		return "Aborted"
	default:
		return "None"
	}
}

// StartTransaction transitions {None, Committed, Aborted} -> Starting,
// incrementing txnNumber (this module's monotonicity invariant: "1, 2,
// 3, ..."). From {Starting, InProgress} it is a no-op unless
// failIfAlreadyStarted is set, in which case it returns
// mongoerr.TransactionStateError.
func (s *Session) StartTransaction(failIfAlreadyStarted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.txnState {
	case TxnNone, TxnCommitted, TxnAborted:
		from := s.txnState
		s.txnNumber++
		s.txnState = TxnStarting
		s.logTransition(from, TxnStarting)
		return nil
	default:
		if !failIfAlreadyStarted {
			return nil
		}
		return mongoerr.TransactionStateError{From: s.txnState.String(), To: "Starting"}
	}
}

// markFirstCommand transitions Starting -> InProgress the moment the
// first command of a transaction is dispatched, by design It
// is a no-op if the transaction is already InProgress or not started.
func (s *Session) markFirstCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txnState == TxnStarting {
		s.logTransition(TxnStarting, TxnInProgress)
		s.txnState = TxnInProgress
	}
}

// CommitTransaction transitions Starting or InProgress -> Committed. From {None,
// Committed, Aborted} it is a no-op unless failIfNotStarted is set.
func (s *Session) CommitTransaction(failIfNotStarted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTransaction(TxnCommitted, failIfNotStarted)
}

// AbortTransaction transitions Starting or InProgress -> Aborted. From {None,
// Committed, Aborted} it is a no-op unless failIfNotStarted is set.
// Callers that actually dispatch the abortTransaction command to the
// server are expected to swallow a server response carrying
// mongoerr.CodeNoSuchTransaction as idempotent success; that swallow
// happens at the dispatch call site, not here, since this method only
// tracks the local state transition.
func (s *Session) AbortTransaction(failIfNotStarted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTransaction(TxnAborted, failIfNotStarted)
}

func (s *Session) endTransaction(target TransactionState, failIfNotStarted bool) error {
	switch s.txnState {
	case TxnStarting, TxnInProgress:
		from := s.txnState
		s.txnState = target
		s.pin = nil
		s.logTransition(from, target)
		return nil
	default:
		if !failIfNotStarted {
			return nil
		}
		return mongoerr.TransactionStateError{From: s.txnState.String(), To: target.String()}
	}
}

// forceAbort drops a non-terminal transaction to Aborted without
// server contact, by design: "killSession from any non-terminal
// state forces Aborted locally". A transaction already Committed or
// Aborted is left untouched.
func (s *Session) forceAbort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txnState == TxnStarting || s.txnState == TxnInProgress {
		from := s.txnState
		s.txnState = TxnAborted
		s.pin = nil
		s.logTransition(from, TxnAborted)
	}
}

// PinnedDuringTransaction reports whether the session's current
// transaction state should keep its dispatch connection pinned: true
// while Starting or InProgress.
func (s *Session) PinnedDuringTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txnState == TxnStarting || s.txnState == TxnInProgress
}

// TransactionState reports the session's current transaction state.
func (s *Session) TransactionState() TransactionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txnState
}

// TxnNumber reports the session's current transaction number.
func (s *Session) TxnNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txnNumber
}
