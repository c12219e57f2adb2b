package session

import (
	"context"
	"sync"

	"github.com/corewire/mongodrv/command"
	"github.com/corewire/mongodrv/internal/logger"
	"github.com/corewire/mongodrv/mongoerr"
	"github.com/corewire/mongodrv/pack"
)

// Session is a started logical session: an LSID, a transaction state
// machine and a per-session cluster clock. To satisfy the identity
// invariant ("a handle returned by startSession is never equal (by
// identity) to its predecessor"), a *Session's pointer identity IS its
// identity — Manager.StartSession always either returns the same
// pointer back (a true no-op) or allocates a brand new one, never
// mutates an existing handle in place to fake a new identity.
type Session struct {
	lsid  LSID
	clock ClusterClock
	log   *logger.Logger

	mu        sync.Mutex
	txnState  TransactionState
	txnNumber int64

	cmdMu sync.Mutex
	pin   any
}

// Lock serializes commands on this session, enforcing the per-session
// ordering guarantee ("an in-flight command on a session blocks
// subsequent commands on the same session"). Callers must pair every
// Lock with an Unlock.
func (s *Session) Lock() { s.cmdMu.Lock() }

// Unlock releases the per-session command serialization lock.
func (s *Session) Unlock() { s.cmdMu.Unlock() }

// Pin returns the value a caller previously attached with SetPin, or
// nil. The value is an opaque `any` so this package never needs to import
// connection; it is cleared when a transaction ends. dbhandle does not
// use it: it keeps transaction pins in its own pinRegistry.
func (s *Session) Pin() any { return s.pin }

// SetPin attaches the caller's pin value.
func (s *Session) SetPin(v any) { s.pin = v }

// ClearPin drops any attached pin value, per transaction end.
func (s *Session) ClearPin() { s.pin = nil }

func newSession(log *logger.Logger) *Session {
	return &Session{lsid: NewLSID(), log: log}
}

// LSID returns the session's logical session id.
func (s *Session) LSID() LSID { return s.lsid }

func (s *Session) logTransition(from, to TransactionState) {
	if s.log == nil {
		return
	}
	s.log.Print(logger.LevelDebug, logger.TransactionStateMessage{
		LSID:      s.lsid.String(),
		TxnNumber: s.txnNumber,
		From:      from.String(),
		To:        to.String(),
	})
}

func (s *Session) logLifecycle(event string) {
	if s.log == nil {
		return
	}
	s.log.Print(logger.LevelDebug, logger.SessionLifecycleMessage{Event: event, LSID: s.lsid.String()})
}

// Attachment builds the command.SessionAttachment a dispatched command
// should carry: lsid and the gossiped cluster time are always attached;
// txnNumber/autocommit/startTransaction are
// only attached while a transaction is open, and the first command
// after StartTransaction carries startTransaction:true and flips the
// local state Starting -> InProgress as a side effect (mirroring the
// server's own "the first operation of a transaction implicitly starts
// it" rule).
func (s *Session) Attachment(p pack.Pack) *command.SessionAttachment {
	s.mu.Lock()
	state := s.txnState
	txnNumber := s.txnNumber
	s.mu.Unlock()

	attachment := &command.SessionAttachment{
		LSID:        s.lsid.Document(p),
		ClusterTime: s.clock.Gossip(),
	}

	switch state {
	case TxnStarting, TxnInProgress:
		attachment.HasTxnNumber = true
		attachment.TxnNumber = txnNumber
		autocommit := false
		attachment.Autocommit = &autocommit
		if state == TxnStarting {
			attachment.StartTransaction = true
			s.markFirstCommand()
		}
	}

	return attachment
}

// ObserveReply folds a command reply's $clusterTime back into the
// session's clock.
func (s *Session) ObserveReply(p pack.Pack, reply pack.Value) {
	s.clock.Advance(p, reply)
}

// Manager owns the set of live sessions for a connection/handle tree
// and implements startSession/endSession/killSession. The registry
// is a plain map rather than an "LSID -> weak references" scheme: Go's
// runtime/weak package postdates this module's go.mod floor, so live
// sessions are tracked by explicit registration/removal instead (see
// DESIGN.md).
type Manager struct {
	log *logger.Logger

	mu       sync.Mutex
	sessions map[LSID]*Session
}

// NewManager constructs a session Manager. log may be nil.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{log: log, sessions: make(map[LSID]*Session)}
}

// StartSession implements startSession: if current is already a started
// session, it is returned unchanged unless
// failIfAlreadyStarted is set (in which case it fails); otherwise a
// fresh Session with a new LSID is allocated, registered, and returned.
func (m *Manager) StartSession(current *Session, failIfAlreadyStarted bool) (*Session, error) {
	if current != nil {
		if failIfAlreadyStarted {
			return nil, mongoerr.SessionStateError{Reason: "session already started"}
		}
		return current, nil
	}

	s := newSession(m.log)
	s.logLifecycle("started")

	m.mu.Lock()
	m.sessions[s.lsid] = s
	m.mu.Unlock()

	return s, nil
}

// EndSession implements endSession: a nil current is a no-op unless
// failIfNotStarted is set. Otherwise it dispatches
// endSessions to the server, unregisters the session regardless of the
// dispatch outcome (the session is gone from this process's point of
// view either way), and returns a session-less handle.
func (m *Manager) EndSession(ctx context.Context, p pack.Pack, rt command.RoundTripper, current *Session, failIfNotStarted bool) (*Session, error) {
	if current == nil {
		if failIfNotStarted {
			return nil, mongoerr.SessionStateError{Reason: "no session to end"}
		}
		return nil, nil
	}

	m.unregister(current)
	current.logLifecycle("ended")

	_, err := command.Dispatch(ctx, p, rt, command.EndSessions(p, current.lsid.Document(p)))
	return nil, err
}

// KillSession implements killSession: forces the session's transaction
// (if any, and not already terminal) to Aborted
// locally without server contact, unregisters it, and always succeeds,
// returning a session-less handle. A nil current is itself a no-op.
func (m *Manager) KillSession(current *Session) *Session {
	if current == nil {
		return nil
	}
	current.forceAbort()
	m.unregister(current)
	current.logLifecycle("killed")
	return nil
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.lsid)
	m.mu.Unlock()
}

// Active returns a snapshot of every currently-registered session, for
// KillAllSessions .
func (m *Manager) Active() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
