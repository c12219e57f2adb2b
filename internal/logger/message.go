package logger

// ComponentMessage is implemented by every structured log message. Serialize
// returns an alternating key/value slice suitable for a LogSink.
type ComponentMessage interface {
	Component() Component
	Message() string
	Serialize() []interface{}
}

// CommandMessageDropped is emitted when the job buffer is full and a message
// had to be discarded rather than block the caller.
type CommandMessageDropped struct{}

func (CommandMessageDropped) Component() Component { return ComponentCommand }
func (CommandMessageDropped) Message() string      { return "Command message dropped" }
func (CommandMessageDropped) Serialize() []interface{} {
	return []interface{}{"reason", "log buffer full"}
}

// CommandStartedMessage logs a command about to be dispatched.
type CommandStartedMessage struct {
	Name         string
	DatabaseName string
	RequestID    int32
	Command      string
}

func (CommandStartedMessage) Component() Component { return ComponentCommand }
func (CommandStartedMessage) Message() string      { return "Command started" }
func (m CommandStartedMessage) Serialize() []interface{} {
	return []interface{}{
		"commandName", m.Name,
		"databaseName", m.DatabaseName,
		"requestId", m.RequestID,
		"command", m.Command,
	}
}

// CommandSucceededMessage logs a successful reply.
type CommandSucceededMessage struct {
	Name      string
	RequestID int32
	DurationMS int64
	Reply     string
}

func (CommandSucceededMessage) Component() Component { return ComponentCommand }
func (CommandSucceededMessage) Message() string      { return "Command succeeded" }
func (m CommandSucceededMessage) Serialize() []interface{} {
	return []interface{}{
		"commandName", m.Name,
		"requestId", m.RequestID,
		"durationMS", m.DurationMS,
		"reply", m.Reply,
	}
}

// CommandFailedMessage logs a command-level failure (ok:0 or transport error).
type CommandFailedMessage struct {
	Name      string
	RequestID int32
	Failure   string
}

func (CommandFailedMessage) Component() Component { return ComponentCommand }
func (CommandFailedMessage) Message() string      { return "Command failed" }
func (m CommandFailedMessage) Serialize() []interface{} {
	return []interface{}{"commandName", m.Name, "requestId", m.RequestID, "failure", m.Failure}
}

// ConnectionHandshakeMessage logs the outcome of a handshake.
type ConnectionHandshakeMessage struct {
	Address     string
	WireVersion int
	Err         string
}

func (ConnectionHandshakeMessage) Component() Component { return ComponentConnection }
func (ConnectionHandshakeMessage) Message() string      { return "Connection handshake" }
func (m ConnectionHandshakeMessage) Serialize() []interface{} {
	return []interface{}{"address", m.Address, "wireVersion", m.WireVersion, "error", m.Err}
}

// FailoverRetryMessage logs a scheduled retry attempt.
type FailoverRetryMessage struct {
	Attempt int
	Delay   string
	Cause   string
}

func (FailoverRetryMessage) Component() Component { return ComponentFailover }
func (FailoverRetryMessage) Message() string      { return "Retrying operation" }
func (m FailoverRetryMessage) Serialize() []interface{} {
	return []interface{}{"attempt", m.Attempt, "delay", m.Delay, "cause", m.Cause}
}

// SessionLifecycleMessage logs start/end/kill of a session.
type SessionLifecycleMessage struct {
	Event string
	LSID  string
}

func (SessionLifecycleMessage) Component() Component { return ComponentSession }
func (m SessionLifecycleMessage) Message() string     { return "Session " + m.Event }
func (m SessionLifecycleMessage) Serialize() []interface{} {
	return []interface{}{"lsid", m.LSID}
}

// TransactionStateMessage logs a transaction state transition.
type TransactionStateMessage struct {
	LSID      string
	TxnNumber int64
	From      string
	To        string
}

func (TransactionStateMessage) Component() Component { return ComponentTransaction }
func (TransactionStateMessage) Message() string      { return "Transaction state transition" }
func (m TransactionStateMessage) Serialize() []interface{} {
	return []interface{}{"lsid", m.LSID, "txnNumber", m.TxnNumber, "from", m.From, "to", m.To}
}
