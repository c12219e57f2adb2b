// Package mongoerr holds the error taxonomy shared by wire, command,
// connection, failover and session so none of them needs to import each
// other just to classify a failure. Grounded on
// x/mongo/driverx/driver.go's extractError/Error/WriteCommandError, per
// this module's error handling design.
package mongoerr

import (
	"errors"
	"fmt"
)

// Error labels a command response can carry, per this module's error
// handling design and extractError's "errorLabels" array.
const (
	LabelTransientTransaction = "TransientTransactionError"
	LabelNetwork              = "NetworkError"
	LabelRetryableWrite       = "RetryableWriteError"
	LabelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// Named server error codes this core inspects directly, per this module's
// error handling table.
const (
	CodeNamespaceExists  int32 = 48
	CodeNoSuchTransaction int32 = 251
	CodeDuplicateKey     int32 = 11000
	CodeWriteConflict    int32 = 112
	CodeNamespaceNotFound int32 = 26
)

// retryableCodes is the set of server codes this module's failover strategy
// treats as retryable regardless of error label.
var retryableCodes = map[int32]bool{
	6:     true, // HostUnreachable
	7:     true, // HostNotFound
	89:    true, // NetworkTimeout
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	9001:  true, // SocketException
	10107: true, // NotWritablePrimary
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
	13435: true, // NotPrimaryNoSecondaryOk
	13436: true, // NotPrimaryOrSecondary
	63:    true, // StaleShardVersion
	150:   true, // StaleEpoch
	202:   true, // StaleClusterTime
	13388: true, // StaleConfig
}

// IsRetryableCode reports whether a server error code is in the
// retryable set, independent of any error label the response carried.
func IsRetryableCode(code int32) bool {
	return retryableCodes[code]
}

// NetworkError wraps a transport-level failure: the socket broke before
// or during a round trip, and no server response exists to classify.
type NetworkError struct {
	Cause error
}

func (e NetworkError) Error() string { return fmt.Sprintf("mongoerr: network error: %v", e.Cause) }
func (e NetworkError) Unwrap() error { return e.Cause }

// Retryable reports true: this module's failover strategy always retries a
// bare network error (it never carries a server code to classify).
func (e NetworkError) Retryable() bool { return true }

// Timeout reports a deadline/timeout budget exhaustion, per csot.
type Timeout struct {
	Cause error
}

func (e Timeout) Error() string { return fmt.Sprintf("mongoerr: timeout: %v", e.Cause) }
func (e Timeout) Unwrap() error { return e.Cause }

// ProtocolError wraps a wire-framing failure (truncated frame, unknown
// opcode, decompression failure) surfaced from the wire package.
type ProtocolError struct {
	Cause error
}

func (e ProtocolError) Error() string { return fmt.Sprintf("mongoerr: protocol error: %v", e.Cause) }
func (e ProtocolError) Unwrap() error { return e.Cause }

// UnsupportedOperation is raised when a command requires a wire version
// the negotiated connection doesn't meet, by design
type UnsupportedOperation struct {
	Required string
	Actual   string
}

func (e UnsupportedOperation) Error() string {
	return fmt.Sprintf("mongoerr: operation requires wire version %s, connection negotiated %s", e.Required, e.Actual)
}

// AuthenticationError wraps a SASL/SCRAM conversation failure.
type AuthenticationError struct {
	Mechanism string
	Cause     error
}

func (e AuthenticationError) Error() string {
	return fmt.Sprintf("mongoerr: %s authentication failed: %v", e.Mechanism, e.Cause)
}
func (e AuthenticationError) Unwrap() error { return e.Cause }

// CommandException is a server-returned command failure: {ok: 0, code,
// errmsg, codeName, errorLabels}, per extractError's "not ok" branch.
type CommandException struct {
	Code    int32
	Name    string
	Message string
	Labels  []string
}

func (e CommandException) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("mongoerr: command failed (%s/%d): %s", e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("mongoerr: command failed (%d): %s", e.Code, e.Message)
}

// HasLabel reports whether the response carried the given error label.
func (e CommandException) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Retryable reports whether the failover strategy should retry
// this exception: either the code is in the known retryable set, or the
// server explicitly labeled it RetryableWriteError.
func (e CommandException) Retryable() bool {
	return IsRetryableCode(e.Code) || e.HasLabel(LabelRetryableWrite)
}

// WriteError is a single failed item inside a bulk write response's
// writeErrors array.
type WriteError struct {
	Index   int64
	Code    int64
	Message string
}

func (e WriteError) Error() string {
	return fmt.Sprintf("mongoerr: write error at index %d (%d): %s", e.Index, e.Code, e.Message)
}

// WriteConcernError reports a writeConcernError sub-document.
type WriteConcernError struct {
	Code    int64
	Message string
}

func (e WriteConcernError) Error() string {
	return fmt.Sprintf("mongoerr: write concern error (%d): %s", e.Code, e.Message)
}

// WriteCommandException aggregates the writeErrors array and an
// optional writeConcernError from an insert/update/delete response.
type WriteCommandException struct {
	WriteErrors       []WriteError
	WriteConcernError *WriteConcernError
}

func (e WriteCommandException) Error() string {
	switch {
	case len(e.WriteErrors) > 0 && e.WriteConcernError != nil:
		return fmt.Sprintf("mongoerr: %d write error(s), plus a write concern error", len(e.WriteErrors))
	case len(e.WriteErrors) > 0:
		return fmt.Sprintf("mongoerr: %d write error(s): %v", len(e.WriteErrors), e.WriteErrors[0])
	case e.WriteConcernError != nil:
		return e.WriteConcernError.Error()
	default:
		return "mongoerr: write command exception"
	}
}

// InvalidArgument reports a caller-side precondition failure (a bad
// pipeline stage, an empty collection name, etc.) caught before any
// wire round trip happens.
type InvalidArgument struct {
	Reason string
}

func (e InvalidArgument) Error() string { return fmt.Sprintf("mongoerr: invalid argument: %s", e.Reason) }

// SessionStateError reports a session lifecycle violation: starting a
// session that is already started, ending one that does not exist, or a
// session operation on a handle with no session attached. A second
// startTransaction is a TransactionStateError, not this.
type SessionStateError struct {
	Reason string
}

func (e SessionStateError) Error() string { return fmt.Sprintf("mongoerr: session state: %s", e.Reason) }

// TransactionStateError reports an illegal transaction state
// transition, per this module's transaction state machine invariants.
type TransactionStateError struct {
	From, To string
}

func (e TransactionStateError) Error() string {
	return fmt.Sprintf("mongoerr: illegal transaction transition %s -> %s", e.From, e.To)
}

// Cancelled wraps a caller-cancelled context surfacing through a
// blocking operation.
type Cancelled struct {
	Cause error
}

func (e Cancelled) Error() string { return fmt.Sprintf("mongoerr: cancelled: %v", e.Cause) }
func (e Cancelled) Unwrap() error { return e.Cause }

// Retryable reports whether err should be retried by the failover
// strategy, per this module's retry classification: network errors
// always retry, command exceptions retry by code/label, everything else
// (timeouts, cancellation, protocol errors, invalid arguments) is
// terminal.
func Retryable(err error) bool {
	switch err.(type) {
	case Timeout, Cancelled, ProtocolError, AuthenticationError, InvalidArgument:
		return false
	}
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}
