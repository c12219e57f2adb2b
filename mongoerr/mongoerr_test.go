package mongoerr_test

import (
	"errors"
	"testing"

	"github.com/corewire/mongodrv/mongoerr"
)

func TestNetworkErrorAlwaysRetryable(t *testing.T) {
	err := mongoerr.NetworkError{Cause: errors.New("broken pipe")}
	if !mongoerr.Retryable(err) {
		t.Fatalf("expected network error to be retryable")
	}
}

func TestCommandExceptionRetryableByCode(t *testing.T) {
	err := mongoerr.CommandException{Code: 91} // ShutdownInProgress
	if !mongoerr.Retryable(err) {
		t.Fatalf("expected code 91 to be retryable")
	}
}

func TestCommandExceptionRetryableByLabel(t *testing.T) {
	err := mongoerr.CommandException{Code: 999, Labels: []string{mongoerr.LabelRetryableWrite}}
	if !mongoerr.Retryable(err) {
		t.Fatalf("expected RetryableWriteError label to force a retry")
	}
}

func TestCommandExceptionNonRetryable(t *testing.T) {
	err := mongoerr.CommandException{Code: mongoerr.CodeDuplicateKey}
	if mongoerr.Retryable(err) {
		t.Fatalf("expected duplicate key error to be terminal")
	}
}

func TestHasLabel(t *testing.T) {
	err := mongoerr.CommandException{Labels: []string{mongoerr.LabelTransientTransaction}}
	if !err.HasLabel(mongoerr.LabelTransientTransaction) {
		t.Fatalf("expected label to be present")
	}
	if err.HasLabel(mongoerr.LabelNetwork) {
		t.Fatalf("expected NetworkError label to be absent")
	}
}

func TestInvalidArgumentNotRetryable(t *testing.T) {
	err := mongoerr.InvalidArgument{Reason: "empty collection name"}
	if mongoerr.Retryable(err) {
		t.Fatalf("expected invalid argument to be terminal")
	}
}

func TestTimeoutNotRetryable(t *testing.T) {
	err := mongoerr.Timeout{Cause: errors.New("deadline exceeded")}
	if mongoerr.Retryable(err) {
		t.Fatalf("expected timeout to be terminal")
	}
}

func TestUnwrapChains(t *testing.T) {
	cause := errors.New("boom")
	err := mongoerr.NetworkError{Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to see through NetworkError")
	}
}
