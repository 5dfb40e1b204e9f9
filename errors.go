package accountstate

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-accountstate/account"
)

var (
	// ErrBackingStoreRead matches every failure to read account configuration,
	// identities or default preferences from the backing store.
	ErrBackingStoreRead = errors.New("accountstate: backing store read failed")
	// ErrInconsistentInput indicates a programmer error in the data handed to
	// the builder.
	ErrInconsistentInput = errors.New("accountstate: inconsistent input")
	// ErrAccountMismatch indicates a document or identity owned by another
	// account than the one being assembled.
	ErrAccountMismatch = fmt.Errorf("%w: account mismatch", ErrInconsistentInput)
	// ErrInvalidPayload indicates a cached payload that cannot be decoded.
	ErrInvalidPayload = errors.New("accountstate: invalid cached payload")
)

// ReadError wraps a backing store failure with the operation that hit it.
type ReadError struct {
	Op        string
	AccountID account.ID
	Err       error
}

func (e *ReadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("accountstate: %s (account %s): %v", e.Op, e.AccountID, e.Err)
}

func (e *ReadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports ErrBackingStoreRead as a match.
func (e *ReadError) Is(target error) bool {
	return target == ErrBackingStoreRead
}

func readError(op string, id account.ID, err error) error {
	if err == nil {
		return nil
	}
	return &ReadError{Op: op, AccountID: id, Err: err}
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrAccountMismatch}, args...)...)
}

func inconsistent(err error) error {
	return fmt.Errorf("%w: %w", ErrInconsistentInput, err)
}
