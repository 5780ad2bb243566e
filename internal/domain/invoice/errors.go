// Where: internal/domain/invoice/errors.go
// What: Processing error taxonomy for the Ledger Handler.
// Why: Let the delivery mechanism and operators tell retryable failures from bad invoices.
package invoice

import (
	"errors"
	"fmt"
)

// Kind names a processing failure class.
type Kind string

const (
	KindNone      Kind = ""
	KindTransient Kind = "transient"
	KindPermanent Kind = "permanent"
)

// TransientError marks a failure that may succeed on redelivery, such as an
// object that is missing or temporarily unreadable. The Lambda runtime reports
// the type name as errorType, so it stays distinguishable in logs and DLQs.
type TransientError struct {
	Op  string
	Key string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an invoice that will never be recorded without manual
// intervention. Retrying it only wastes attempts.
type PermanentError struct {
	Key    string
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent: %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent: %s: %s", e.Key, e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op, key string, err error) error {
	return &TransientError{Op: op, Key: key, Err: err}
}

// Permanent builds a PermanentError.
func Permanent(key, reason string, err error) error {
	return &PermanentError{Key: key, Reason: reason, Err: err}
}

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// Classify returns the kind of err. Unclassified errors count as transient:
// an unknown failure is retried rather than silently dropped.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case IsPermanent(err):
		return KindPermanent
	default:
		return KindTransient
	}
}
