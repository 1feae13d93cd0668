package retry

import (
	"errors"
	"fmt"
	"strings"
)

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: the deliverer hospitalizes it on the first failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Reasoner is implemented by errors that carry their own stable identifier.
type Reasoner interface {
	Reason() string
}

// Reason returns a stable identifier for err, stored as the failure reason next to the full
// error text. Errors implementing Reasoner win; otherwise the root cause names itself by type,
// or by message for plain sentinel errors.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var r Reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}

	root := err
	for {
		next := errors.Unwrap(root)
		if next == nil {
			break
		}
		root = next
	}

	typeName := fmt.Sprintf("%T", root)
	if isAnonymousErrorType(typeName) {
		return root.Error()
	}
	return typeName
}

func isAnonymousErrorType(typeName string) bool {
	switch {
	case typeName == "*errors.errorString":
		return true
	case strings.HasPrefix(typeName, "*fmt.wrapError"):
		return true
	case typeName == "*errors.joinError":
		return true
	default:
		return false
	}
}
