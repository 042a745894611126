// ABOUTME: Categorized error type shared by the registrar and relay service
// ABOUTME: Every collaborator failure maps to validation, not-found, or upstream

package relay

import (
	"errors"
	"fmt"
)

// Kind categorizes a relay error.
type Kind int

const (
	// KindUnknown is the zero value, reported for errors outside the taxonomy
	KindUnknown Kind = iota
	// KindValidation marks malformed or missing caller input. Never retried.
	KindValidation
	// KindNotFound marks a referenced user absent from the channel registry
	// or the identity store.
	KindNotFound
	// KindUpstream marks a store, provider, or channel failure, including
	// timeouts. May be transient; the relay itself never retries.
	KindUpstream
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Error is a categorized failure carrying the collaborator and operation it
// came from, so a single log line can say which dependency broke.
type Error struct {
	Kind         Kind
	Collaborator string
	Op           string
	Reason       string
	Err          error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Reason)
	if e.Collaborator != "" {
		msg = fmt.Sprintf("%s [%s]: %s", e.Op, e.Collaborator, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// validationError reports bad caller input on op.
func validationError(op, reason string) *Error {
	return &Error{Kind: KindValidation, Op: op, Reason: reason}
}

// notFoundError reports an unknown user, attributed to the collaborator that
// had no record of them.
func notFoundError(collaborator, op, reason string) *Error {
	return &Error{Kind: KindNotFound, Collaborator: collaborator, Op: op, Reason: reason}
}

// upstreamError wraps a collaborator failure.
func upstreamError(collaborator, op, reason string, err error) *Error {
	return &Error{Kind: KindUpstream, Collaborator: collaborator, Op: op, Reason: reason, Err: err}
}

// KindOf extracts the Kind from an error chain. Returns KindUnknown for
// errors that did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
