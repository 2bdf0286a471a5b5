// errors.go is the domain error taxonomy. Every
// failure surfaced by a tool handler is one of these types; the
// orchestrator catches them all and replies with a generic apology while
// logging the detail.
package assistant

import (
	"errors"
	"fmt"
	"math/big"
)

// ValidationError flags a tool argument that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError flags a missing domain entity.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

// InsufficientFundsError flags a transfer that exceeds the sender's
// balance. The transfer call is never made in this case.
type InsufficientFundsError struct {
	Balance   *big.Int
	Requested *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s", e.Balance, e.Requested)
}

// TransferFailedError wraps a chain-level transfer failure.
type TransferFailedError struct {
	Err error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer failed: %v", e.Err)
}

func (e *TransferFailedError) Unwrap() error { return e.Err }

// SchemaViolationError flags model output that does not match the
// expected structured shape.
type SchemaViolationError struct {
	Detail string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation: %s", e.Detail)
}

// ResolutionError wraps a model call failure during intent resolution.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("intent resolution failed: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// IsDomainError reports whether err belongs to the taxonomy above.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		in *InsufficientFundsError
		tf *TransferFailedError
		sv *SchemaViolationError
		re *ResolutionError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &in) ||
		errors.As(err, &tf) || errors.As(err, &sv) || errors.As(err, &re)
}
