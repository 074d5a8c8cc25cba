package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	// ErrDuplicateKeyInTransaction is returned by Build when two operations of one
	// set target the same physical item.
	ErrDuplicateKeyInTransaction = errors.New("tessera: duplicate key in transaction")

	// ErrTransactionCanceled is matched by every *TransactionCanceledError.
	ErrTransactionCanceled = errors.New("tessera: transaction canceled")

	// ErrIllegalState is returned when a builder is used after Build.
	ErrIllegalState = errors.New("tessera: builder already built")

	// ErrTooManyItems is returned when a set exceeds the per-transaction item limit.
	ErrTooManyItems = errors.New("tessera: too many items in transaction")

	// ErrInvalidCondition is returned when a condition expression is malformed.
	ErrInvalidCondition = errors.New("tessera: invalid condition")

	// ErrNotFound is returned by View.Load when the item doesn't exist.
	ErrNotFound = errors.New("tessera: item not found")

	// ErrConditionFailed is returned by single-item View writes whose condition
	// evaluated to false.
	ErrConditionFailed = errors.New("tessera: condition check failed")
)

// Cancellation reason codes reported by DynamoDB.
const (
	ReasonNone                          = "None"
	ReasonConditionalCheckFailed        = "ConditionalCheckFailed"
	ReasonTransactionConflict           = "TransactionConflict"
	ReasonItemCollectionSizeLimit       = "ItemCollectionSizeLimitExceeded"
	ReasonProvisionedThroughputExceeded = "ProvisionedThroughputExceeded"
	ReasonThrottlingError               = "ThrottlingError"
	ReasonValidationError               = "ValidationError"
)

// CancellationReason is the outcome of one operation of a canceled transaction.
type CancellationReason struct {
	// Code is the reason code, verbatim. "None" means the operation did not fail.
	Code string

	// Message is DynamoDB's description, if any.
	Message string

	// Item holds the current item when the operation asked for it on failure.
	Item map[string]types.AttributeValue

	// Operation is "Save", "Delete", "CheckCondition" or "Load".
	Operation string

	// Type is the logical type name of the operation's item.
	Type string
}

// TransactionCanceledError reports a transaction that DynamoDB canceled.
// Reasons are in the order the operations were added to the set.
type TransactionCanceledError struct {
	Reasons []CancellationReason

	cause error
}

func (e *TransactionCanceledError) Error() string {
	return fmt.Sprintf("%v: [%s]", ErrTransactionCanceled, strings.Join(e.codes(), ", "))
}

func (e *TransactionCanceledError) codes() []string {
	codes := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		codes[i] = r.Code
	}
	return codes
}

// Is matches ErrTransactionCanceled.
func (e *TransactionCanceledError) Is(target error) bool {
	return target == ErrTransactionCanceled
}

// Unwrap returns the underlying SDK error.
func (e *TransactionCanceledError) Unwrap() error { return e.cause }

// ConditionFailed returns the indices of operations whose condition failed.
func (e *TransactionCanceledError) ConditionFailed() []int {
	var idx []int
	for i, r := range e.Reasons {
		if r.Code == ReasonConditionalCheckFailed {
			idx = append(idx, i)
		}
	}
	return idx
}

// Retryable reports whether every failing operation failed for a transient
// reason (conflict or throttling). A condition failure is never retryable.
func (e *TransactionCanceledError) Retryable() bool {
	failed := false
	for _, r := range e.Reasons {
		switch r.Code {
		case "", ReasonNone:
		case ReasonTransactionConflict, ReasonProvisionedThroughputExceeded, ReasonThrottlingError:
			failed = true
		default:
			return false
		}
	}
	return failed
}

func newTransactionCanceledError(ex *types.TransactionCanceledException, ops []operation) *TransactionCanceledError {
	reasons := make([]CancellationReason, len(ex.CancellationReasons))
	for i, r := range ex.CancellationReasons {
		reason := CancellationReason{Item: r.Item}
		if r.Code != nil {
			reason.Code = *r.Code
		}
		if r.Message != nil {
			reason.Message = *r.Message
		}
		if i < len(ops) {
			reason.Operation = ops[i].kind.String()
			reason.Type = ops[i].typ.TypeName()
		}
		reasons[i] = reason
	}
	return &TransactionCanceledError{Reasons: reasons, cause: ex}
}
