package manager

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

// ErrorKind categorizes every failure a manager operation can surface.
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindProductsNotFound
	ErrorKindPurchasePending
	ErrorKindPurchaseCancelled
	ErrorKindPlatformFailure
	ErrorKindVerificationFailed
	ErrorKindUserNotEntitled
	ErrorKindMissingEntitlement
	ErrorKindProductNotAvailable
	ErrorKindWrapped
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindProductsNotFound:
		return "products_not_found"
	case ErrorKindPurchasePending:
		return "purchase_pending"
	case ErrorKindPurchaseCancelled:
		return "purchase_cancelled"
	case ErrorKindPlatformFailure:
		return "platform_failure"
	case ErrorKindVerificationFailed:
		return "verification_failed"
	case ErrorKindUserNotEntitled:
		return "user_not_entitled"
	case ErrorKindMissingEntitlement:
		return "missing_entitlement"
	case ErrorKindProductNotAvailable:
		return "product_not_available"
	case ErrorKindWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// Error is the failure type surfaced by every manager operation. Raw
// collaborator errors never escape the manager; they arrive classified into a
// kind, with the original cause preserved for unwrapping.
type Error struct {
	Kind ErrorKind

	// ProductID is set for ErrorKindProductNotAvailable.
	ProductID string

	// Code is set for ErrorKindPlatformFailure.
	Code int

	// Reason is set for ErrorKindVerificationFailed.
	Reason string

	cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindProductNotAvailable:
		return fmt.Sprintf("product not available: %s", e.ProductID)
	case ErrorKindPlatformFailure:
		return fmt.Sprintf("platform failure (code %d)", e.Code)
	case ErrorKindVerificationFailed:
		if e.Reason != "" {
			return fmt.Sprintf("verification failed: %s", e.Reason)
		}
		return "verification failed"
	case ErrorKindWrapped:
		if e.cause != nil {
			return e.cause.Error()
		}
		return "wrapped failure"
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}

func wrapError(err error) *Error {
	return &Error{Kind: ErrorKindWrapped, cause: err}
}

// classifyFetchError maps a catalog failure onto the taxonomy.
func classifyFetchError(err error) *Error {
	if errors.Is(err, product.ErrNotFound) {
		return &Error{Kind: ErrorKindProductsNotFound, cause: err}
	}
	return wrapError(err)
}

// classifyPurchaseError maps an executor purchase failure onto the taxonomy.
func classifyPurchaseError(err error) *Error {
	switch {
	case errors.Is(err, transaction.ErrPending):
		return &Error{Kind: ErrorKindPurchasePending, cause: err}
	case errors.Is(err, transaction.ErrCancelled):
		return &Error{Kind: ErrorKindPurchaseCancelled, cause: err}
	case errors.Is(err, transaction.ErrVerificationFailed):
		return &Error{Kind: ErrorKindVerificationFailed, Reason: err.Error(), cause: err}
	}

	var platformErr *transaction.PlatformError
	if errors.As(err, &platformErr) {
		return &Error{Kind: ErrorKindPlatformFailure, Code: platformErr.Code, cause: err}
	}

	return &Error{Kind: ErrorKindUnknown, cause: err}
}

// Failure is the published record of the most recent failed operation. A
// fresh record is created on every failure and cleared at the start of the
// next operation of any kind.
type Failure struct {
	Err       *Error
	ProductID string
	Operation string
	At        time.Time
}

func newFailure(err *Error, operation, productID string) *Failure {
	return &Failure{
		Err:       err,
		ProductID: productID,
		Operation: operation,
		At:        time.Now(),
	}
}
