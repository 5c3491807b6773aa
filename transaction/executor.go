package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/clover-apps/storefront/product"
)

// Purchase outcome categories surfaced by an Executor. The orchestrator maps
// these onto its failure taxonomy; anything else is treated as unknown.
var (
	// ErrPending means the purchase was deferred (e.g. pending parental
	// approval) or another purchase for the product is already underway.
	ErrPending = errors.New("purchase pending")

	// ErrCancelled means the user backed out of the purchase flow.
	ErrCancelled = errors.New("purchase cancelled")

	// ErrVerificationFailed means the storefront delivered a transaction
	// that failed verification.
	ErrVerificationFailed = errors.New("transaction verification failed")
)

// PlatformError carries a platform-level failure code from the storefront.
type PlatformError struct {
	Code int
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform failure (code %d)", e.Code)
}

type Executor interface {

	// Purchase executes a purchase of p. A non-empty offerID requests a
	// promotional offer; offer application is best-effort and an
	// inapplicable offer silently degrades to a standard purchase.
	//
	// Fails with ErrPending, ErrCancelled, ErrVerificationFailed, a
	// *PlatformError, or a wrapped unknown error.
	Purchase(ctx context.Context, p product.Product, offerID string) (Transaction, error)

	// AllTransactions enumerates the user's transactions. Only transactions
	// that pass verification are returned; unverifiable ones are dropped.
	AllTransactions(ctx context.Context) ([]Transaction, error)

	// Updates returns the live transaction update feed. The channel delivers
	// one Result per incoming verification outcome, indefinitely, and is
	// closed when ctx is cancelled.
	Updates(ctx context.Context) <-chan Result

	// Finish marks tx as consumed so the feed stops redelivering it.
	Finish(ctx context.Context, tx Transaction) error

	// SyncWithStore asks the storefront to restore prior purchases. It does
	// not itself return transactions.
	SyncWithStore(ctx context.Context) error

	// CanMakePayments reports whether the user is allowed to make payments
	// at all.
	CanMakePayments() bool
}
