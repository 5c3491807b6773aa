package transaction

import (
	"context"
	"time"

	"github.com/clover-apps/storefront/product"
)

// RenewalState is the live renewal status of an auto-renewable subscription,
// resolved from the storefront at read time.
type RenewalState uint8

const (
	RenewalStateUnknown RenewalState = iota
	RenewalStateActive
	RenewalStateInGracePeriod
	RenewalStateInBillingRetry
	RenewalStateExpired
	RenewalStateRevoked
)

func (s RenewalState) String() string {
	switch s {
	case RenewalStateActive:
		return "active"
	case RenewalStateInGracePeriod:
		return "in_grace_period"
	case RenewalStateInBillingRetry:
		return "in_billing_retry"
	case RenewalStateExpired:
		return "expired"
	case RenewalStateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// RenewalResolver resolves the live renewal state of a subscription
// transaction. Resolution may require a round trip to the storefront.
type RenewalResolver interface {
	RenewalState(ctx context.Context) (RenewalState, error)
}

// RenewalResolverFunc is an adapter to allow the use of ordinary
// functions as RenewalResolvers.
type RenewalResolverFunc func(ctx context.Context) (RenewalState, error)

// RenewalState calls f(ctx).
func (f RenewalResolverFunc) RenewalState(ctx context.Context) (RenewalState, error) {
	return f(ctx)
}

// StaticRenewalState returns a resolver that always reports state.
func StaticRenewalState(state RenewalState) RenewalResolver {
	return RenewalResolverFunc(func(context.Context) (RenewalState, error) {
		return state, nil
	})
}

// Transaction is one purchase or renewal event issued by the storefront.
//
// A transaction must be finished via Executor.Finish once its effect has been
// applied, or the live update feed will redeliver it indefinitely.
type Transaction struct {
	ID             string
	ProductID      string
	ProductType    product.Type
	PurchaseDate   time.Time
	ExpirationDate *time.Time
	RevocationDate *time.Time
	IsUpgraded     bool

	// Renewal resolves the live renewal status for auto-renewable
	// subscriptions. Nil when the storefront offers no renewal info.
	Renewal RenewalResolver
}

// Result is one delivery from the live transaction update feed. A non-nil
// VerificationErr means the storefront could not verify the transaction; the
// Transaction field is only meaningful when VerificationErr is nil.
type Result struct {
	Transaction     Transaction
	VerificationErr error
}
