package entitlement

import (
	"context"

	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

// DeriveStatus computes what a single verified transaction is worth. It is
// the one normalization point for entitlement: purchases, background updates,
// and explicit checks all go through it.
//
// Revoked or upgraded-away transactions grant nothing. Auto-renewable
// subscriptions require an expiration date (absent one the status is Unknown)
// and consult the live renewal state for the grace-period flag. One-time
// grants (non-consumables, non-renewing subscriptions) subscribe forever.
// Consumables and unrecognized product types grant nothing.
func DeriveStatus(ctx context.Context, tx transaction.Transaction) (Status, error) {
	if tx.RevocationDate != nil || tx.IsUpgraded {
		return NotSubscribed(), nil
	}

	switch tx.ProductType {
	case product.TypeAutoRenewableSubscription:
		if tx.ExpirationDate == nil {
			return Unknown(), nil
		}

		inGrace := false
		if tx.Renewal != nil {
			state, err := tx.Renewal.RenewalState(ctx)
			if err != nil {
				return Unknown(), err
			}
			inGrace = state == transaction.RenewalStateInGracePeriod
		}

		return Subscribed(tx.ExpirationDate, inGrace), nil

	case product.TypeNonConsumable, product.TypeNonRenewingSubscription:
		return Subscribed(nil, false), nil

	default:
		return NotSubscribed(), nil
	}
}
