package manager_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/manager"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func waitForListener(t *testing.T, f *fixture) {
	t.Helper()

	require.Eventually(t, func() bool {
		return f.exec.OpenStreams() > 0
	}, waitFor, tick)
}

func TestListener_UnverifiedResultNeverChangesEntitlement(t *testing.T) {
	f := setup(t, "lifetime")
	waitForListener(t, f)

	f.exec.Deliver(transaction.Result{
		VerificationErr: errors.New("signature mismatch"),
	})

	require.Eventually(t, func() bool {
		return f.manager.LastFailure() != nil
	}, waitFor, tick)

	failure := f.manager.LastFailure()
	require.Equal(t, "transaction_update", failure.Operation)
	require.Equal(t, manager.ErrorKindVerificationFailed, failure.Err.Kind)
	require.Equal(t, "signature mismatch", failure.Err.Reason)

	// Entitlement is untouched.
	require.True(t, f.manager.EntitlementStatus().IsUnknown())
}

func TestListener_VerifiedResultActivatesEntitlement(t *testing.T) {
	f := setup(t, "lifetime")
	waitForListener(t, f)

	f.exec.Deliver(transaction.Result{
		Transaction: transaction.Transaction{
			ID:           "tx-1",
			ProductID:    "lifetime",
			ProductType:  product.TypeNonConsumable,
			PurchaseDate: time.Now(),
		},
	})

	require.Eventually(t, func() bool {
		return f.manager.EntitlementStatus().IsActive()
	}, waitFor, tick)

	// Processed transactions are always finished so the feed stops
	// redelivering them.
	require.Eventually(t, func() bool {
		return f.exec.Finished("tx-1")
	}, waitFor, tick)
}

func TestListener_NeverDowngradesActiveStatus(t *testing.T) {
	ctx := context.Background()

	f := setup(t, "lifetime")
	waitForListener(t, f)

	f.oracle.ReturnCurrent(entitlement.Subscribed(nil, false))
	require.NoError(t, f.manager.UpdateEntitlementStatus(ctx))
	require.True(t, f.manager.EntitlementStatus().IsActive())

	// A consumable derives to not-subscribed; from the background path that
	// must not displace the active status.
	f.exec.Deliver(transaction.Result{
		Transaction: transaction.Transaction{
			ID:           "tx-consumable",
			ProductID:    "coins",
			ProductType:  product.TypeConsumable,
			PurchaseDate: time.Now(),
		},
	})

	require.Eventually(t, func() bool {
		return f.exec.Finished("tx-consumable")
	}, waitFor, tick)

	require.True(t, f.manager.EntitlementStatus().IsActive())
}

func TestListener_InactiveStatusAcceptsAnyResult(t *testing.T) {
	f := setup(t, "lifetime")
	waitForListener(t, f)

	revoked := time.Now()
	f.exec.Deliver(transaction.Result{
		Transaction: transaction.Transaction{
			ID:             "tx-revoked",
			ProductID:      "lifetime",
			ProductType:    product.TypeNonConsumable,
			PurchaseDate:   time.Now(),
			RevocationDate: &revoked,
		},
	})

	require.Eventually(t, func() bool {
		status := f.manager.EntitlementStatus()
		return !status.IsUnknown() && !status.IsActive()
	}, waitFor, tick)
}

func TestListener_CloseStopsListening(t *testing.T) {
	f := setup(t, "lifetime")
	waitForListener(t, f)

	f.manager.Close()

	require.Eventually(t, func() bool {
		return f.exec.OpenStreams() == 0
	}, waitFor, tick)

	// Safe to close twice.
	f.manager.Close()
}
