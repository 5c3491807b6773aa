package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

// SeedTransaction makes one verified transaction visible to the oracle under
// test as a currently-held entitlement.
type SeedTransaction func(tx transaction.Transaction)

// RunOracleTests runs the generic oracle conformance suite.
func RunOracleTests(t *testing.T, oracle entitlement.Oracle, seed SeedTransaction, teardown func()) {
	for _, tf := range []func(t *testing.T, oracle entitlement.Oracle, seed SeedTransaction){
		testEmptyEntitlements,
		testLifetimeGrant,
		testRevokedGrantsNothing,
		testGracePeriod,
	} {
		tf(t, oracle, seed)
		teardown()
	}
}

func testEmptyEntitlements(t *testing.T, oracle entitlement.Oracle, _ SeedTransaction) {
	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, status.Equal(entitlement.NotSubscribed()))
}

func testLifetimeGrant(t *testing.T, oracle entitlement.Oracle, seed SeedTransaction) {
	seed(transaction.Transaction{
		ID:           "tx-lifetime",
		ProductID:    "lifetime",
		ProductType:  product.TypeNonConsumable,
		PurchaseDate: time.Now(),
	})

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsActive())
	require.Nil(t, status.Expiry())
}

func testRevokedGrantsNothing(t *testing.T, oracle entitlement.Oracle, seed SeedTransaction) {
	revoked := time.Now()
	seed(transaction.Transaction{
		ID:             "tx-revoked",
		ProductID:      "lifetime",
		ProductType:    product.TypeNonConsumable,
		PurchaseDate:   time.Now(),
		RevocationDate: &revoked,
	})

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.False(t, status.IsActive())
}

func testGracePeriod(t *testing.T, oracle entitlement.Oracle, seed SeedTransaction) {
	expires := time.Now().Add(24 * time.Hour)
	seed(transaction.Transaction{
		ID:             "tx-grace",
		ProductID:      "monthly",
		ProductType:    product.TypeAutoRenewableSubscription,
		PurchaseDate:   time.Now(),
		ExpirationDate: &expires,
		Renewal:        transaction.StaticRenewalState(transaction.RenewalStateInGracePeriod),
	})

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsActive())
	require.True(t, status.InGracePeriod())
	require.NotNil(t, status.Expiry())
	require.True(t, status.Expiry().Equal(expires))
}
