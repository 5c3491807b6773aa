package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/entitlement/tests"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
	txmemory "github.com/clover-apps/storefront/transaction/memory"
)

func TestStoreOracle(t *testing.T) {
	exec := txmemory.NewInMemory()
	oracle := entitlement.NewStoreOracle(exec)

	tests.RunOracleTests(t, oracle, exec.AddTransaction, exec.Reset)
}

func TestStoreOracle_MostRecentPurchaseWins(t *testing.T) {
	exec := txmemory.NewInMemory()
	oracle := entitlement.NewStoreOracle(exec)

	now := time.Now()
	active := now.Add(24 * time.Hour)

	// An older lifetime grant followed by a newer subscription: the newer
	// purchase decides the aggregate.
	exec.AddTransaction(transaction.Transaction{
		ID:           "tx-1",
		ProductID:    "lifetime",
		ProductType:  product.TypeNonConsumable,
		PurchaseDate: now.Add(-48 * time.Hour),
	})
	exec.AddTransaction(transaction.Transaction{
		ID:             "tx-2",
		ProductID:      "monthly",
		ProductType:    product.TypeAutoRenewableSubscription,
		PurchaseDate:   now,
		ExpirationDate: &active,
	})

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, status.Equal(entitlement.Subscribed(&active, false)))
}

func TestStoreOracle_SkipsRevokedAndUpgraded(t *testing.T) {
	exec := txmemory.NewInMemory()
	oracle := entitlement.NewStoreOracle(exec)

	now := time.Now()
	revoked := now

	// The newest transaction is revoked; the one before it was upgraded
	// away. The oldest still counts.
	exec.AddTransaction(transaction.Transaction{
		ID:           "tx-old",
		ProductID:    "lifetime",
		ProductType:  product.TypeNonConsumable,
		PurchaseDate: now.Add(-72 * time.Hour),
	})
	exec.AddTransaction(transaction.Transaction{
		ID:           "tx-upgraded",
		ProductID:    "monthly",
		ProductType:  product.TypeAutoRenewableSubscription,
		PurchaseDate: now.Add(-48 * time.Hour),
		IsUpgraded:   true,
	})
	exec.AddTransaction(transaction.Transaction{
		ID:             "tx-revoked",
		ProductID:      "yearly",
		ProductType:    product.TypeAutoRenewableSubscription,
		PurchaseDate:   now,
		RevocationDate: &revoked,
	})

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.True(t, status.Equal(entitlement.Subscribed(nil, false)))
}
