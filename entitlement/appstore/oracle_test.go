package appstore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/awa/go-iap/appstore"
	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

func ms(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func TestMapInApp(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	expires := now.Add(24 * time.Hour)

	t.Run("Subscription", func(t *testing.T) {
		inapp := appstore.InApp{
			ProductID:     "monthly",
			TransactionID: "tx-1",
		}
		inapp.PurchaseDateMS = ms(now)
		inapp.ExpiresDateMS = ms(expires)

		tx := MapInApp(inapp, nil)
		require.Equal(t, "tx-1", tx.ID)
		require.Equal(t, "monthly", tx.ProductID)
		require.Equal(t, product.TypeAutoRenewableSubscription, tx.ProductType)
		require.True(t, tx.PurchaseDate.Equal(now))
		require.NotNil(t, tx.ExpirationDate)
		require.True(t, tx.ExpirationDate.Equal(expires))
		require.Nil(t, tx.RevocationDate)
	})

	t.Run("OneTimeGrant", func(t *testing.T) {
		inapp := appstore.InApp{
			ProductID:     "lifetime",
			TransactionID: "tx-2",
		}
		inapp.PurchaseDateMS = ms(now)

		tx := MapInApp(inapp, nil)
		require.Equal(t, product.TypeNonConsumable, tx.ProductType)
		require.Nil(t, tx.ExpirationDate)
	})

	t.Run("Cancelled", func(t *testing.T) {
		inapp := appstore.InApp{
			ProductID:     "monthly",
			TransactionID: "tx-3",
		}
		inapp.PurchaseDateMS = ms(now)
		inapp.ExpiresDateMS = ms(expires)
		inapp.CancellationDateMS = ms(now)

		tx := MapInApp(inapp, nil)
		require.NotNil(t, tx.RevocationDate)

		status, err := entitlement.DeriveStatus(context.Background(), tx)
		require.NoError(t, err)
		require.False(t, status.IsActive())
	})

	t.Run("Upgraded", func(t *testing.T) {
		inapp := appstore.InApp{
			ProductID:     "monthly",
			TransactionID: "tx-4",
			IsUpgraded:    "true",
		}
		inapp.PurchaseDateMS = ms(now)

		tx := MapInApp(inapp, nil)
		require.True(t, tx.IsUpgraded)
	})
}

func TestLatestInApp(t *testing.T) {
	now := time.Now()

	older := appstore.InApp{ProductID: "monthly", TransactionID: "tx-old"}
	older.PurchaseDateMS = ms(now.Add(-48 * time.Hour))

	newest := appstore.InApp{ProductID: "yearly", TransactionID: "tx-new"}
	newest.PurchaseDateMS = ms(now)

	cancelled := appstore.InApp{ProductID: "weekly", TransactionID: "tx-cancelled"}
	cancelled.PurchaseDateMS = ms(now.Add(time.Hour))
	cancelled.CancellationDateMS = ms(now)

	upgraded := appstore.InApp{ProductID: "monthly", TransactionID: "tx-upgraded", IsUpgraded: "true"}
	upgraded.PurchaseDateMS = ms(now.Add(2 * time.Hour))

	got := latestInApp([]appstore.InApp{older, cancelled, newest, upgraded})
	require.NotNil(t, got)
	require.Equal(t, "tx-new", got.TransactionID)

	require.Nil(t, latestInApp(nil))
	require.Nil(t, latestInApp([]appstore.InApp{cancelled, upgraded}))
}

func TestRenewalState(t *testing.T) {
	now := time.Now()

	t.Run("GracePeriod", func(t *testing.T) {
		p := appstore.PendingRenewalInfo{ProductID: "monthly"}
		p.GracePeriodDateMS = ms(now.Add(24 * time.Hour))

		require.Equal(t, transaction.RenewalStateInGracePeriod, renewalState(p, now))
	})

	t.Run("ExpiredGracePeriodFallsThrough", func(t *testing.T) {
		p := appstore.PendingRenewalInfo{ProductID: "monthly"}
		p.GracePeriodDateMS = ms(now.Add(-24 * time.Hour))

		require.Equal(t, transaction.RenewalStateActive, renewalState(p, now))
	})

	t.Run("BillingRetry", func(t *testing.T) {
		p := appstore.PendingRenewalInfo{
			ProductID:             "monthly",
			SubscriptionRetryFlag: "1",
		}
		require.Equal(t, transaction.RenewalStateInBillingRetry, renewalState(p, now))
	})

	t.Run("Expired", func(t *testing.T) {
		p := appstore.PendingRenewalInfo{
			ProductID:                    "monthly",
			SubscriptionExpirationIntent: "1",
		}
		require.Equal(t, transaction.RenewalStateExpired, renewalState(p, now))
	})

	t.Run("Active", func(t *testing.T) {
		p := appstore.PendingRenewalInfo{ProductID: "monthly"}
		require.Equal(t, transaction.RenewalStateActive, renewalState(p, now))
	})
}

func TestOracle_EmptyReceiptIsNotSubscribed(t *testing.T) {
	oracle := NewOracle("secret", "com.example.app", ReceiptProviderFunc(func(context.Context) (string, error) {
		return "", nil
	}), nil)

	status, err := oracle.CurrentEntitlement(context.Background())
	require.NoError(t, err)
	require.False(t, status.IsActive())
	require.False(t, status.IsUnknown())
}
