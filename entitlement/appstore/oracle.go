package appstore

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/awa/go-iap/appstore"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

// ReceiptProvider supplies the device's current base64-encoded App Store
// receipt.
type ReceiptProvider interface {
	Receipt(ctx context.Context) (string, error)
}

// ReceiptProviderFunc is an adapter to allow the use of ordinary
// functions as ReceiptProviders.
type ReceiptProviderFunc func(ctx context.Context) (string, error)

// Receipt calls f(ctx).
func (f ReceiptProviderFunc) Receipt(ctx context.Context) (string, error) {
	return f(ctx)
}

type OracleOption func(*Oracle)

func HTTPTimeout(v time.Duration) OracleOption {
	return func(o *Oracle) {
		o.httpTimeout = v
	}
}

// Oracle derives entitlement from the App Store receipt verification
// service. The aggregate status comes from the latest receipt entry that was
// neither cancelled nor upgraded away; renewal state is read from the
// receipt's pending-renewal info.
type Oracle struct {
	log          *zap.Logger
	client       *appstore.Client
	sharedSecret string
	bundleID     string
	receipts     ReceiptProvider

	httpTimeout time.Duration
}

func NewOracle(sharedSecret, bundleID string, receipts ReceiptProvider, log *zap.Logger, opts ...OracleOption) *Oracle {
	if log == nil {
		log = zap.NewNop()
	}

	o := &Oracle{
		log:          log,
		sharedSecret: sharedSecret,
		bundleID:     bundleID,
		receipts:     receipts,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.httpTimeout == 0 {
		o.httpTimeout = 10 * time.Second
	}

	o.client = appstore.NewWithClient(&http.Client{
		Timeout: o.httpTimeout,
	})
	return o
}

func (o *Oracle) Validate(ctx context.Context, tx transaction.Transaction) (entitlement.Status, error) {
	return entitlement.DeriveStatus(ctx, tx)
}

func (o *Oracle) CurrentEntitlement(ctx context.Context) (entitlement.Status, error) {
	receipt, err := o.receipts.Receipt(ctx)
	if err != nil {
		return entitlement.Unknown(), errors.Wrap(err, "failed to load receipt")
	}
	if receipt == "" {
		// Nothing was ever purchased on this device.
		return entitlement.NotSubscribed(), nil
	}

	req := appstore.IAPRequest{
		ReceiptData: receipt,
		Password:    o.sharedSecret,
	}
	resp := &appstore.IAPResponse{}
	if err := o.client.Verify(ctx, req, resp); err != nil {
		return entitlement.Unknown(), errors.Wrap(err, "failed to verify receipt")
	}
	if err := appstore.HandleError(resp.Status); err != nil {
		return entitlement.Unknown(), errors.Wrapf(err, "receipt rejected (status %d)", resp.Status)
	}
	if o.bundleID != "" && resp.Receipt.BundleID != o.bundleID {
		return entitlement.Unknown(), errors.Errorf("bundle id mismatch: %s", resp.Receipt.BundleID)
	}

	inapps := resp.LatestReceiptInfo
	if len(inapps) == 0 {
		inapps = resp.Receipt.InApp
	}

	latest := latestInApp(inapps)
	if latest == nil {
		return entitlement.NotSubscribed(), nil
	}

	o.log.Debug("Resolved latest receipt entry",
		zap.String("product_id", latest.ProductID),
		zap.String("transaction_id", latest.TransactionID))

	tx := MapInApp(*latest, renewalResolver(resp.PendingRenewalInfo, latest.ProductID))
	return o.Validate(ctx, tx)
}

// latestInApp returns the entry with the most recent purchase date among
// those still worth something (not cancelled, not upgraded away).
func latestInApp(inapps []appstore.InApp) *appstore.InApp {
	var ts int64
	var latest *appstore.InApp
	for i := range inapps {
		e := &inapps[i]
		if e.CancellationDateMS != "" || e.IsUpgraded == "true" {
			continue
		}
		pms, _ := strconv.ParseInt(e.PurchaseDateMS, 10, 64)
		if latest == nil || pms > ts {
			ts = pms
			latest = e
		}
	}
	return latest
}

// MapInApp converts one receipt entry into the transaction model. The
// receipt API does not carry an explicit product type, so an entry with an
// expiration date is treated as an auto-renewable subscription and anything
// else as a one-time grant.
func MapInApp(inapp appstore.InApp, renewal transaction.RenewalResolver) transaction.Transaction {
	tx := transaction.Transaction{
		ID:           inapp.TransactionID,
		ProductID:    inapp.ProductID,
		ProductType:  product.TypeNonConsumable,
		PurchaseDate: msToTime(inapp.PurchaseDateMS),
		IsUpgraded:   inapp.IsUpgraded == "true",
		Renewal:      renewal,
	}

	if t := msToTime(inapp.ExpiresDateMS); !t.IsZero() {
		tx.ProductType = product.TypeAutoRenewableSubscription
		tx.ExpirationDate = &t
	}
	if t := msToTime(inapp.CancellationDateMS); !t.IsZero() {
		tx.RevocationDate = &t
	}

	return tx
}

// renewalResolver interprets the pending-renewal entry for productID.
func renewalResolver(pending []appstore.PendingRenewalInfo, productID string) transaction.RenewalResolver {
	for _, p := range pending {
		if p.ProductID != productID {
			continue
		}
		return transaction.StaticRenewalState(renewalState(p, time.Now()))
	}
	return nil
}

func renewalState(p appstore.PendingRenewalInfo, now time.Time) transaction.RenewalState {
	if t := msToTime(p.GracePeriodDateMS); !t.IsZero() && t.After(now) {
		return transaction.RenewalStateInGracePeriod
	}
	if p.SubscriptionRetryFlag == "1" {
		return transaction.RenewalStateInBillingRetry
	}
	if p.SubscriptionExpirationIntent != "" {
		return transaction.RenewalStateExpired
	}
	return transaction.RenewalStateActive
}

func msToTime(ms string) time.Time {
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
