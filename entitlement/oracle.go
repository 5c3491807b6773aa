package entitlement

import (
	"context"

	"github.com/clover-apps/storefront/transaction"
)

type Oracle interface {

	// Validate interprets a single verified transaction.
	Validate(ctx context.Context, tx transaction.Transaction) (Status, error)

	// CurrentEntitlement computes the aggregate status from every entitlement
	// the user currently holds.
	CurrentEntitlement(ctx context.Context) (Status, error)
}

// TransactionSource enumerates the transactions CurrentEntitlement inspects.
// transaction.Executor satisfies it.
type TransactionSource interface {
	AllTransactions(ctx context.Context) ([]transaction.Transaction, error)
}

// StoreOracle derives entitlement directly from storefront transactions: the
// aggregate status comes from the most recently purchased transaction that
// was neither revoked nor upgraded away.
type StoreOracle struct {
	source TransactionSource
}

func NewStoreOracle(source TransactionSource) *StoreOracle {
	return &StoreOracle{source: source}
}

func (o *StoreOracle) Validate(ctx context.Context, tx transaction.Transaction) (Status, error) {
	return DeriveStatus(ctx, tx)
}

func (o *StoreOracle) CurrentEntitlement(ctx context.Context) (Status, error) {
	txs, err := o.source.AllTransactions(ctx)
	if err != nil {
		return Unknown(), err
	}

	var latest *transaction.Transaction
	for i := range txs {
		tx := &txs[i]
		if tx.RevocationDate != nil || tx.IsUpgraded {
			continue
		}
		if latest == nil || tx.PurchaseDate.After(latest.PurchaseDate) {
			latest = tx
		}
	}

	if latest == nil {
		return NotSubscribed(), nil
	}

	return o.Validate(ctx, *latest)
}
