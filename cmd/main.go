package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/event"
	"github.com/clover-apps/storefront/manager"
	"github.com/clover-apps/storefront/product"
	productmemory "github.com/clover-apps/storefront/product/memory"
	transactionmemory "github.com/clover-apps/storefront/transaction/memory"
)

// Demo wiring against the in-memory backends: fetch the catalog, buy the
// lifetime unlock, then restore.
func main() {
	_ = godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logger.Sync()

	lifetimeID := os.Getenv("STOREFRONT_LIFETIME_PRODUCT_ID")
	if lifetimeID == "" {
		lifetimeID = "com.cloverapps.demo.lifetime"
	}
	monthlyID := os.Getenv("STOREFRONT_MONTHLY_PRODUCT_ID")
	if monthlyID == "" {
		monthlyID = "com.cloverapps.demo.monthly"
	}

	catalog := productmemory.NewInMemory()
	catalog.Add(product.Product{
		ID:           lifetimeID,
		Type:         product.TypeNonConsumable,
		DisplayName:  "Lifetime Unlock",
		Price:        decimal.NewFromFloat(49.99),
		DisplayPrice: "$49.99",
	})
	catalog.Add(product.Product{
		ID:           monthlyID,
		Type:         product.TypeAutoRenewableSubscription,
		DisplayName:  "Monthly Plan",
		Price:        decimal.NewFromFloat(4.99),
		DisplayPrice: "$4.99",
		Subscription: &product.SubscriptionInfo{
			SubscriptionPeriod: 30 * 24 * time.Hour,
		},
	})

	exec := transactionmemory.NewInMemory()
	oracle := entitlement.NewStoreOracle(exec)

	m := manager.New(manager.Config{
		ProductIDs:         []string{lifetimeID, monthlyID},
		EnableDebugLogging: true,
	}, catalog, exec, oracle, logger)
	defer m.Close()

	m.OnChange(event.HandlerFunc[manager.ChangeKind, manager.Change](func(kind manager.ChangeKind, c manager.Change) {
		switch kind {
		case manager.ChangeProducts:
			fmt.Println("products:", len(c.Products))
		case manager.ChangeEntitlement:
			fmt.Println("entitlement:", c.Entitlement)
		case manager.ChangeState:
			fmt.Println("state:", c.State)
		case manager.ChangeFailure:
			if c.Failure != nil {
				fmt.Println("failure:", c.Failure.Operation, c.Failure.Err)
			}
		}
	}))

	ctx := context.Background()

	if err := m.FetchProducts(ctx); err != nil {
		log.Fatal("Failed to fetch products:", err)
	}

	if err := m.Purchase(ctx, lifetimeID, ""); err != nil {
		log.Fatal("Failed to purchase:", err)
	}

	if err := m.RestorePurchases(ctx); err != nil {
		log.Fatal("Failed to restore:", err)
	}

	fmt.Println("active:", m.EntitlementStatus().IsActive())
}
