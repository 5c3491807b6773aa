package memory

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/product"
)

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := NewInMemory()

	catalog.Add(product.Product{
		ID:           "lifetime",
		Type:         product.TypeNonConsumable,
		DisplayName:  "Lifetime Unlock",
		Price:        decimal.NewFromFloat(49.99),
		DisplayPrice: "$49.99",
	})

	t.Run("FetchKnownProduct", func(t *testing.T) {
		products, err := catalog.FetchProducts(ctx, []string{"lifetime"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		require.Equal(t, "lifetime", products[0].ID)
	})

	t.Run("UnknownIDsAreDropped", func(t *testing.T) {
		products, err := catalog.FetchProducts(ctx, []string{"lifetime", "nope"})
		require.NoError(t, err)
		require.Len(t, products, 1)
	})

	t.Run("NoMatchesIsNotFound", func(t *testing.T) {
		_, err := catalog.FetchProducts(ctx, []string{"nope"})
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("EmptyIDSetIsEmptyResult", func(t *testing.T) {
		products, err := catalog.FetchProducts(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, products)
	})

	t.Run("ScriptedFailure", func(t *testing.T) {
		scripted := errors.New("storefront unreachable")
		catalog.FailWith(scripted)

		_, err := catalog.FetchProducts(ctx, []string{"lifetime"})
		require.ErrorIs(t, err, scripted)

		catalog.FailWith(nil)
		_, err = catalog.FetchProducts(ctx, []string{"lifetime"})
		require.NoError(t, err)
	})

	t.Run("CountsCalls", func(t *testing.T) {
		require.Equal(t, 6, catalog.FetchCalls())
	})
}
