package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/product/memory"
)

func TestCachedCatalog(t *testing.T) {
	ctx := context.Background()

	upstream := memory.NewInMemory()
	upstream.Add(product.Product{ID: "lifetime", Type: product.TypeNonConsumable})

	catalog := NewInCache(upstream, time.Minute)

	products, err := catalog.FetchProducts(ctx, []string{"lifetime"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, 1, upstream.FetchCalls())

	// Second fetch of the same id set is served from cache.
	products, err = catalog.FetchProducts(ctx, []string{"lifetime"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, 1, upstream.FetchCalls())

	// Id order does not split cache entries.
	upstream.Add(product.Product{ID: "monthly", Type: product.TypeAutoRenewableSubscription})
	_, err = catalog.FetchProducts(ctx, []string{"monthly", "lifetime"})
	require.NoError(t, err)
	_, err = catalog.FetchProducts(ctx, []string{"lifetime", "monthly"})
	require.NoError(t, err)
	require.Equal(t, 2, upstream.FetchCalls())
}

func TestCachedCatalog_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()

	upstream := memory.NewInMemory()
	catalog := NewInCache(upstream, time.Minute)

	_, err := catalog.FetchProducts(ctx, []string{"missing"})
	require.ErrorIs(t, err, product.ErrNotFound)

	upstream.Add(product.Product{ID: "missing", Type: product.TypeNonConsumable})

	products, err := catalog.FetchProducts(ctx, []string{"missing"})
	require.NoError(t, err)
	require.Len(t, products, 1)
}
