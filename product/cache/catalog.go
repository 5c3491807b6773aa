package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ReneKroon/ttlcache"

	"github.com/clover-apps/storefront/product"
)

// Catalog decorates another catalog with a TTL cache of fetch results, so
// repeated fetches of the same id set skip the storefront round trip until
// the metadata goes stale.
type Catalog struct {
	upstream product.Catalog
	cache    *ttlcache.Cache
}

func NewInCache(upstream product.Catalog, ttl time.Duration) *Catalog {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &Catalog{
		upstream: upstream,
		cache:    cache,
	}
}

func (c *Catalog) FetchProducts(ctx context.Context, ids []string) ([]product.Product, error) {
	cacheKey := toCacheKey(ids)

	cached, ok := c.cache.Get(cacheKey)
	if !ok {
		products, err := c.upstream.FetchProducts(ctx, ids)
		if err != nil {
			return nil, err
		}

		copied := make([]product.Product, len(products))
		copy(copied, products)
		c.cache.Set(cacheKey, copied)

		return products, nil
	}

	products := cached.([]product.Product)
	copied := make([]product.Product, len(products))
	copy(copied, products)
	return copied, nil
}

// toCacheKey canonicalizes an id set so order does not split cache entries.
func toCacheKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
