package product

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the storefront knows none of the requested
// product ids.
var ErrNotFound = errors.New("products not found")

type Catalog interface {

	// FetchProducts returns the storefront metadata for the given product ids.
	//
	// ErrNotFound is returned if ids is non-empty but the storefront returns
	// nothing. Transport failures are returned wrapped.
	FetchProducts(ctx context.Context, ids []string) ([]Product, error)
}
