package memory

import (
	"context"
	"sync"

	"github.com/clover-apps/storefront/product"
)

// Catalog is a scriptable in-memory product catalog for tests and local
// development.
type Catalog struct {
	sync.Mutex

	// maps a product id to its storefront metadata.
	products map[string]product.Product

	// err, when set, is returned from every fetch until cleared.
	err error

	fetchCalls int
}

// NewInMemory creates an empty in-memory catalog. Products are registered
// with Add; fetches return copies keyed off the requested ids.
func NewInMemory() *Catalog {
	return &Catalog{
		products: make(map[string]product.Product),
	}
}

// Reset drops all registered products, scripted failures, and counters.
func (m *Catalog) Reset() {
	m.Lock()
	defer m.Unlock()

	m.products = make(map[string]product.Product)
	m.err = nil
	m.fetchCalls = 0
}

// Add registers a product, replacing any previous entry with the same id.
func (m *Catalog) Add(p product.Product) {
	m.Lock()
	defer m.Unlock()

	m.products[p.ID] = p
}

// FailWith forces every subsequent fetch to fail with err. Passing nil
// restores normal behavior.
func (m *Catalog) FailWith(err error) {
	m.Lock()
	defer m.Unlock()

	m.err = err
}

// FetchCalls returns how many times FetchProducts was invoked.
func (m *Catalog) FetchCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.fetchCalls
}

func (m *Catalog) FetchProducts(_ context.Context, ids []string) ([]product.Product, error) {
	m.Lock()
	defer m.Unlock()

	m.fetchCalls++

	if m.err != nil {
		return nil, m.err
	}

	var found []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found = append(found, p)
		}
	}

	if len(ids) > 0 && len(found) == 0 {
		return nil, product.ErrNotFound
	}

	return found, nil
}
