package memory

import (
	"context"
	"sync"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/transaction"
)

// Oracle is a scriptable entitlement oracle. By default it applies the real
// derivation rule; tests can pin the aggregate result or force errors.
type Oracle struct {
	sync.Mutex

	current    *entitlement.Status
	currentErr error

	validateErr error

	currentCalls  int
	validateCalls int
}

func NewInMemory() *Oracle {
	return &Oracle{}
}

func (m *Oracle) reset() {
	m.Lock()
	defer m.Unlock()

	m.current = nil
	m.currentErr = nil
	m.validateErr = nil
	m.currentCalls = 0
	m.validateCalls = 0
}

// ReturnCurrent pins the result of CurrentEntitlement.
func (m *Oracle) ReturnCurrent(status entitlement.Status) {
	m.Lock()
	defer m.Unlock()

	m.current = &status
	m.currentErr = nil
}

// FailCurrent forces CurrentEntitlement to fail.
func (m *Oracle) FailCurrent(err error) {
	m.Lock()
	defer m.Unlock()

	m.currentErr = err
}

// FailValidate forces Validate to fail.
func (m *Oracle) FailValidate(err error) {
	m.Lock()
	defer m.Unlock()

	m.validateErr = err
}

func (m *Oracle) CurrentCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.currentCalls
}

func (m *Oracle) ValidateCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.validateCalls
}

func (m *Oracle) Validate(ctx context.Context, tx transaction.Transaction) (entitlement.Status, error) {
	m.Lock()
	m.validateCalls++
	err := m.validateErr
	m.Unlock()

	if err != nil {
		return entitlement.Unknown(), err
	}

	return entitlement.DeriveStatus(ctx, tx)
}

func (m *Oracle) CurrentEntitlement(_ context.Context) (entitlement.Status, error) {
	m.Lock()
	defer m.Unlock()

	m.currentCalls++

	if m.currentErr != nil {
		return entitlement.Unknown(), m.currentErr
	}
	if m.current != nil {
		return *m.current, nil
	}
	return entitlement.NotSubscribed(), nil
}
