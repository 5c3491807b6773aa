package manager

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clover-apps/storefront/entitlement"
	"github.com/clover-apps/storefront/event"
	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

// ChangeKind identifies which published value a Change carries.
type ChangeKind uint8

const (
	ChangeProducts ChangeKind = iota
	ChangeEntitlement
	ChangeState
	ChangeFailure
)

// Change is one published-state update. Only the field matching Kind is
// meaningful.
type Change struct {
	Kind ChangeKind

	Products    []product.Product
	Entitlement entitlement.Status
	State       PurchaseState
	Failure     *Failure
}

// Config is the manager's construction-time configuration, immutable after
// New.
type Config struct {
	// ProductIDs is the set of product ids the catalog is queried for.
	ProductIDs []string

	// EnableDebugLogging controls whether debug-level events are emitted at
	// all. Warnings and errors are always logged.
	EnableDebugLogging bool
}

// Manager coordinates product fetches, purchases, restores, and entitlement
// checks against the storefront collaborators, and publishes the resulting
// state. All published values are single-writer: collaborators never mutate
// them directly.
type Manager struct {
	log     *zap.Logger
	cfg     Config
	catalog product.Catalog
	exec    transaction.Executor
	oracle  entitlement.Oracle

	bus *event.Bus[ChangeKind, Change]

	mu          sync.Mutex
	products    []product.Product
	status      entitlement.Status
	state       PurchaseState
	lastFailure *Failure

	cancelListener context.CancelFunc
	listenerDone   chan struct{}
	closeOnce      sync.Once
}

// New creates a Manager and starts its background transaction-update
// listener. Close must be called to stop it.
func New(
	cfg Config,
	catalog product.Catalog,
	exec transaction.Executor,
	oracle entitlement.Oracle,
	log *zap.Logger,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.EnableDebugLogging {
		log = log.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
	}

	cfg.ProductIDs = append([]string(nil), cfg.ProductIDs...)

	m := &Manager{
		log:          log,
		cfg:          cfg,
		catalog:      catalog,
		exec:         exec,
		oracle:       oracle,
		bus:          event.NewBus[ChangeKind, Change](),
		status:       entitlement.Unknown(),
		state:        Idle(),
		listenerDone: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelListener = cancel
	go m.listen(ctx)

	return m
}

// Close cancels the transaction-update listener. Safe to call more than
// once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancelListener()
		<-m.listenerDone
	})
}

// OnChange registers a handler for published-state updates. Handlers are
// invoked synchronously and only on actual value change or operation
// transition.
func (m *Manager) OnChange(h event.Handler[ChangeKind, Change]) {
	m.bus.AddHandler(h)
}

// AvailableProducts returns the product snapshot from the most recent
// successful fetch.
func (m *Manager) AvailableProducts() []product.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]product.Product, len(m.products))
	copy(out, m.products)
	return out
}

func (m *Manager) EntitlementStatus() entitlement.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

func (m *Manager) PurchaseState() PurchaseState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// LastFailure returns the most recent failure record, or nil if the last
// operation started since has not failed.
func (m *Manager) LastFailure() *Failure {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastFailure
}

// FetchProducts queries the catalog for the configured product ids and
// replaces the published snapshot wholesale. An already-running fetch makes
// this a no-op.
func (m *Manager) FetchProducts(ctx context.Context) error {
	m.mu.Lock()
	if m.state.IsFetchingProducts() {
		m.mu.Unlock()
		m.log.Warn("Ignoring fetch while another fetch is in flight")
		return nil
	}
	changes := m.clearFailureLocked()
	changes = append(changes, m.setStateLocked(FetchingProducts())...)
	m.mu.Unlock()
	m.emit(changes)

	m.log.Debug("Fetching products", zap.Strings("product_ids", m.cfg.ProductIDs))

	products, err := m.catalog.FetchProducts(ctx, m.cfg.ProductIDs)
	if err == nil && len(products) == 0 && len(m.cfg.ProductIDs) > 0 {
		err = product.ErrNotFound
	}

	if err != nil {
		m.log.Warn("Failed to fetch products", zap.Error(err))

		classified := classifyFetchError(err)
		m.mu.Lock()
		changes = m.setProductsLocked(nil)
		changes = append(changes, m.setFailureLocked(newFailure(classified, "fetch_products", ""))...)
		changes = append(changes, m.setStateLocked(Idle())...)
		m.mu.Unlock()
		m.emit(changes)
		return classified
	}

	m.log.Debug("Fetched products", zap.Int("count", len(products)))

	m.mu.Lock()
	changes = m.setProductsLocked(products)
	changes = append(changes, m.setStateLocked(Idle())...)
	m.mu.Unlock()
	m.emit(changes)
	return nil
}

// Purchase buys productID, optionally applying the promotional offer with
// offerID. The product must be present in the current snapshot, and only one
// purchase may be in flight at a time.
func (m *Manager) Purchase(ctx context.Context, productID, offerID string) error {
	m.mu.Lock()
	if m.state.IsPurchasing() {
		inFlight := m.state.ProductID()
		classified := newError(ErrorKindPurchasePending)
		changes := m.setFailureLocked(newFailure(classified, "purchase", productID))
		m.mu.Unlock()
		m.emit(changes)

		m.log.Warn("Rejecting purchase while another is in flight",
			zap.String("product_id", productID),
			zap.String("in_flight_product_id", inFlight))
		return classified
	}

	changes := m.clearFailureLocked()

	p, ok := m.productLocked(productID)
	if !ok {
		classified := &Error{Kind: ErrorKindProductNotAvailable, ProductID: productID}
		changes = append(changes, m.setFailureLocked(newFailure(classified, "purchase", productID))...)
		m.mu.Unlock()
		m.emit(changes)

		m.log.Warn("Purchase requested for a product outside the fetched snapshot",
			zap.String("product_id", productID))
		return classified
	}

	changes = append(changes, m.setStateLocked(Purchasing(productID))...)
	m.mu.Unlock()
	m.emit(changes)

	log := m.log.With(zap.String("product_id", productID))
	if offerID != "" {
		log = log.With(zap.String("offer_id", offerID))
	}
	log.Debug("Starting purchase")

	tx, err := m.exec.Purchase(ctx, p, offerID)
	if err != nil {
		log.Warn("Purchase failed", zap.Error(err))
		return m.failOp(classifyPurchaseError(err), "purchase", productID)
	}

	log = log.With(zap.String("transaction_id", tx.ID))
	log.Debug("Purchase succeeded, validating transaction")

	status, err := m.oracle.Validate(ctx, tx)
	if err != nil {
		// The transaction is deliberately left unfinished so the live feed
		// redelivers it once validation can succeed.
		log.Warn("Failed to validate purchased transaction", zap.Error(err))
		return m.failOp(wrapError(err), "purchase", productID)
	}

	m.mu.Lock()
	changes = m.setStatusLocked(status)
	m.mu.Unlock()
	m.emit(changes)

	if err := m.exec.Finish(ctx, tx); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}

	m.mu.Lock()
	changes = m.setStateLocked(Idle())
	m.mu.Unlock()
	m.emit(changes)

	log.Debug("Purchase complete", zap.Stringer("entitlement", status))
	return nil
}

// RestorePurchases syncs prior purchases with the storefront and recomputes
// the aggregate entitlement. A sync failure is recorded but does not prevent
// the recheck: whatever state the device already knows about is still worth
// reconciling.
func (m *Manager) RestorePurchases(ctx context.Context) error {
	m.mu.Lock()
	if m.state.IsRestoring() {
		m.mu.Unlock()
		m.log.Warn("Ignoring restore while another restore is in flight")
		return nil
	}
	changes := m.clearFailureLocked()
	changes = append(changes, m.setStateLocked(Restoring())...)
	m.mu.Unlock()
	m.emit(changes)

	m.log.Debug("Restoring purchases")

	var syncErr *Error
	if err := m.exec.SyncWithStore(ctx); err != nil {
		m.log.Warn("Failed to sync with store, proceeding with local state", zap.Error(err))

		syncErr = wrapError(err)
		m.mu.Lock()
		changes = m.setFailureLocked(newFailure(syncErr, "restore_purchases", ""))
		m.mu.Unlock()
		m.emit(changes)
	}

	checkErr := m.refreshEntitlement(ctx, "restore_purchases")

	m.mu.Lock()
	changes = m.setStateLocked(Idle())
	m.mu.Unlock()
	m.emit(changes)

	if checkErr != nil {
		return checkErr
	}
	if syncErr != nil {
		return syncErr
	}
	return nil
}

// UpdateEntitlementStatus recomputes the aggregate entitlement on demand.
// The prior purchase state is restored afterward so the check can run as a
// sub-step of other operations without clobbering them.
func (m *Manager) UpdateEntitlementStatus(ctx context.Context) error {
	m.mu.Lock()
	changes := m.clearFailureLocked()
	m.mu.Unlock()
	m.emit(changes)

	return m.refreshEntitlement(ctx, "update_entitlement_status")
}

// refreshEntitlement transitions through checkingEntitlement, asks the
// oracle for the aggregate status, and restores whatever state preceded the
// check. lastFailure is left alone on success so callers can layer a check
// on top of an already-recorded partial failure.
func (m *Manager) refreshEntitlement(ctx context.Context, operation string) error {
	m.mu.Lock()
	prev := m.state
	changes := m.setStateLocked(CheckingEntitlement())
	m.mu.Unlock()
	m.emit(changes)

	status, err := m.oracle.CurrentEntitlement(ctx)

	m.mu.Lock()
	if err != nil {
		m.log.Warn("Failed to check current entitlements", zap.Error(err))
		classified := wrapError(err)
		changes = m.setFailureLocked(newFailure(classified, operation, ""))
		changes = append(changes, m.setStateLocked(prev)...)
		m.mu.Unlock()
		m.emit(changes)
		return classified
	}

	changes = m.setStatusLocked(status)
	changes = append(changes, m.setStateLocked(prev)...)
	m.mu.Unlock()
	m.emit(changes)

	m.log.Debug("Checked current entitlements", zap.Stringer("entitlement", status))
	return nil
}

// AllTransactions enumerates the user's verified transactions. Read-only; no
// published state is touched.
func (m *Manager) AllTransactions(ctx context.Context) ([]transaction.Transaction, error) {
	return m.exec.AllTransactions(ctx)
}

// SubscriptionDetails pairs a subscription transaction with its live renewal
// status.
type SubscriptionDetails struct {
	Transaction  transaction.Transaction
	RenewalState transaction.RenewalState
}

// SubscriptionDetails reports the renewal status of the most recent
// non-upgraded auto-renewable transaction for productID. A nil result (with
// nil error) means no such transaction exists.
func (m *Manager) SubscriptionDetails(ctx context.Context, productID string) (*SubscriptionDetails, error) {
	txs, err := m.exec.AllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	var latest *transaction.Transaction
	for i := range txs {
		tx := &txs[i]
		if tx.ProductID != productID || tx.ProductType != product.TypeAutoRenewableSubscription {
			continue
		}
		if tx.IsUpgraded {
			continue
		}
		if latest == nil || tx.PurchaseDate.After(latest.PurchaseDate) {
			latest = tx
		}
	}

	if latest == nil {
		return nil, nil
	}

	state := transaction.RenewalStateUnknown
	if latest.Renewal != nil {
		state, err = latest.Renewal.RenewalState(ctx)
		if err != nil {
			return nil, err
		}
	}

	return &SubscriptionDetails{Transaction: *latest, RenewalState: state}, nil
}

// EligiblePromotionalOffers returns the promotional offers attached to an
// auto-renewable subscription product, or nothing for any other product.
func (m *Manager) EligiblePromotionalOffers(p product.Product) []product.PromotionalOffer {
	if p.Type != product.TypeAutoRenewableSubscription || p.Subscription == nil {
		return nil
	}
	return append([]product.PromotionalOffer(nil), p.Subscription.PromotionalOffers...)
}

// CanMakePayments reports whether the user may make payments at all.
func (m *Manager) CanMakePayments() bool {
	return m.exec.CanMakePayments()
}

// failOp records a classified failure and returns the manager to idle.
func (m *Manager) failOp(classified *Error, operation, productID string) *Error {
	m.mu.Lock()
	changes := m.setFailureLocked(newFailure(classified, operation, productID))
	changes = append(changes, m.setStateLocked(Idle())...)
	m.mu.Unlock()
	m.emit(changes)
	return classified
}

func (m *Manager) productLocked(productID string) (product.Product, bool) {
	for _, p := range m.products {
		if p.ID == productID {
			return p, true
		}
	}
	return product.Product{}, false
}

// The setXXXLocked helpers mutate published state under m.mu and hand back
// the changes to emit once the lock is released. Each emits only on actual
// value change.

func (m *Manager) setProductsLocked(products []product.Product) []Change {
	changed := !sameProducts(m.products, products)

	// The snapshot is replaced wholesale even when the comparison sees no
	// change, so non-key metadata from the latest fetch is never dropped.
	m.products = products

	if !changed {
		return nil
	}
	snapshot := make([]product.Product, len(products))
	copy(snapshot, products)
	return []Change{{Kind: ChangeProducts, Products: snapshot}}
}

func (m *Manager) setStatusLocked(status entitlement.Status) []Change {
	if m.status.Equal(status) {
		return nil
	}
	m.status = status
	return []Change{{Kind: ChangeEntitlement, Entitlement: status}}
}

func (m *Manager) setStateLocked(state PurchaseState) []Change {
	if m.state.Equal(state) {
		return nil
	}
	m.state = state
	return []Change{{Kind: ChangeState, State: state}}
}

func (m *Manager) setFailureLocked(failure *Failure) []Change {
	m.lastFailure = failure
	return []Change{{Kind: ChangeFailure, Failure: failure}}
}

func (m *Manager) clearFailureLocked() []Change {
	if m.lastFailure == nil {
		return nil
	}
	m.lastFailure = nil
	return []Change{{Kind: ChangeFailure}}
}

func (m *Manager) emit(changes []Change) {
	for _, c := range changes {
		m.bus.OnEvent(c.Kind, c)
	}
}

func sameProducts(a, b []product.Product) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].DisplayPrice != b[i].DisplayPrice {
			return false
		}
	}
	return true
}
