package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clover-apps/storefront/product"
	"github.com/clover-apps/storefront/transaction"
)

const notifyTimeout = time.Second

// Executor is a scriptable in-memory purchase executor. It grants purchases
// immediately, keeps the resulting transactions enumerable, tracks which ones
// were finished, and redelivers unfinished ones on request, so tests can
// exercise the same lifecycle the platform storefront imposes.
type Executor struct {
	sync.Mutex

	// OnPurchase, when set, overrides how a successful purchase materializes
	// into a transaction.
	OnPurchase func(p product.Product, offerID string) transaction.Transaction

	purchaseErrs map[string]error
	syncErr      error

	purchaseCalls int
	syncCalls     int

	transactions []transaction.Transaction
	finished     map[string]bool

	// delivered remembers feed deliveries so unfinished ones can be replayed.
	delivered []transaction.Result

	paymentsDisabled bool

	streams []*transaction.UpdateStream
}

func NewInMemory() *Executor {
	return &Executor{
		purchaseErrs: make(map[string]error),
		finished:     make(map[string]bool),
	}
}

// Reset drops all scripted behavior, recorded transactions, and counters.
// Open update feeds stay open.
func (m *Executor) Reset() {
	m.Lock()
	defer m.Unlock()

	m.OnPurchase = nil
	m.purchaseErrs = make(map[string]error)
	m.syncErr = nil
	m.purchaseCalls = 0
	m.syncCalls = 0
	m.transactions = nil
	m.finished = make(map[string]bool)
	m.delivered = nil
	m.paymentsDisabled = false
}

// FailPurchase scripts the outcome of purchasing productID. Passing nil
// clears the script.
func (m *Executor) FailPurchase(productID string, err error) {
	m.Lock()
	defer m.Unlock()

	if err == nil {
		delete(m.purchaseErrs, productID)
		return
	}
	m.purchaseErrs[productID] = err
}

// FailSync scripts the outcome of SyncWithStore.
func (m *Executor) FailSync(err error) {
	m.Lock()
	defer m.Unlock()

	m.syncErr = err
}

// DisablePayments makes CanMakePayments report false.
func (m *Executor) DisablePayments() {
	m.Lock()
	defer m.Unlock()

	m.paymentsDisabled = true
}

func (m *Executor) PurchaseCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.purchaseCalls
}

func (m *Executor) SyncCalls() int {
	m.Lock()
	defer m.Unlock()

	return m.syncCalls
}

// Finished reports whether Finish was called for the transaction id.
func (m *Executor) Finished(txID string) bool {
	m.Lock()
	defer m.Unlock()

	return m.finished[txID]
}

// AddTransaction seeds a transaction into the enumerable history without
// going through Purchase, as a restore would surface it.
func (m *Executor) AddTransaction(tx transaction.Transaction) {
	m.Lock()
	defer m.Unlock()

	m.transactions = append(m.transactions, tx)
}

func (m *Executor) Purchase(_ context.Context, p product.Product, offerID string) (transaction.Transaction, error) {
	m.Lock()
	m.purchaseCalls++

	if err := m.purchaseErrs[p.ID]; err != nil {
		m.Unlock()
		return transaction.Transaction{}, err
	}

	onPurchase := m.OnPurchase
	m.Unlock()

	var tx transaction.Transaction
	if onPurchase != nil {
		tx = onPurchase(p, offerID)
	} else {
		tx = grant(p)
	}

	m.Lock()
	m.transactions = append(m.transactions, tx)
	m.Unlock()

	return tx, nil
}

func (m *Executor) AllTransactions(_ context.Context) ([]transaction.Transaction, error) {
	m.Lock()
	defer m.Unlock()

	out := make([]transaction.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}

func (m *Executor) Updates(ctx context.Context) <-chan transaction.Result {
	stream := transaction.NewUpdateStream(16)

	m.Lock()
	m.streams = append(m.streams, stream)
	m.Unlock()

	go func() {
		<-ctx.Done()

		m.Lock()
		for i, s := range m.streams {
			if s == stream {
				m.streams = append(m.streams[:i], m.streams[i+1:]...)
				break
			}
		}
		m.Unlock()

		stream.Close()
	}()

	return stream.Channel()
}

// OpenStreams reports how many update feeds are currently subscribed. Tests
// use it to wait for a listener before delivering.
func (m *Executor) OpenStreams() int {
	m.Lock()
	defer m.Unlock()

	return len(m.streams)
}

// Deliver pushes one result onto every open update feed, remembering it for
// redelivery until its transaction is finished.
func (m *Executor) Deliver(result transaction.Result) {
	m.Lock()
	if result.VerificationErr == nil {
		m.delivered = append(m.delivered, result)
	}
	streams := make([]*transaction.UpdateStream, len(m.streams))
	copy(streams, m.streams)
	m.Unlock()

	for _, s := range streams {
		_ = s.Notify(result, notifyTimeout)
	}
}

// RedeliverUnfinished replays every delivered transaction that was never
// finished, mimicking the storefront's behavior across app launches.
func (m *Executor) RedeliverUnfinished() {
	m.Lock()
	var pending []transaction.Result
	for _, r := range m.delivered {
		if !m.finished[r.Transaction.ID] {
			pending = append(pending, r)
		}
	}
	streams := make([]*transaction.UpdateStream, len(m.streams))
	copy(streams, m.streams)
	m.Unlock()

	for _, r := range pending {
		for _, s := range streams {
			_ = s.Notify(r, notifyTimeout)
		}
	}
}

func (m *Executor) Finish(_ context.Context, tx transaction.Transaction) error {
	m.Lock()
	defer m.Unlock()

	m.finished[tx.ID] = true
	return nil
}

func (m *Executor) SyncWithStore(_ context.Context) error {
	m.Lock()
	defer m.Unlock()

	m.syncCalls++
	return m.syncErr
}

func (m *Executor) CanMakePayments() bool {
	m.Lock()
	defer m.Unlock()

	return !m.paymentsDisabled
}

// grant builds the default successful-purchase transaction for p: lifetime
// for one-time products, one renewal period out for subscriptions.
func grant(p product.Product) transaction.Transaction {
	tx := transaction.Transaction{
		ID:           uuid.NewString(),
		ProductID:    p.ID,
		ProductType:  p.Type,
		PurchaseDate: time.Now(),
	}

	if p.Type == product.TypeAutoRenewableSubscription {
		period := 30 * 24 * time.Hour
		if p.Subscription != nil && p.Subscription.SubscriptionPeriod > 0 {
			period = p.Subscription.SubscriptionPeriod
		}
		expires := tx.PurchaseDate.Add(period)
		tx.ExpirationDate = &expires
		tx.Renewal = transaction.StaticRenewalState(transaction.RenewalStateActive)
	}

	return tx
}
