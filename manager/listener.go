package manager

import (
	"context"

	"go.uber.org/zap"

	"github.com/clover-apps/storefront/transaction"
)

// listen drains the live transaction update feed until ctx is cancelled.
// It runs for the lifetime of the manager, parallel to user-initiated
// operations.
func (m *Manager) listen(ctx context.Context) {
	defer close(m.listenerDone)

	updates := m.exec.Updates(ctx)
	m.log.Debug("Listening for transaction updates")

	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-updates:
			if !ok {
				return
			}
			m.handleUpdate(ctx, result)
		}
	}
}

func (m *Manager) handleUpdate(ctx context.Context, result transaction.Result) {
	if result.VerificationErr != nil {
		m.log.Warn("Dropping unverified transaction from update feed",
			zap.Error(result.VerificationErr))

		classified := &Error{
			Kind:   ErrorKindVerificationFailed,
			Reason: result.VerificationErr.Error(),
			cause:  result.VerificationErr,
		}
		m.mu.Lock()
		changes := m.setFailureLocked(newFailure(classified, "transaction_update", ""))
		m.mu.Unlock()
		m.emit(changes)
		return
	}

	tx := result.Transaction
	log := m.log.With(
		zap.String("transaction_id", tx.ID),
		zap.String("product_id", tx.ProductID),
	)
	log.Debug("Got a transaction update")

	status, err := m.oracle.Validate(ctx, tx)
	if err != nil {
		// Left unfinished so the feed redelivers it once validation can
		// succeed.
		log.Warn("Failed to validate transaction update", zap.Error(err))

		m.mu.Lock()
		changes := m.setFailureLocked(newFailure(wrapError(err), "transaction_update", tx.ProductID))
		m.mu.Unlock()
		m.emit(changes)
		return
	}

	// Upgrade-only-if-beneficial: a background result may activate or
	// refresh an entitlement, but an inactive one never silently downgrades
	// an already-active status.
	m.mu.Lock()
	var changes []Change
	if !m.status.IsActive() || status.IsActive() {
		changes = m.setStatusLocked(status)
	}
	m.mu.Unlock()
	m.emit(changes)

	if err := m.exec.Finish(ctx, tx); err != nil {
		log.Warn("Failed to finish transaction", zap.Error(err))
	}
}
