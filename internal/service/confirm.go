package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// pendingSlot holds at most one open confirmation. A new request
// replaces the previous one.
type pendingSlot struct {
	mu sync.Mutex
	pc *domain.PendingConfirmation
}

func (s *pendingSlot) put(pc domain.PendingConfirmation) (replaced *domain.PendingConfirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced = s.pc
	s.pc = &pc
	return replaced
}

func (s *pendingSlot) peek() (domain.PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return domain.PendingConfirmation{}, false
	}
	return *s.pc, true
}

func (s *pendingSlot) take() (domain.PendingConfirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return domain.PendingConfirmation{}, false
	}
	pc := *s.pc
	s.pc = nil
	return pc, true
}

// ============================================================
// Requests
// ============================================================

// RequestDeleteAccount opens a confirmation for deleting an account and
// its transactions. The last remaining account is never gated.
func (c *Coordinator) RequestDeleteAccount(id string) (*domain.PendingConfirmation, error) {
	acc, ok := c.store.Account(id)
	if !ok {
		c.notify(domain.SeverityError, MsgAccountNotFound)
		c.metrics.RecordMutation(entityAccount, opDelete, "rejected")
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if c.store.AccountCount() <= 1 {
		c.notify(domain.SeverityError, MsgLastAccount)
		c.metrics.RecordMutation(entityAccount, opDelete, "rejected")
		return nil, &domain.ErrIntegrity{Rule: "cannot delete the last account"}
	}

	return c.open(domain.PendingConfirmation{
		Title: "Delete Account",
		Message: fmt.Sprintf("Are you sure you want to delete the account %q? "+
			"All associated transactions will also be deleted. This action cannot be undone.", acc.Name),
		Action: domain.PendingAction{Kind: domain.ActionDeleteAccount, ID: id},
	}), nil
}

// RequestDeleteTransaction opens a confirmation for deleting a transaction.
func (c *Coordinator) RequestDeleteTransaction(id string) (*domain.PendingConfirmation, error) {
	tx, ok := c.store.Transaction(id)
	if !ok {
		c.notify(domain.SeverityError, MsgTransactionNotFound)
		c.metrics.RecordMutation(entityTransaction, opDelete, "rejected")
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	return c.open(domain.PendingConfirmation{
		Title: "Delete Transaction",
		Message: fmt.Sprintf("Are you sure you want to delete this transaction: %q? "+
			"This action cannot be undone.", tx.Description),
		Action: domain.PendingAction{Kind: domain.ActionDeleteTransaction, ID: id},
	}), nil
}

func (c *Coordinator) open(pc domain.PendingConfirmation) *domain.PendingConfirmation {
	pc.CreatedAt = c.now()
	if old := c.pending.put(pc); old != nil {
		c.logger.Info("pending confirmation replaced",
			zap.String("discarded_kind", string(old.Action.Kind)),
			zap.String("discarded_id", old.Action.ID),
			zap.String("kind", string(pc.Action.Kind)),
			zap.String("id", pc.Action.ID),
		)
	}
	return &pc
}

// PendingConfirmation returns the open confirmation, if any.
func (c *Coordinator) PendingConfirmation() (*domain.PendingConfirmation, bool) {
	pc, ok := c.pending.peek()
	if !ok {
		return nil, false
	}
	return &pc, true
}

// Cancel discards the open confirmation. It reports whether one was open.
func (c *Coordinator) Cancel() bool {
	_, ok := c.pending.take()
	return ok
}

// Confirm runs the open confirmation's action. The action is re-checked
// against the current store first since the ledger may have changed
// while the prompt was open.
func (c *Coordinator) Confirm(ctx context.Context) error {
	pc, ok := c.pending.take()
	if !ok {
		return &domain.ErrIntegrity{Rule: "no pending confirmation"}
	}

	switch pc.Action.Kind {
	case domain.ActionDeleteAccount:
		return c.deleteAccount(ctx, pc.Action.ID)
	case domain.ActionDeleteTransaction:
		return c.deleteTransaction(ctx, pc.Action.ID)
	default:
		return &domain.ErrValidation{Field: "action", Message: "unknown action " + string(pc.Action.Kind)}
	}
}

// ============================================================
// Deletes
// ============================================================

func (c *Coordinator) deleteAccount(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Coordinator.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	if err := c.lockAll(ctx); err != nil {
		return c.reject(span, entityAccount, opDelete, MsgAccountDeleteFailed, err)
	}
	defer c.unlockAll()

	if c.store.AccountCount() <= 1 {
		return c.reject(span, entityAccount, opDelete, MsgLastAccount,
			&domain.ErrIntegrity{Rule: "cannot delete the last account"})
	}
	removal, ok := c.store.RemoveAccount(id)
	if !ok {
		return c.reject(span, entityAccount, opDelete, MsgAccountNotFound,
			&domain.ErrNotFound{Resource: "account", ID: id})
	}
	span.SetAttributes(attribute.Int("transactions.cascaded", len(removal.Transactions())))

	err := c.repo.DeleteAccount(ctx, id)
	if err != nil {
		var inconsistent *domain.ErrCascadeInconsistency
		if errors.As(err, &inconsistent) {
			c.logger.Error("account cascade left the backend inconsistent",
				zap.String("account_id", id),
				zap.Bool("account_deleted", inconsistent.AccountDeleted),
				zap.Error(err),
			)
			if !inconsistent.AccountDeleted {
				c.store.Restore(removal)
			}
			c.resyncTransactions(ctx)
			c.session.Reconcile()
			return c.reject(span, entityAccount, opDelete, MsgCascadeIncomplete, err)
		}

		c.store.Restore(removal)
		return c.reject(span, entityAccount, opDelete, MsgAccountDeleteFailed, err)
	}

	c.session.Reconcile()
	c.applied(ctx, entityAccount, opDelete, domain.EventAccountDeleted, id, MsgAccountDeleted)
	return nil
}

// resyncTransactions replaces the in-memory transactions with what the
// backend holds. Failures leave the store as it is.
func (c *Coordinator) resyncTransactions(ctx context.Context) {
	txs, err := c.repo.LoadTransactions(ctx)
	if err != nil {
		c.logger.Error("transaction resync failed", zap.Error(err))
		return
	}
	c.store.ReplaceTransactions(txs)
}

func (c *Coordinator) deleteTransaction(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Coordinator.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := c.transactionsGate.Acquire(ctx); err != nil {
		return c.reject(span, entityTransaction, opDelete, MsgTransactionDeleteFailed, err)
	}
	defer c.transactionsGate.Release()

	removal, ok := c.store.RemoveTransaction(id)
	if !ok {
		return c.reject(span, entityTransaction, opDelete, MsgTransactionNotFound,
			&domain.ErrNotFound{Resource: "transaction", ID: id})
	}

	if err := c.repo.DeleteTransaction(ctx, id); err != nil {
		c.store.Restore(removal)
		return c.reject(span, entityTransaction, opDelete, MsgTransactionDeleteFailed, err)
	}

	c.applied(ctx, entityTransaction, opDelete, domain.EventTransactionDeleted, id, MsgTransactionDeleted)
	return nil
}
