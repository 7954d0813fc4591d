// Package service provides the business logic layer (use cases).
// Coordinator sequences every ledger mutation: it validates, talks to the
// persistence strategy, keeps the in-memory store in step and tells the
// user what happened.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/observability"
	"github.com/boddenberg/zenith-finance-go/internal/infra/resilience"
	"github.com/boddenberg/zenith-finance-go/internal/ledger"
	"github.com/boddenberg/zenith-finance-go/internal/port"
)

var tracer = otel.Tracer("service/ledger")

const (
	entityAccount     = "account"
	entityTransaction = "transaction"

	opLoad     = "load"
	opCreate   = "create"
	opUpdate   = "update"
	opDelete   = "delete"
	opQuickLog = "quicklog"
	opSeed     = "seed"
)

// User-facing messages.
const (
	MsgLoadFailed = "Failed to load data"

	MsgAccountCreated      = "Account created successfully!"
	MsgAccountCreateFailed = "Failed to create account"
	MsgAccountUpdated      = "Account updated."
	MsgAccountUpdateFailed = "Failed to update account"
	MsgAccountDeleted      = "Account deleted."
	MsgAccountDeleteFailed = "Failed to delete account"
	MsgAccountNotFound     = "Account not found."
	MsgLastAccount         = "Cannot delete the last account."
	MsgCascadeIncomplete   = "Account deletion did not complete. Transactions were reloaded."

	MsgTransactionAdded        = "Transaction added successfully!"
	MsgTransactionAddFailed    = "Failed to add transaction"
	MsgTransactionUpdated      = "Transaction updated."
	MsgTransactionUpdateFailed = "Failed to update transaction"
	MsgTransactionDeleted      = "Transaction deleted."
	MsgTransactionDeleteFailed = "Failed to delete transaction"
	MsgTransactionNotFound     = "Transaction not found."

	MsgInvalidAmount  = "Invalid amount."
	MsgSelectAccount  = "Please select an account first."
	MsgSeedFailed     = "Failed to add test data"
	msgSeededTemplate = "%d test transactions added!"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Push(message string, severity domain.Severity) domain.Notification
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSuggester sets the category suggestion collaborator.
func WithSuggester(s port.CategorySuggester) Option {
	return func(c *Coordinator) { c.suggester = s }
}

// WithEvents sets where applied mutations are announced.
func WithEvents(p port.EventPublisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// WithCategories overrides domain.DefaultCategories.
func WithCategories(cats domain.Categories) Option {
	return func(c *Coordinator) { c.categories = cats }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns the mutation and confirmation workflow.
type Coordinator struct {
	repo      port.Persistence
	store     *ledger.Store
	session   *Session
	notes     Notifier
	suggester port.CategorySuggester
	events    port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger

	categories domain.Categories
	now        func() time.Time

	// one in-flight mutation per collection
	accountsGate     *resilience.Bulkhead
	transactionsGate *resilience.Bulkhead

	pending pendingSlot
}

// NewCoordinator creates a coordinator over an already constructed store
// and session.
func NewCoordinator(repo port.Persistence, store *ledger.Store, session *Session, notes Notifier, metrics *observability.Metrics, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:             repo,
		store:            store,
		session:          session,
		notes:            notes,
		metrics:          metrics,
		logger:           logger,
		categories:       domain.DefaultCategories(),
		now:              time.Now,
		accountsGate:     resilience.NewBulkhead(1),
		transactionsGate: resilience.NewBulkhead(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the in-memory collections for read-only views.
func (c *Coordinator) Store() *ledger.Store { return c.store }

// Session returns the session the coordinator reconciles.
func (c *Coordinator) Session() *Session { return c.session }

// Categories returns the configured category lists.
func (c *Coordinator) Categories() domain.Categories { return c.categories }

// Now returns the coordinator's current time.
func (c *Coordinator) Now() time.Time { return c.now() }

// ============================================================
// Loading
// ============================================================

// Load fetches both collections concurrently and installs them.
func (c *Coordinator) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Coordinator.Load")
	defer span.End()

	if err := c.lockAll(ctx); err != nil {
		return c.reject(span, entityAccount, opLoad, MsgLoadFailed, err)
	}
	defer c.unlockAll()

	var (
		accounts     []domain.Account
		transactions []domain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = c.repo.LoadAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		transactions, err = c.repo.LoadTransactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.reject(span, entityAccount, opLoad, MsgLoadFailed, err)
	}

	if dropped := c.store.Replace(accounts, transactions); dropped > 0 {
		c.logger.Warn("dropped transactions referencing unknown accounts", zap.Int("count", dropped))
	}
	active := c.session.Reconcile()

	span.SetAttributes(
		attribute.Int("accounts", len(accounts)),
		attribute.Int("transactions", len(transactions)),
	)
	c.logger.Info("ledger loaded",
		zap.Int("accounts", len(accounts)),
		zap.Int("transactions", len(transactions)),
		zap.String("active_account", active),
	)
	return nil
}

// ============================================================
// Accounts
// ============================================================

// CreateAccount persists a new account and shows it first.
func (c *Coordinator) CreateAccount(ctx context.Context, draft domain.AccountDraft) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.CreateAccount")
	defer span.End()

	if err := draft.Validate(); err != nil {
		return nil, c.reject(span, entityAccount, opCreate, MsgAccountCreateFailed, err)
	}
	if err := c.accountsGate.Acquire(ctx); err != nil {
		return nil, c.reject(span, entityAccount, opCreate, MsgAccountCreateFailed, err)
	}
	defer c.accountsGate.Release()

	acc, err := c.repo.CreateAccount(ctx, draft)
	if err != nil {
		return nil, c.reject(span, entityAccount, opCreate, MsgAccountCreateFailed, err)
	}

	c.store.PrependAccount(*acc)
	c.session.Reconcile()
	span.SetAttributes(attribute.String("account.id", acc.ID))
	c.applied(ctx, entityAccount, opCreate, domain.EventAccountCreated, acc.ID, MsgAccountCreated)
	return acc, nil
}

// UpdateAccount applies patch optimistically and rolls back if the
// backend refuses it.
func (c *Coordinator) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", id))

	if patch.IsEmpty() {
		return nil, c.reject(span, entityAccount, opUpdate, MsgAccountUpdateFailed,
			&domain.ErrValidation{Field: "patch", Message: "no fields to update"})
	}
	if err := patch.Validate(); err != nil {
		return nil, c.reject(span, entityAccount, opUpdate, MsgAccountUpdateFailed, err)
	}
	if err := c.accountsGate.Acquire(ctx); err != nil {
		return nil, c.reject(span, entityAccount, opUpdate, MsgAccountUpdateFailed, err)
	}
	defer c.accountsGate.Release()

	before, ok := c.store.Account(id)
	if !ok {
		return nil, c.reject(span, entityAccount, opUpdate, MsgAccountNotFound,
			&domain.ErrNotFound{Resource: "account", ID: id})
	}
	c.store.UpsertAccount(patch.Apply(before))

	updated, err := c.repo.UpdateAccount(ctx, id, patch)
	if err != nil {
		c.store.UpsertAccount(before)
		return nil, c.reject(span, entityAccount, opUpdate, MsgAccountUpdateFailed, err)
	}

	c.store.UpsertAccount(*updated)
	c.applied(ctx, entityAccount, opUpdate, domain.EventAccountUpdated, id, MsgAccountUpdated)
	return updated, nil
}

// ============================================================
// Transactions
// ============================================================

// CreateTransaction persists a new transaction and shows it first. An
// empty AccountID means the active account.
func (c *Coordinator) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.CreateTransaction")
	defer span.End()

	if draft.AccountID == "" {
		draft.AccountID = c.session.ActiveAccountID()
	}
	if err := draft.Validate(); err != nil {
		return nil, c.reject(span, entityTransaction, opCreate, MsgTransactionAddFailed, err)
	}
	if err := c.transactionsGate.Acquire(ctx); err != nil {
		return nil, c.reject(span, entityTransaction, opCreate, MsgTransactionAddFailed, err)
	}
	defer c.transactionsGate.Release()

	tx, err := c.insertTransaction(ctx, draft)
	if err != nil {
		return nil, c.reject(span, entityTransaction, opCreate, MsgTransactionAddFailed, err)
	}

	span.SetAttributes(attribute.String("transaction.id", tx.ID))
	c.notify(domain.SeveritySuccess, MsgTransactionAdded)
	return tx, nil
}

// insertTransaction expects the transactions gate to be held and the
// draft to be valid. It does not notify.
func (c *Coordinator) insertTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	if _, ok := c.store.Account(draft.AccountID); !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: draft.AccountID}
	}
	tx, err := c.repo.CreateTransaction(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.store.PrependTransaction(*tx)
	c.metrics.RecordMutation(entityTransaction, opCreate, "applied")
	c.publish(ctx, domain.EventTransactionCreated, tx.ID)
	return tx, nil
}

// UpdateTransaction applies patch optimistically and rolls back if the
// backend refuses it.
func (c *Coordinator) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if patch.IsEmpty() {
		return nil, c.reject(span, entityTransaction, opUpdate, MsgTransactionUpdateFailed,
			&domain.ErrValidation{Field: "patch", Message: "no fields to update"})
	}
	if err := patch.Validate(); err != nil {
		return nil, c.reject(span, entityTransaction, opUpdate, MsgTransactionUpdateFailed, err)
	}
	if err := c.transactionsGate.Acquire(ctx); err != nil {
		return nil, c.reject(span, entityTransaction, opUpdate, MsgTransactionUpdateFailed, err)
	}
	defer c.transactionsGate.Release()

	before, ok := c.store.Transaction(id)
	if !ok {
		return nil, c.reject(span, entityTransaction, opUpdate, MsgTransactionNotFound,
			&domain.ErrNotFound{Resource: "transaction", ID: id})
	}
	if patch.AccountID != nil {
		if _, ok := c.store.Account(*patch.AccountID); !ok {
			return nil, c.reject(span, entityTransaction, opUpdate, MsgAccountNotFound,
				&domain.ErrNotFound{Resource: "account", ID: *patch.AccountID})
		}
	}
	c.store.UpsertTransaction(patch.Apply(before))

	updated, err := c.repo.UpdateTransaction(ctx, id, patch)
	if err != nil {
		c.store.UpsertTransaction(before)
		return nil, c.reject(span, entityTransaction, opUpdate, MsgTransactionUpdateFailed, err)
	}

	c.store.UpsertTransaction(*updated)
	c.applied(ctx, entityTransaction, opUpdate, domain.EventTransactionUpdated, id, MsgTransactionUpdated)
	return updated, nil
}

// ============================================================
// Suggestions
// ============================================================

// SuggestCategory asks the suggestion collaborator for a category. An
// empty description yields "".
func (c *Coordinator) SuggestCategory(ctx context.Context, description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}
	if c.suggester == nil {
		return domain.FallbackCategory
	}
	ctx, span := tracer.Start(ctx, "Coordinator.SuggestCategory")
	defer span.End()
	return c.suggester.Suggest(ctx, description)
}

// ============================================================
// Helpers
// ============================================================

// lockAll takes the accounts gate then the transactions gate.
func (c *Coordinator) lockAll(ctx context.Context) error {
	if err := c.accountsGate.Acquire(ctx); err != nil {
		return err
	}
	if err := c.transactionsGate.Acquire(ctx); err != nil {
		c.accountsGate.Release()
		return err
	}
	return nil
}

func (c *Coordinator) unlockAll() {
	c.transactionsGate.Release()
	c.accountsGate.Release()
}

func (c *Coordinator) notify(severity domain.Severity, message string) {
	c.notes.Push(message, severity)
	c.metrics.IncrNotification(string(severity))
}

func (c *Coordinator) applied(ctx context.Context, entity, op string, kind domain.EventKind, id, message string) {
	c.metrics.RecordMutation(entity, op, "applied")
	c.notify(domain.SeveritySuccess, message)
	c.publish(ctx, kind, id)
}

// reject records a refused operation, tells the user and returns err
// unchanged. Amount validation failures always read "Invalid amount.".
func (c *Coordinator) reject(span trace.Span, entity, op, message string, err error) error {
	c.metrics.RecordMutation(entity, op, "rejected")
	span.RecordError(err)

	var ve *domain.ErrValidation
	if errors.As(err, &ve) {
		if ve.Field == "amount" {
			message = MsgInvalidAmount
		}
		c.logger.Info("mutation rejected",
			zap.String("entity", entity), zap.String("op", op), zap.Error(err))
	} else {
		c.logger.Warn("mutation failed",
			zap.String("entity", entity), zap.String("op", op), zap.Error(err))
	}

	c.notify(domain.SeverityError, message)
	return err
}

func (c *Coordinator) publish(ctx context.Context, kind domain.EventKind, id string) {
	if c.events == nil {
		return
	}
	err := c.events.Publish(ctx, domain.LedgerEvent{Kind: kind, EntityID: id, At: c.now().UTC()})
	if err != nil {
		c.metrics.IncrEvent("error")
		c.logger.Warn("ledger event not published",
			zap.String("kind", string(kind)), zap.String("entity_id", id), zap.Error(err))
		return
	}
	c.metrics.IncrEvent("ok")
}
