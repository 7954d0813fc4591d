// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the coordinator
// from concrete persistence and collaborator implementations.
package port

import (
	"context"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// AccountRepository is the durable side of the account collection.
type AccountRepository interface {
	LoadAccounts(ctx context.Context) ([]domain.Account, error)
	CreateAccount(ctx context.Context, draft domain.AccountDraft) (*domain.Account, error)
	UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error)
	// DeleteAccount removes the account and every transaction that
	// references it as a single operation.
	DeleteAccount(ctx context.Context, id string) error
}

// TransactionRepository is the durable side of the transaction collection.
type TransactionRepository interface {
	LoadTransactions(ctx context.Context) ([]domain.Transaction, error)
	CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// Persistence is implemented by every storage strategy (local, supabase).
type Persistence interface {
	AccountRepository
	TransactionRepository
}

// CategorySuggester maps free text to one configured category, or to
// domain.FallbackCategory when it cannot answer.
type CategorySuggester interface {
	Suggest(ctx context.Context, description string) string
}

// EventPublisher announces applied ledger mutations.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
