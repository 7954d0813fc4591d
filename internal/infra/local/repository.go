// Package local is the durable single-device persistence strategy. The
// whole ledger is one JSON snapshot stored under a well-known key in a
// sqlite key/value table; every mutation is a read-modify-write inside one
// SQL transaction.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

const serviceName = "local"

type snapshot struct {
	Accounts     []domain.Account     `json:"accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Repository implements port.Persistence on a sqlite file.
type Repository struct {
	db     *sql.DB
	key    string
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

// Open creates the database directory, applies migrations and returns a
// ready repository.
func Open(dbPath, key string, logger *zap.Logger) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single connection serialises read-modify-write transactions
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:     db,
		key:    key,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}, nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ============================================================
// Accounts
// ============================================================

func (r *Repository) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	var out []domain.Account
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		out = slices.Clone(s.Accounts)
		return false, nil
	})
	return out, err
}

func (r *Repository) CreateAccount(ctx context.Context, draft domain.AccountDraft) (*domain.Account, error) {
	acc := draft.WithID(r.newID())
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		s.Accounts = append(s.Accounts, acc)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	var updated domain.Account
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		i := slices.IndexFunc(s.Accounts, func(a domain.Account) bool { return a.ID == id })
		if i < 0 {
			return false, &domain.ErrNotFound{Resource: "account", ID: id}
		}
		updated = patch.Apply(s.Accounts[i])
		s.Accounts[i] = updated
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAccount removes the account and its transactions in one SQL
// transaction.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	return r.update(ctx, func(s *snapshot) (bool, error) {
		i := slices.IndexFunc(s.Accounts, func(a domain.Account) bool { return a.ID == id })
		if i < 0 {
			return false, &domain.ErrNotFound{Resource: "account", ID: id}
		}
		s.Accounts = slices.Delete(s.Accounts, i, i+1)
		s.Transactions = slices.DeleteFunc(s.Transactions, func(t domain.Transaction) bool {
			return t.AccountID == id
		})
		return true, nil
	})
}

// ============================================================
// Transactions
// ============================================================

func (r *Repository) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		out = slices.Clone(s.Transactions)
		return false, nil
	})
	return out, err
}

func (r *Repository) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	tx := draft.WithID(r.newID())
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		if !s.hasAccount(tx.AccountID) {
			return false, &domain.ErrNotFound{Resource: "account", ID: tx.AccountID}
		}
		s.Transactions = slices.Insert(s.Transactions, 0, tx)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	var updated domain.Transaction
	err := r.update(ctx, func(s *snapshot) (bool, error) {
		i := slices.IndexFunc(s.Transactions, func(t domain.Transaction) bool { return t.ID == id })
		if i < 0 {
			return false, &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		updated = patch.Apply(s.Transactions[i])
		if !s.hasAccount(updated.AccountID) {
			return false, &domain.ErrNotFound{Resource: "account", ID: updated.AccountID}
		}
		s.Transactions[i] = updated
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	return r.update(ctx, func(s *snapshot) (bool, error) {
		i := slices.IndexFunc(s.Transactions, func(t domain.Transaction) bool { return t.ID == id })
		if i < 0 {
			return false, &domain.ErrNotFound{Resource: "transaction", ID: id}
		}
		s.Transactions = slices.Delete(s.Transactions, i, i+1)
		return true, nil
	})
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ============================================================
// Snapshot I/O
// ============================================================

// update reads the snapshot, runs fn, and writes the snapshot back when fn
// reports a change or the snapshot had to be seeded. All of it happens in
// one SQL transaction.
func (r *Repository) update(ctx context.Context, fn func(*snapshot) (bool, error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	s, seeded, err := r.read(ctx, tx)
	if err != nil {
		return err
	}

	changed, err := fn(s)
	if err != nil {
		return err
	}

	if changed || seeded {
		if err := r.write(ctx, tx, s); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// read returns the stored snapshot. A missing or undecodable snapshot is
// replaced by the default accounts and no transactions; seeded reports
// that case so the defaults get persisted with stable ids.
func (r *Repository) read(ctx context.Context, tx *sql.Tx) (s *snapshot, seeded bool, err error) {
	var payload string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, r.key).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		r.logger.Info("no local snapshot, seeding default accounts", zap.String("key", r.key))
		return r.defaults(), true, nil
	case err != nil:
		return nil, false, storageErr(fmt.Errorf("read snapshot: %w", err))
	}

	s = &snapshot{}
	if err := json.Unmarshal([]byte(payload), s); err != nil || len(s.Accounts) == 0 {
		r.logger.Warn("local snapshot unusable, falling back to defaults",
			zap.String("key", r.key),
			zap.Error(err),
		)
		if err := r.backup(ctx, tx, payload); err != nil {
			return nil, false, err
		}
		return r.defaults(), true, nil
	}
	return s, false, nil
}

func (r *Repository) write(ctx context.Context, tx *sql.Tx, s *snapshot) error {
	if s.Transactions == nil {
		s.Transactions = []domain.Transaction{}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return storageErr(fmt.Errorf("encode snapshot: %w", err))
	}
	return r.put(ctx, tx, r.key, string(payload))
}

// backup keeps an unreadable payload next to the live key for inspection.
func (r *Repository) backup(ctx context.Context, tx *sql.Tx, payload string) error {
	return r.put(ctx, tx, r.key+".corrupt", payload)
}

func (r *Repository) put(ctx context.Context, tx *sql.Tx, key, payload string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		key, payload, r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr(fmt.Errorf("write snapshot: %w", err))
	}
	return nil
}

func (r *Repository) defaults() *snapshot {
	drafts := domain.DefaultAccounts()
	s := &snapshot{
		Accounts:     make([]domain.Account, 0, len(drafts)),
		Transactions: []domain.Transaction{},
	}
	for _, d := range drafts {
		s.Accounts = append(s.Accounts, d.WithID(r.newID()))
	}
	return s
}

func (s *snapshot) hasAccount(id string) bool {
	return slices.ContainsFunc(s.Accounts, func(a domain.Account) bool { return a.ID == id })
}

func storageErr(err error) error {
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}
