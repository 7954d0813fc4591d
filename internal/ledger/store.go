// Package ledger holds the in-memory authoritative collections of accounts
// and transactions. The store does no I/O; persistence ordering is the
// coordinator's job.
package ledger

import (
	"slices"
	"sync"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// Store is a thread-safe ordered collection of accounts and transactions.
type Store struct {
	mu           sync.RWMutex
	accounts     []domain.Account
	transactions []domain.Transaction
}

// Snapshot is a point-in-time copy of the store contents.
type Snapshot struct {
	Accounts     []domain.Account     `json:"accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Removal records what a remove call took out of the store and where, so
// the exact prior state can be restored.
type Removal struct {
	Account      *domain.Account
	accountIndex int
	transactions []removedTransaction
}

type removedTransaction struct {
	tx    domain.Transaction
	index int
}

// Transactions returns the removed transactions in their original order.
func (r *Removal) Transactions() []domain.Transaction {
	out := make([]domain.Transaction, len(r.transactions))
	for i, rt := range r.transactions {
		out[i] = rt.tx
	}
	return out
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Replace installs a freshly loaded snapshot. Transactions whose account is
// not present are dropped to keep the referential invariant.
func (s *Store) Replace(accounts []domain.Account, transactions []domain.Transaction) (dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = slices.Clone(accounts)
	return s.setTransactionsLocked(transactions)
}

// ReplaceTransactions swaps the transaction collection only, with the same
// orphan filtering as Replace.
func (s *Store) ReplaceTransactions(transactions []domain.Transaction) (dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setTransactionsLocked(transactions)
}

func (s *Store) setTransactionsLocked(transactions []domain.Transaction) (dropped int) {
	known := make(map[string]struct{}, len(s.accounts))
	for _, a := range s.accounts {
		known[a.ID] = struct{}{}
	}
	s.transactions = make([]domain.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if _, ok := known[t.AccountID]; !ok {
			dropped++
			continue
		}
		s.transactions = append(s.transactions, t)
	}
	return dropped
}

// ListAccounts returns all accounts in store order.
func (s *Store) ListAccounts() []domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.accounts)
}

// ListTransactions returns all transactions in store order.
func (s *Store) ListTransactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

// Snapshot copies both collections under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Accounts:     slices.Clone(s.accounts),
		Transactions: slices.Clone(s.transactions),
	}
}

// AccountCount returns the number of accounts.
func (s *Store) AccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// FirstAccount returns the first account in store order.
func (s *Store) FirstAccount() (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.accounts) == 0 {
		return domain.Account{}, false
	}
	return s.accounts[0], true
}

// Account looks up an account by ID.
func (s *Store) Account(id string) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.accountIndex(id); i >= 0 {
		return s.accounts[i], true
	}
	return domain.Account{}, false
}

// Transaction looks up a transaction by ID.
func (s *Store) Transaction(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.transactionIndex(id); i >= 0 {
		return s.transactions[i], true
	}
	return domain.Transaction{}, false
}

// UpsertAccount replaces the account in place, or appends it.
func (s *Store) UpsertAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.accountIndex(a.ID); i >= 0 {
		s.accounts[i] = a
		return
	}
	s.accounts = append(s.accounts, a)
}

// PrependAccount inserts a new account at the front, newest first.
func (s *Store) PrependAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.accountIndex(a.ID); i >= 0 {
		s.accounts[i] = a
		return
	}
	s.accounts = slices.Insert(s.accounts, 0, a)
}

// UpsertTransaction replaces the transaction in place, or appends it.
func (s *Store) UpsertTransaction(t domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.transactionIndex(t.ID); i >= 0 {
		s.transactions[i] = t
		return
	}
	s.transactions = append(s.transactions, t)
}

// PrependTransaction inserts a new transaction at the front, newest first.
func (s *Store) PrependTransaction(t domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.transactionIndex(t.ID); i >= 0 {
		s.transactions[i] = t
		return
	}
	s.transactions = slices.Insert(s.transactions, 0, t)
}

// RemoveAccount removes the account and every transaction referencing it
// in one critical section.
func (s *Store) RemoveAccount(id string) (*Removal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ai := s.accountIndex(id)
	if ai < 0 {
		return nil, false
	}
	acc := s.accounts[ai]
	r := &Removal{Account: &acc, accountIndex: ai}

	kept := s.transactions[:0:0]
	for i, t := range s.transactions {
		if t.AccountID == id {
			r.transactions = append(r.transactions, removedTransaction{tx: t, index: i})
			continue
		}
		kept = append(kept, t)
	}
	s.transactions = kept
	s.accounts = slices.Delete(s.accounts, ai, ai+1)
	return r, true
}

// RemoveTransaction removes a single transaction.
func (s *Store) RemoveTransaction(id string) (*Removal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.transactionIndex(id)
	if i < 0 {
		return nil, false
	}
	r := &Removal{accountIndex: -1, transactions: []removedTransaction{{tx: s.transactions[i], index: i}}}
	s.transactions = slices.Delete(s.transactions, i, i+1)
	return r, true
}

// Restore puts back what a remove call took out, at the original positions.
func (s *Store) Restore(r *Removal) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Account != nil && s.accountIndex(r.Account.ID) < 0 {
		at := min(max(r.accountIndex, 0), len(s.accounts))
		s.accounts = slices.Insert(s.accounts, at, *r.Account)
	}
	for _, rt := range r.transactions {
		if s.transactionIndex(rt.tx.ID) >= 0 {
			continue
		}
		at := min(max(rt.index, 0), len(s.transactions))
		s.transactions = slices.Insert(s.transactions, at, rt.tx)
	}
}

func (s *Store) accountIndex(id string) int {
	return slices.IndexFunc(s.accounts, func(a domain.Account) bool { return a.ID == id })
}

func (s *Store) transactionIndex(id string) int {
	return slices.IndexFunc(s.transactions, func(t domain.Transaction) bool { return t.ID == id })
}
