package service

import (
	"maps"
	"slices"
	"sync"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/ledger"
)

// Session holds the per-user view state: the active account and the
// current page. The active account is reconciled against the store on
// every read, so it never points at a deleted account.
type Session struct {
	store *ledger.Store

	mu        sync.Mutex
	activeID  string
	page      domain.Page
	listeners map[int]func(accountID string)
	nextSub   int
}

// NewSession creates a session on the dashboard page with no active account.
func NewSession(store *ledger.Store) *Session {
	return &Session{
		store:     store,
		page:      domain.PageDashboard,
		listeners: make(map[int]func(string)),
	}
}

// ActiveAccount returns the reconciled active account. ok is false only
// when the store holds no accounts.
func (s *Session) ActiveAccount() (domain.Account, bool) {
	id := s.Reconcile()
	if id == "" {
		return domain.Account{}, false
	}
	return s.store.Account(id)
}

// ActiveAccountID returns the reconciled active account id, or "".
func (s *Session) ActiveAccountID() string {
	return s.Reconcile()
}

// SetActiveAccount selects an existing account.
func (s *Session) SetActiveAccount(id string) error {
	if _, ok := s.store.Account(id); !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	s.set(id)
	return nil
}

// Reconcile falls back to the first account when the active id is unset
// or stale and returns the resulting id. The fallback only replaces the id
// it inspected, so a concurrent SetActiveAccount is never overwritten.
func (s *Session) Reconcile() string {
	for {
		s.mu.Lock()
		current := s.activeID
		s.mu.Unlock()

		if current != "" {
			if _, ok := s.store.Account(current); ok {
				return current
			}
		}

		next := ""
		if first, ok := s.store.FirstAccount(); ok {
			next = first.ID
		}
		if s.swap(next, func(active string) bool { return active == current }) {
			return next
		}
	}
}

func (s *Session) set(id string) {
	s.swap(id, func(string) bool { return true })
}

// swap stores id when cond accepts the current value and notifies the
// listeners if the id changed. It reports whether cond accepted.
func (s *Session) swap(id string, cond func(active string) bool) bool {
	s.mu.Lock()
	if !cond(s.activeID) {
		s.mu.Unlock()
		return false
	}
	if s.activeID == id {
		s.mu.Unlock()
		return true
	}
	s.activeID = id
	listeners := make([]func(string), 0, len(s.listeners))
	for _, k := range slices.Sorted(maps.Keys(s.listeners)) {
		listeners = append(listeners, s.listeners[k])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return true
}

// OnActiveAccountChanged registers fn for active account changes.
func (s *Session) OnActiveAccountChanged(fn func(accountID string)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Page returns the current page.
func (s *Session) Page() domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// SetPage stores the current page. Unknown pages are rejected.
func (s *Session) SetPage(p domain.Page) error {
	if !slices.Contains(domain.Pages, p) {
		return &domain.ErrValidation{Field: "page", Message: "unknown page " + string(p)}
	}
	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
	return nil
}
