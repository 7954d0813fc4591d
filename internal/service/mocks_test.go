package service_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/observability"
	"github.com/boddenberg/zenith-finance-go/internal/ledger"
	"github.com/boddenberg/zenith-finance-go/internal/notify"
	"github.com/boddenberg/zenith-finance-go/internal/port"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

// ============================================================
// Mock persistence
// ============================================================

type mockRepo struct {
	mu           sync.Mutex
	accounts     []domain.Account
	transactions []domain.Transaction
	seq          int

	loadErr          error
	createAccountErr error
	updateAccountErr error
	deleteAccountErr error
	createTxErr      error
	createTxFailAt   int // 1-based call number; 0 means every call uses createTxErr
	updateTxErr      error
	deleteTxErr      error

	// onDeleteAccount runs instead of the normal cascade when set.
	onDeleteAccount func(m *mockRepo, id string) error

	// beforeCreateAccount and beforeCreateTx run outside the mock's lock.
	beforeCreateAccount func()
	beforeCreateTx      func()

	createTxCalls int
	deleteCalls   int
}

var _ port.Persistence = (*mockRepo)(nil)

func (m *mockRepo) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockRepo) LoadAccounts(context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return slices.Clone(m.accounts), nil
}

func (m *mockRepo) LoadTransactions(context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return slices.Clone(m.transactions), nil
}

func (m *mockRepo) CreateAccount(_ context.Context, draft domain.AccountDraft) (*domain.Account, error) {
	if m.beforeCreateAccount != nil {
		m.beforeCreateAccount()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createAccountErr != nil {
		return nil, m.createAccountErr
	}
	acc := draft.WithID(m.id("acc"))
	m.accounts = append(m.accounts, acc)
	return &acc, nil
}

func (m *mockRepo) UpdateAccount(_ context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateAccountErr != nil {
		return nil, m.updateAccountErr
	}
	i := slices.IndexFunc(m.accounts, func(a domain.Account) bool { return a.ID == id })
	if i < 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	m.accounts[i] = patch.Apply(m.accounts[i])
	acc := m.accounts[i]
	return &acc, nil
}

func (m *mockRepo) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.onDeleteAccount != nil {
		return m.onDeleteAccount(m, id)
	}
	if m.deleteAccountErr != nil {
		return m.deleteAccountErr
	}
	m.dropTransactionsOf(id)
	m.accounts = slices.DeleteFunc(m.accounts, func(a domain.Account) bool { return a.ID == id })
	return nil
}

func (m *mockRepo) deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}

func (m *mockRepo) dropTransactionsOf(accountID string) {
	m.transactions = slices.DeleteFunc(m.transactions, func(t domain.Transaction) bool { return t.AccountID == accountID })
}

func (m *mockRepo) CreateTransaction(_ context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	if m.beforeCreateTx != nil {
		m.beforeCreateTx()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createTxCalls++
	if m.createTxErr != nil && (m.createTxFailAt == 0 || m.createTxFailAt == m.createTxCalls) {
		return nil, m.createTxErr
	}
	tx := draft.WithID(m.id("tx"))
	m.transactions = append([]domain.Transaction{tx}, m.transactions...)
	return &tx, nil
}

func (m *mockRepo) UpdateTransaction(_ context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateTxErr != nil {
		return nil, m.updateTxErr
	}
	i := slices.IndexFunc(m.transactions, func(t domain.Transaction) bool { return t.ID == id })
	if i < 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	m.transactions[i] = patch.Apply(m.transactions[i])
	tx := m.transactions[i]
	return &tx, nil
}

func (m *mockRepo) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteTxErr != nil {
		return m.deleteTxErr
	}
	m.transactions = slices.DeleteFunc(m.transactions, func(t domain.Transaction) bool { return t.ID == id })
	return nil
}

// callBlocker parks adapter calls until released and records the widest
// overlap it saw.
type callBlocker struct {
	entered  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newCallBlocker() *callBlocker {
	return &callBlocker{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *callBlocker) hold() {
	b.calls.Add(1)
	n := b.inFlight.Add(1)
	for {
		seen := b.maxSeen.Load()
		if n <= seen || b.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	b.entered <- struct{}{}
	<-b.release
	b.inFlight.Add(-1)
}

func (b *callBlocker) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-b.entered:
	case <-time.After(time.Second):
		t.Fatal("adapter call never started")
	}
}

// ============================================================
// Mock collaborators
// ============================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventKind, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

type stubSuggester struct {
	answer string
	calls  int
}

func (s *stubSuggester) Suggest(context.Context, string) string {
	s.calls++
	return s.answer
}

// ============================================================
// Fixtures
// ============================================================

func account(id, name string) domain.Account {
	return domain.Account{ID: id, Name: name, Currency: "USD", Icon: "Wallet", Color: "bg-blue-500"}
}

func expense(id, accountID string, amount float64, category, date, description string) domain.Transaction {
	return domain.Transaction{
		ID: id, AccountID: accountID, Type: domain.Expense, Category: category,
		Amount: domain.MoneyFromFloat(amount), Date: date, Description: description,
	}
}

// cascadeRepo holds accounts {A,B} and transactions {t1->A, t2->B, t3->A}.
func cascadeRepo() *mockRepo {
	return &mockRepo{
		accounts: []domain.Account{account("A", "Personal"), account("B", "Business")},
		transactions: []domain.Transaction{
			expense("t1", "A", 10, "Food & Groceries", "2024-05-10", "Lunch"),
			expense("t2", "B", 20, "Utilities", "2024-05-11", "Internet"),
			expense("t3", "A", 30, "Shopping", "2024-05-12", "Shoes"),
		},
	}
}

type harness struct {
	c       *service.Coordinator
	repo    *mockRepo
	store   *ledger.Store
	queue   *notify.Queue
	clock   *notify.FakeClock
	metrics *observability.Metrics
	events  *recordingPublisher
}

func newHarness(t *testing.T, repo *mockRepo, opts ...service.Option) *harness {
	t.Helper()
	clock := notify.NewFakeClock(testNow)
	queue := notify.New(notify.WithClock(clock))
	t.Cleanup(queue.Close)

	store := ledger.New()
	events := &recordingPublisher{}
	metrics := observability.NewMetrics()
	opts = append([]service.Option{service.WithClock(clock.Now), service.WithEvents(events)}, opts...)
	c := service.NewCoordinator(repo, store, service.NewSession(store), queue, metrics, zap.NewNop(), opts...)

	h := &harness{c: c, repo: repo, store: store, queue: queue, clock: clock, metrics: metrics, events: events}
	if repo.loadErr == nil {
		require.NoError(t, c.Load(context.Background()))
	}
	return h
}

func (h *harness) messages() []string {
	var out []string
	for _, n := range h.queue.List() {
		out = append(out, n.Message)
	}
	return out
}

func (h *harness) lastNotification(t *testing.T) domain.Notification {
	t.Helper()
	list := h.queue.List()
	require.NotEmpty(t, list)
	return list[len(list)-1]
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

func txIDs(txs []domain.Transaction) []string {
	return ids(txs, func(t domain.Transaction) string { return t.ID })
}

func accountIDs(accs []domain.Account) []string {
	return ids(accs, func(a domain.Account) string { return a.ID })
}
