package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

func acct(id string) domain.Account {
	return domain.Account{ID: id, Name: id, Currency: "USD", Icon: "Wallet", Color: "bg-blue-500"}
}

func tx(id, accountID string) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		AccountID: accountID,
		Type:      domain.Expense,
		Category:  "Food & Groceries",
		Amount:    domain.MoneyFromFloat(10),
		Date:      "2024-05-01",
	}
}

func seeded() *Store {
	s := New()
	s.Replace(
		[]domain.Account{acct("A"), acct("B")},
		[]domain.Transaction{tx("t1", "A"), tx("t2", "B"), tx("t3", "A")},
	)
	return s
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

func TestReplace_DropsOrphans(t *testing.T) {
	s := New()
	dropped := s.Replace(
		[]domain.Account{acct("A")},
		[]domain.Transaction{tx("t1", "A"), tx("t2", "ghost")},
	)

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"t1"}, txIDs(s.ListTransactions()))
}

func TestReplaceTransactions_KeepsAccounts(t *testing.T) {
	s := seeded()

	dropped := s.ReplaceTransactions([]domain.Transaction{tx("t9", "B"), tx("t8", "gone")})

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"A", "B"}, accountIDs(s.ListAccounts()))
	assert.Equal(t, []string{"t9"}, txIDs(s.ListTransactions()))
}

func TestRemoveAccount_Cascades(t *testing.T) {
	s := seeded()

	r, ok := s.RemoveAccount("A")
	require.True(t, ok)

	assert.Equal(t, []string{"B"}, accountIDs(s.ListAccounts()))
	assert.Equal(t, []string{"t2"}, txIDs(s.ListTransactions()))
	assert.Equal(t, "A", r.Account.ID)
	assert.Equal(t, []string{"t1", "t3"}, txIDs(r.Transactions()))
}

func TestRemoveAccount_Unknown(t *testing.T) {
	s := seeded()
	_, ok := s.RemoveAccount("zzz")
	assert.False(t, ok)
	assert.Equal(t, 2, s.AccountCount())
}

func TestRestore_ExactPriorState(t *testing.T) {
	s := seeded()
	before := s.Snapshot()

	r, ok := s.RemoveAccount("A")
	require.True(t, ok)
	s.Restore(r)

	assert.Equal(t, before, s.Snapshot())
}

func TestRestore_Transaction(t *testing.T) {
	s := seeded()
	before := s.Snapshot()

	r, ok := s.RemoveTransaction("t2")
	require.True(t, ok)
	assert.Equal(t, []string{"t1", "t3"}, txIDs(s.ListTransactions()))

	s.Restore(r)
	assert.Equal(t, before, s.Snapshot())

	// idempotent
	s.Restore(r)
	assert.Equal(t, before, s.Snapshot())
}

func TestPrependAndUpsert(t *testing.T) {
	s := seeded()

	s.PrependTransaction(tx("t0", "B"))
	assert.Equal(t, []string{"t0", "t1", "t2", "t3"}, txIDs(s.ListTransactions()))

	changed := tx("t2", "A")
	changed.Description = "moved"
	s.UpsertTransaction(changed)
	got, ok := s.Transaction("t2")
	require.True(t, ok)
	assert.Equal(t, "A", got.AccountID)
	assert.Equal(t, []string{"t0", "t1", "t2", "t3"}, txIDs(s.ListTransactions()))

	s.PrependAccount(acct("C"))
	first, ok := s.FirstAccount()
	require.True(t, ok)
	assert.Equal(t, "C", first.ID)

	renamed := acct("B")
	renamed.Name = "Business"
	s.UpsertAccount(renamed)
	b, _ := s.Account("B")
	assert.Equal(t, "Business", b.Name)
	assert.Equal(t, 3, s.AccountCount())
}

func TestListReturnsCopies(t *testing.T) {
	s := seeded()
	accs := s.ListAccounts()
	accs[0].Name = "mutated"

	a, _ := s.Account("A")
	assert.Equal(t, "A", a.Name)
}
