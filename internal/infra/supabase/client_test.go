package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/resilience"
	"github.com/boddenberg/zenith-finance-go/internal/port"
)

var _ port.Persistence = (*Client)(nil)

const testSecret = "super-secret-jwt"

func signToken(t *testing.T, sub, secret string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
	Header http.Header
}

type fakePostgREST struct {
	mu       sync.Mutex
	calls    []recorded
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body), Header: r.Header.Clone()})
	f.mu.Unlock()

	key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	if h, ok := f.handlers[key]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"code":"PGRST202","message":"not found"}`))
}

func (f *fakePostgREST) Calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.calls...)
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, handlers map[string]func(http.ResponseWriter, *http.Request)) (*Client, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{handlers: handlers}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.Client(), Options{
		BaseURL:     srv.URL,
		AnonKey:     "anon",
		AccessToken: signToken(t, "user-1", testSecret),
		JWTSecret:   testSecret,
	}, resilience.NewCircuitBreaker("supabase-test", nil),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond},
		zap.NewNop(), nil)
	require.NoError(t, err)
	return c, fake
}

func TestOwnerID(t *testing.T) {
	sub, err := OwnerID(signToken(t, "abc", testSecret), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "abc", sub)

	sub, err = OwnerID(signToken(t, "abc", "other"), "")
	require.NoError(t, err, "unverified parse accepts any signature")
	assert.Equal(t, "abc", sub)

	_, err = OwnerID(signToken(t, "abc", "other"), testSecret)
	var unauth *domain.ErrUnauthorized
	assert.ErrorAs(t, err, &unauth)

	_, err = OwnerID(signToken(t, "", testSecret), testSecret)
	assert.ErrorAs(t, err, &unauth)
}

func TestNotConfigured_FailsClosed(t *testing.T) {
	c, err := NewClient(http.DefaultClient, Options{BaseURL: "https://x.supabase.co"},
		resilience.NewCircuitBreaker("nc", nil), resilience.Config{}, zap.NewNop(), nil)
	require.NoError(t, err)

	var nc *domain.ErrNotConfigured
	_, err = c.LoadAccounts(context.Background())
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, []string{"SUPABASE_ANON_KEY", "SUPABASE_ACCESS_TOKEN"}, nc.Missing)

	assert.ErrorAs(t, c.DeleteAccount(context.Background(), "a"), &nc)
	_, err = c.CreateTransaction(context.Background(), domain.TransactionDraft{})
	assert.ErrorAs(t, err, &nc)
}

func TestLoadAccounts_ScopedAndOrdered(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET accounts": respond(200, `[{"id":"a1","user_id":"user-1","name":"Personal","currency":"USD","icon":"User","color":"bg-blue-500","created_at":"2024-01-01T00:00:00Z"}]`),
	})

	accs, err := c.LoadAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accs, 1)
	assert.Equal(t, domain.Account{ID: "a1", Name: "Personal", Currency: "USD", Icon: "User", Color: "bg-blue-500"}, accs[0])

	call := fake.Calls()[0]
	assert.Contains(t, call.Query, "user_id=eq.user-1")
	assert.Contains(t, call.Query, "order=created_at.asc")
	assert.Equal(t, "anon", call.Header.Get("apikey"))
	assert.True(t, strings.HasPrefix(call.Header.Get("Authorization"), "Bearer "))
}

func TestLoadTransactions_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"GET transactions": func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				respond(503, `upstream down`)(w, r)
				return
			}
			respond(200, `[{"id":"t1","user_id":"user-1","account_id":"a1","type":"expense","category":"Food & Groceries","amount":12.5,"date":"2024-05-03","description":"Pizza"}]`)(w, r)
		},
	})

	txs, err := c.LoadTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "a1", txs[0].AccountID)
	assert.Equal(t, "12.5", txs[0].Amount.String())
	assert.Equal(t, 2, attempts)
	assert.Contains(t, fake.Calls()[0].Query, "order=date.desc,created_at.desc")
}

func TestCreateTransaction_NotRetried(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST transactions": respond(500, `boom`),
	})

	_, err := c.CreateTransaction(context.Background(), domain.TransactionDraft{
		AccountID: "a1", Type: domain.Expense, Category: "Food & Groceries",
		Amount: domain.MoneyFromFloat(3), Date: "2024-05-03",
	})
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Len(t, fake.Calls(), 1)
}

func TestCreateTransaction_SendsRow(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST transactions": respond(201, `[{"id":"t9","user_id":"user-1","account_id":"a1","type":"income","category":"Salary","amount":5000,"date":"2024-05-01","description":"Salary from ACME"}]`),
	})

	tx, err := c.CreateTransaction(context.Background(), domain.TransactionDraft{
		AccountID: "a1", Type: domain.Income, Category: "Salary",
		Amount: domain.MoneyFromFloat(5000), Date: "2024-05-01", Description: "Salary from ACME",
	})
	require.NoError(t, err)
	assert.Equal(t, "t9", tx.ID)

	var sent map[string]any
	call := fake.Calls()[0]
	require.NoError(t, json.Unmarshal([]byte(call.Body), &sent))
	assert.Equal(t, "user-1", sent["user_id"])
	assert.Equal(t, "a1", sent["account_id"])
	assert.Equal(t, float64(5000), sent["amount"])
	assert.NotContains(t, sent, "id")
	assert.Equal(t, "return=representation", call.Header.Get("Prefer"))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{401, func(t *testing.T, err error) {
			var e *domain.ErrUnauthorized
			assert.ErrorAs(t, err, &e)
		}},
		{422, func(t *testing.T, err error) {
			var e *domain.ErrValidation
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "amount must be positive", e.Message)
		}},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
			"PATCH transactions": respond(tc.status, `{"message":"amount must be positive"}`),
		})
		desc := "x"
		_, err := c.UpdateTransaction(context.Background(), "t1", domain.TransactionPatch{Description: &desc})
		tc.check(t, err)
	}
}

func TestUpdateAccount_NotFoundOnEmptyRepresentation(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"PATCH accounts": respond(200, `[]`),
	})
	name := "Renamed"
	_, err := c.UpdateAccount(context.Background(), "ghost", domain.AccountPatch{Name: &name})

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	assert.Contains(t, fake.Calls()[0].Query, "id=eq.ghost&user_id=eq.user-1")
	assert.Equal(t, `{"name":"Renamed"}`, fake.Calls()[0].Body)
}

func TestDeleteAccount_UsesCascadeFunction(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST rpc/delete_account_cascade": respond(200, `true`),
	})

	require.NoError(t, c.DeleteAccount(context.Background(), "a1"))
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"p_account_id":"a1"}`, calls[0].Body)
}

func TestDeleteAccount_CascadeFunctionReportsMissing(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST rpc/delete_account_cascade": respond(200, `false`),
	})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, c.DeleteAccount(context.Background(), "a1"), &nf)
}

func TestDeleteAccount_TwoStepFallback(t *testing.T) {
	c, fake := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE transactions": respond(200, `[]`),
		"DELETE accounts":     respond(200, `[{"id":"a1","user_id":"user-1","name":"P","currency":"USD","icon":"User","color":"bg-blue-500"}]`),
	})

	require.NoError(t, c.DeleteAccount(context.Background(), "a1"))
	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "/rest/v1/transactions", calls[1].Path)
	assert.Contains(t, calls[1].Query, "account_id=eq.a1")
	assert.Equal(t, "/rest/v1/accounts", calls[2].Path)
}

func TestDeleteAccount_TwoStepInconsistency(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE transactions": respond(200, `[]`),
		"DELETE accounts":     respond(500, `deadlock`),
	})

	err := c.DeleteAccount(context.Background(), "a1")
	var cas *domain.ErrCascadeInconsistency
	require.ErrorAs(t, err, &cas)
	assert.Equal(t, "a1", cas.AccountID)
	assert.False(t, cas.AccountDeleted)
}

func TestDeleteAccount_TwoStepAccountAlreadyGone(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE transactions": respond(200, `[{"id":"t1","user_id":"user-1","account_id":"a1"}]`),
		"DELETE accounts":     respond(200, `[]`),
	})

	err := c.DeleteAccount(context.Background(), "a1")
	var cas *domain.ErrCascadeInconsistency
	require.ErrorAs(t, err, &cas)
	assert.True(t, cas.AccountDeleted)
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestDeleteAccount_TwoStepUnknownAccount(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE transactions": respond(200, `[]`),
		"DELETE accounts":     respond(200, `[]`),
	})

	err := c.DeleteAccount(context.Background(), "a1")
	var cas *domain.ErrCascadeInconsistency
	assert.False(t, errors.As(err, &cas))
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestDeleteTransaction(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"DELETE transactions": respond(200, `[]`),
	})
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, c.DeleteTransaction(context.Background(), "t1"), &nf)
}

func TestCircuitOpens(t *testing.T) {
	c, _ := newTestClient(t, map[string]func(http.ResponseWriter, *http.Request){
		"POST accounts": respond(502, `bad gateway`),
	})

	draft := domain.AccountDraft{Name: "X", Currency: "USD", Icon: "User", Color: "bg-blue-500"}
	for i := 0; i < 5; i++ {
		_, _ = c.CreateAccount(context.Background(), draft)
	}
	_, err := c.CreateAccount(context.Background(), draft)
	var open *domain.ErrCircuitOpen
	assert.ErrorAs(t, err, &open)
}
