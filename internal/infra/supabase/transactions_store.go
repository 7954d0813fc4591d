package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// ============================================================
// Transactions — CRUD via PostgREST
// ============================================================

type transactionRow struct {
	ID          string                 `json:"id,omitempty"`
	UserID      string                 `json:"user_id"`
	AccountID   string                 `json:"account_id"`
	Type        domain.TransactionType `json:"type"`
	Category    string                 `json:"category"`
	Amount      domain.Money           `json:"amount"`
	Date        string                 `json:"date"`
	Description string                 `json:"description"`
}

func (r transactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Type:        r.Type,
		Category:    r.Category,
		Amount:      r.Amount,
		Date:        r.Date,
		Description: r.Description,
	}
}

func (c *Client) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	path := fmt.Sprintf("transactions?select=*&user_id=eq.%s&order=date.desc,created_at.desc", url.QueryEscape(c.userID))
	body, err := c.read(ctx, "LoadTransactions", path)
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[transactionRow](body, "transactions")
	if err != nil {
		return nil, typed("LoadTransactions", err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.Transaction, error) {
	row := transactionRow{
		UserID:      c.userID,
		AccountID:   draft.AccountID,
		Type:        draft.Type,
		Category:    draft.Category,
		Amount:      draft.Amount,
		Date:        draft.Date,
		Description: draft.Description,
	}
	body, err := c.write(ctx, "CreateTransaction", http.MethodPost, "transactions", row)
	if err != nil {
		return nil, err
	}
	return firstTransaction(body, "")
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) (*domain.Transaction, error) {
	data := map[string]any{}
	if patch.AccountID != nil {
		data["account_id"] = *patch.AccountID
	}
	if patch.Type != nil {
		data["type"] = *patch.Type
	}
	if patch.Category != nil {
		data["category"] = *patch.Category
	}
	if patch.Amount != nil {
		data["amount"] = *patch.Amount
	}
	if patch.Date != nil {
		data["date"] = *patch.Date
	}
	if patch.Description != nil {
		data["description"] = *patch.Description
	}

	body, err := c.write(ctx, "UpdateTransaction", http.MethodPatch, c.ownedPath("transactions", "id", id), data)
	if err != nil {
		return nil, err
	}
	return firstTransaction(body, id)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	body, err := c.write(ctx, "DeleteTransaction", http.MethodDelete, c.ownedPath("transactions", "id", id), nil)
	if err != nil {
		return err
	}
	rows, err := decodeRows[transactionRow](body, "transaction")
	if err == nil && len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

func firstTransaction(body []byte, id string) (*domain.Transaction, error) {
	rows, err := decodeRows[transactionRow](body, "transaction")
	if err != nil {
		return nil, typed("transaction", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	tx := rows[0].toDomain()
	return &tx, nil
}
