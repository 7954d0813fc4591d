package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// ============================================================
// Accounts — CRUD via PostgREST
// ============================================================

type accountRow struct {
	ID       string `json:"id,omitempty"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{ID: r.ID, Name: r.Name, Currency: r.Currency, Icon: r.Icon, Color: r.Color}
}

func (c *Client) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	path := fmt.Sprintf("accounts?select=*&user_id=eq.%s&order=created_at.asc", url.QueryEscape(c.userID))
	body, err := c.read(ctx, "LoadAccounts", path)
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[accountRow](body, "accounts")
	if err != nil {
		return nil, typed("LoadAccounts", err)
	}
	out := make([]domain.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, draft domain.AccountDraft) (*domain.Account, error) {
	row := accountRow{
		UserID:   c.userID,
		Name:     draft.Name,
		Currency: draft.Currency,
		Icon:     draft.Icon,
		Color:    draft.Color,
	}
	body, err := c.write(ctx, "CreateAccount", http.MethodPost, "accounts", row)
	if err != nil {
		return nil, err
	}
	return firstAccount(body, "")
}

func (c *Client) UpdateAccount(ctx context.Context, id string, patch domain.AccountPatch) (*domain.Account, error) {
	data := map[string]any{}
	if patch.Name != nil {
		data["name"] = *patch.Name
	}
	if patch.Currency != nil {
		data["currency"] = *patch.Currency
	}
	if patch.Icon != nil {
		data["icon"] = *patch.Icon
	}
	if patch.Color != nil {
		data["color"] = *patch.Color
	}

	body, err := c.write(ctx, "UpdateAccount", http.MethodPatch, c.ownedPath("accounts", "id", id), data)
	if err != nil {
		return nil, err
	}
	return firstAccount(body, id)
}

// DeleteAccount removes the account and its transactions through the
// delete_account_cascade function, which runs in one Postgres transaction.
// Projects without the function fall back to two calls; a failure between
// them is reported as domain.ErrCascadeInconsistency.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	body, err := c.write(ctx, "DeleteAccountCascade", http.MethodPost, "rpc/delete_account_cascade",
		map[string]any{"p_account_id": id})
	if err == nil {
		var deleted bool
		if jsonErr := json.Unmarshal(body, &deleted); jsonErr == nil && !deleted {
			return &domain.ErrNotFound{Resource: "account", ID: id}
		}
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return err
	}

	c.logger.Warn("supabase: delete_account_cascade missing, using two-step delete",
		zap.String("account_id", id))
	return c.deleteAccountTwoStep(ctx, id)
}

// deleteAccountTwoStep removes the transactions first. Once any of them are
// gone, a missing account row can no longer be reported as a plain not
// found: the caller must resync instead of restoring what it removed.
func (c *Client) deleteAccountTwoStep(ctx context.Context, id string) error {
	txBody, err := c.write(ctx, "DeleteAccountTransactions", http.MethodDelete,
		c.ownedPath("transactions", "account_id", id), nil)
	if err != nil {
		return err
	}
	txRows, _ := decodeRows[transactionRow](txBody, "transactions")

	body, err := c.write(ctx, "DeleteAccount", http.MethodDelete, c.ownedPath("accounts", "id", id), nil)
	if err != nil {
		return &domain.ErrCascadeInconsistency{AccountID: id, AccountDeleted: false, Err: err}
	}
	rows, err := decodeRows[accountRow](body, "account")
	if err == nil && len(rows) == 0 {
		missing := &domain.ErrNotFound{Resource: "account", ID: id}
		if len(txRows) == 0 {
			return missing
		}
		return &domain.ErrCascadeInconsistency{AccountID: id, AccountDeleted: true, Err: missing}
	}
	return nil
}

func (c *Client) ownedPath(table, column, id string) string {
	return fmt.Sprintf("%s?%s=eq.%s&user_id=eq.%s", table, column, url.QueryEscape(id), url.QueryEscape(c.userID))
}

func firstAccount(body []byte, id string) (*domain.Account, error) {
	rows, err := decodeRows[accountRow](body, "account")
	if err != nil {
		return nil, typed("account", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	acc := rows[0].toDomain()
	return &acc, nil
}
