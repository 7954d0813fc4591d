package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

type seedTemplate struct {
	typ         domain.TransactionType
	amount      float64
	category    string
	description string
	day         int
}

var seedTemplates = []seedTemplate{
	{domain.Income, 5000, "Salary", "Monthly Salary", 1},
	{domain.Expense, 1200, "Housing & Rent", "Rent Payment", 1},
	{domain.Expense, 85.5, "Food & Groceries", "Weekly Groceries", 3},
	{domain.Expense, 45.2, "Transportation", "Gasoline", 4},
	{domain.Expense, 150, "Health & Wellness", "Gym Membership", 5},
	{domain.Income, 300, "Freelance", "Web design project", 6},
	{domain.Expense, 75.8, "Entertainment", "Dinner with friends", 7},
	{domain.Expense, 200, "Shopping", "New shoes", 8},
	{domain.Expense, 55, "Utilities", "Internet Bill", 10},
	{domain.Expense, 32.5, "Food & Groceries", "Lunch", 12},
	{domain.Expense, 25, "Entertainment", "Movie tickets", 14},
	{domain.Income, 50, "Gift", "Birthday gift from grandma", 15},
}

// SeedTransactions returns the demo transactions dated in the given month,
// for accountID.
func SeedTransactions(accountID string, year int, month time.Month) []domain.TransactionDraft {
	out := make([]domain.TransactionDraft, len(seedTemplates))
	for i, t := range seedTemplates {
		out[i] = domain.TransactionDraft{
			AccountID:   accountID,
			Type:        t.typ,
			Category:    t.category,
			Amount:      domain.MoneyFromFloat(t.amount),
			Date:        fmt.Sprintf("%04d-%02d-%02d", year, month, t.day),
			Description: t.description,
		}
	}
	return out
}

// SeedTestData adds the demo transactions to the active account, one
// backend call at a time, with a single notification at the end.
func (c *Coordinator) SeedTestData(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.SeedTestData")
	defer span.End()

	accountID := c.session.ActiveAccountID()
	if accountID == "" {
		return 0, c.reject(span, entityTransaction, opSeed, MsgSelectAccount,
			&domain.ErrValidation{Field: "accountId", Message: "no active account"})
	}
	span.SetAttributes(attribute.String("account.id", accountID))

	if err := c.transactionsGate.Acquire(ctx); err != nil {
		return 0, c.reject(span, entityTransaction, opSeed, MsgSeedFailed, err)
	}
	defer c.transactionsGate.Release()

	now := c.now()
	drafts := SeedTransactions(accountID, now.Year(), now.Month())
	for i, draft := range drafts {
		if _, err := c.insertTransaction(ctx, draft); err != nil {
			span.SetAttributes(attribute.Int("seeded", i))
			return i, c.reject(span, entityTransaction, opSeed, MsgSeedFailed, err)
		}
	}

	c.notify(domain.SeveritySuccess, fmt.Sprintf(msgSeededTemplate, len(drafts)))
	return len(drafts), nil
}
