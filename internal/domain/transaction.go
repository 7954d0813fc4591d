package domain

import (
	"strings"
	"time"
)

// ============================================================
// Transactions
// ============================================================

// DateLayout is the calendar-date format used for Transaction.Date.
const DateLayout = "2006-01-02"

// TransactionType partitions transactions into money in and money out.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is a single dated income or expense event tied to one Account.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Amount      Money           `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

// TransactionDraft is a Transaction before the persistence layer assigns its ID.
type TransactionDraft struct {
	AccountID   string          `json:"accountId"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Amount      Money           `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
}

// TransactionPatch carries a partial update; nil fields are left unchanged.
type TransactionPatch struct {
	AccountID   *string          `json:"accountId,omitempty"`
	Type        *TransactionType `json:"type,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Amount      *Money           `json:"amount,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Description *string          `json:"description,omitempty"`
}

// Validate checks the draft shape. Account existence is checked by the caller.
func (d *TransactionDraft) Validate() error {
	d.Category = strings.TrimSpace(d.Category)
	if d.AccountID == "" {
		return &ErrValidation{Field: "accountId", Message: "required"}
	}
	if !d.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if d.Category == "" {
		return &ErrValidation{Field: "category", Message: "required"}
	}
	if !d.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	return ValidateDate(d.Date)
}

// Validate checks only the fields that are set.
func (p *TransactionPatch) Validate() error {
	if p.AccountID != nil && *p.AccountID == "" {
		return &ErrValidation{Field: "accountId", Message: "required"}
	}
	if p.Type != nil && !p.Type.Valid() {
		return &ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		if c == "" {
			return &ErrValidation{Field: "category", Message: "required"}
		}
		p.Category = &c
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if p.Date != nil {
		return ValidateDate(*p.Date)
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.AccountID == nil && p.Type == nil && p.Category == nil &&
		p.Amount == nil && p.Date == nil && p.Description == nil
}

// Apply returns a copy of t with the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.AccountID != nil {
		t.AccountID = *p.AccountID
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return t
}

// WithID materialises the draft as a Transaction.
func (d TransactionDraft) WithID(id string) Transaction {
	return Transaction{
		ID:          id,
		AccountID:   d.AccountID,
		Type:        d.Type,
		Category:    d.Category,
		Amount:      d.Amount,
		Date:        d.Date,
		Description: d.Description,
	}
}

// ValidateDate checks the YYYY-MM-DD format.
func ValidateDate(s string) error {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return nil
}

// LocalDate formats t's calendar day in t's own location.
func LocalDate(t time.Time) string {
	return t.Format(DateLayout)
}
