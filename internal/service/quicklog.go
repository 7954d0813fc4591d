package service

import (
	"context"
	"strings"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// QuickLogKind names a quick-log template.
type QuickLogKind string

const (
	QuickLogFare         QuickLogKind = "fare"
	QuickLogFood         QuickLogKind = "food"
	QuickLogSalary       QuickLogKind = "salary"
	QuickLogBill         QuickLogKind = "bill"
	QuickLogGiftReceived QuickLogKind = "gift-received"
	QuickLogGiftGiven    QuickLogKind = "gift-given"
	QuickLogCharity      QuickLogKind = "charity"
	QuickLogMomoCharges  QuickLogKind = "momo-charges"
	QuickLogMisc         QuickLogKind = "misc"
)

type quickLogTemplate struct {
	fields   []string
	describe func(f map[string]string) string
	category string
	typ      domain.TransactionType
}

var quickLogTemplates = map[QuickLogKind]quickLogTemplate{
	QuickLogFare: {
		fields:   []string{"from", "to"},
		describe: func(f map[string]string) string { return "Lorry Fare: " + f["from"] + " to " + f["to"] },
		category: "Transportation",
		typ:      domain.Expense,
	},
	QuickLogFood: {
		fields:   []string{"item"},
		describe: func(f map[string]string) string { return "Food: " + f["item"] },
		category: "Food & Groceries",
		typ:      domain.Expense,
	},
	QuickLogSalary: {
		fields:   []string{"source"},
		describe: func(f map[string]string) string { return "Salary from " + f["source"] },
		category: "Salary",
		typ:      domain.Income,
	},
	QuickLogBill: {
		fields:   []string{"for"},
		describe: func(f map[string]string) string { return "Bill: " + f["for"] },
		category: "Utilities",
		typ:      domain.Expense,
	},
	QuickLogGiftReceived: {
		fields:   []string{"from"},
		describe: func(f map[string]string) string { return "Gift from " + f["from"] },
		category: "Gift",
		typ:      domain.Income,
	},
	QuickLogGiftGiven: {
		fields:   []string{"to"},
		describe: func(f map[string]string) string { return "Gift to " + f["to"] },
		category: "Gift",
		typ:      domain.Expense,
	},
	QuickLogCharity: {
		fields:   []string{"to"},
		describe: func(f map[string]string) string { return "Charity Donation to " + f["to"] },
		category: "Charity",
		typ:      domain.Expense,
	},
	QuickLogMomoCharges: {
		fields:   []string{"on"},
		describe: func(f map[string]string) string { return "Mobile Money Charges: " + f["on"] },
		category: "Other",
		typ:      domain.Expense,
	},
	QuickLogMisc: {
		fields:   []string{"bought"},
		describe: func(f map[string]string) string { return "Misc: " + f["bought"] },
		category: "Shopping",
		typ:      domain.Expense,
	},
}

var quickLogAliases = map[string]QuickLogKind{
	"lorry":    QuickLogFare,
	"gift-in":  QuickLogGiftReceived,
	"gift-out": QuickLogGiftGiven,
}

// QuickLogKinds lists the canonical kinds in menu order.
func QuickLogKinds() []QuickLogKind {
	return []QuickLogKind{
		QuickLogFare, QuickLogFood, QuickLogSalary, QuickLogBill, QuickLogGiftReceived,
		QuickLogGiftGiven, QuickLogCharity, QuickLogMomoCharges, QuickLogMisc,
	}
}

// ParseQuickLogKind accepts canonical names and aliases, case-insensitively.
func ParseQuickLogKind(s string) (QuickLogKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k, ok := quickLogAliases[s]; ok {
		return k, nil
	}
	if _, ok := quickLogTemplates[QuickLogKind(s)]; ok {
		return QuickLogKind(s), nil
	}
	return "", &domain.ErrValidation{Field: "kind", Message: "unknown quick-log kind " + s}
}

// Fields returns the free-text fields the kind requires.
func (k QuickLogKind) Fields() []string {
	return append([]string(nil), quickLogTemplates[k].fields...)
}

// QuickLogEntry is the raw form input of a quick-log.
type QuickLogEntry struct {
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
	Amount string            `json:"amount"`
	Date   string            `json:"date,omitempty"`
}

// BuildQuickLog expands entry into a transaction draft without an
// account. today is used unless entry.Date is a well formed date.
func BuildQuickLog(entry QuickLogEntry, today string) (domain.TransactionDraft, error) {
	amount, err := domain.ParseMoney(strings.TrimSpace(entry.Amount))
	if err != nil || !amount.IsPositive() {
		return domain.TransactionDraft{}, &domain.ErrValidation{Field: "amount", Message: "must be a number greater than zero"}
	}

	kind, err := ParseQuickLogKind(entry.Kind)
	if err != nil {
		return domain.TransactionDraft{}, err
	}
	tpl := quickLogTemplates[kind]

	values := make(map[string]string, len(tpl.fields))
	for _, name := range tpl.fields {
		v := strings.TrimSpace(entry.Fields[name])
		if v == "" {
			return domain.TransactionDraft{}, &domain.ErrValidation{Field: name, Message: "required"}
		}
		values[name] = v
	}

	date := today
	if entry.Date != "" && domain.ValidateDate(entry.Date) == nil {
		date = entry.Date
	}

	return domain.TransactionDraft{
		Type:        tpl.typ,
		Category:    tpl.category,
		Amount:      amount,
		Date:        date,
		Description: tpl.describe(values),
	}, nil
}

// QuickLog builds the templated transaction and creates it on the active
// account.
func (c *Coordinator) QuickLog(ctx context.Context, entry QuickLogEntry) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.QuickLog")
	defer span.End()

	draft, err := BuildQuickLog(entry, domain.LocalDate(c.now()))
	if err != nil {
		return nil, c.reject(span, entityTransaction, opQuickLog, MsgTransactionAddFailed, err)
	}
	return c.CreateTransaction(ctx, draft)
}
