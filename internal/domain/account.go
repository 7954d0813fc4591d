package domain

import (
	"regexp"
	"slices"
	"strings"
)

// ============================================================
// Accounts
// ============================================================

// Account is a named ledger bucket with its own currency.
type Account struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

// AccountDraft is an Account before the persistence layer assigns its ID.
type AccountDraft struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

// AccountPatch carries a partial update; nil fields are left unchanged.
type AccountPatch struct {
	Name     *string `json:"name,omitempty"`
	Currency *string `json:"currency,omitempty"`
	Icon     *string `json:"icon,omitempty"`
	Color    *string `json:"color,omitempty"`
}

var (
	// AccountIcons is the closed set of icon names an account may use.
	AccountIcons = []string{"Wallet", "Landmark", "Briefcase", "User", "School", "PiggyBank", "CreditCard"}

	// AccountColors is the closed set of color names an account may use.
	AccountColors = []string{"bg-blue-500", "bg-green-500", "bg-red-500", "bg-yellow-500", "bg-purple-500", "bg-pink-500", "bg-indigo-500"}

	// Currencies lists the codes offered when creating an account.
	Currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD"}

	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
)

// DefaultAccounts is what a fresh local ledger starts with.
func DefaultAccounts() []AccountDraft {
	return []AccountDraft{
		{Name: "Personal", Currency: "USD", Icon: "User", Color: "bg-blue-500"},
		{Name: "Business", Currency: "USD", Icon: "Briefcase", Color: "bg-green-500"},
		{Name: "School", Currency: "EUR", Icon: "School", Color: "bg-yellow-500"},
	}
}

// Validate checks the draft and normalises its name and currency.
func (d *AccountDraft) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	if d.Name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if err := validateCurrency(d.Currency); err != nil {
		return err
	}
	if err := validateIcon(d.Icon); err != nil {
		return err
	}
	return validateColor(d.Color)
}

// Validate checks only the fields that are set.
func (p *AccountPatch) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return &ErrValidation{Field: "name", Message: "required"}
		}
		p.Name = &name
	}
	if p.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*p.Currency))
		if err := validateCurrency(cur); err != nil {
			return err
		}
		p.Currency = &cur
	}
	if p.Icon != nil {
		if err := validateIcon(*p.Icon); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := validateColor(*p.Color); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Currency == nil && p.Icon == nil && p.Color == nil
}

// Apply returns a copy of a with the patch applied.
func (p AccountPatch) Apply(a Account) Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Currency != nil {
		a.Currency = *p.Currency
	}
	if p.Icon != nil {
		a.Icon = *p.Icon
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	return a
}

// WithID materialises the draft as an Account.
func (d AccountDraft) WithID(id string) Account {
	return Account{ID: id, Name: d.Name, Currency: d.Currency, Icon: d.Icon, Color: d.Color}
}

func validateCurrency(c string) error {
	if !currencyCode.MatchString(c) {
		return &ErrValidation{Field: "currency", Message: "must be a 3-letter code"}
	}
	return nil
}

func validateIcon(icon string) error {
	if !slices.Contains(AccountIcons, icon) {
		return &ErrValidation{Field: "icon", Message: "unknown icon " + icon}
	}
	return nil
}

func validateColor(color string) error {
	if !slices.Contains(AccountColors, color) {
		return &ErrValidation{Field: "color", Message: "unknown color " + color}
	}
	return nil
}
