package domain

import "slices"

// FallbackCategory is used whenever a suggestion cannot be trusted.
const FallbackCategory = "Other"

// Categories is the configurable category list offered to users. It is a
// suggestion list, not a closed set.
type Categories struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

// DefaultCategories returns the built-in lists.
func DefaultCategories() Categories {
	return Categories{
		Income: []string{
			"Salary",
			"Business Revenue",
			"Freelance",
			"Investment",
			"Gift",
			"Other",
		},
		Expense: []string{
			"Food & Groceries",
			"Housing & Rent",
			"Utilities",
			"Transportation",
			"Health & Wellness",
			"Entertainment",
			"Shopping",
			"Education",
			"Business Expense",
			"Taxes",
			"Gift",
			"Other",
		},
	}
}

// All returns expense categories followed by income ones, without duplicates.
func (c Categories) All() []string {
	out := make([]string, 0, len(c.Expense)+len(c.Income))
	for _, cat := range append(append([]string{}, c.Expense...), c.Income...) {
		if !slices.Contains(out, cat) {
			out = append(out, cat)
		}
	}
	return out
}

// Contains reports whether cat is in either list.
func (c Categories) Contains(cat string) bool {
	return slices.Contains(c.Income, cat) || slices.Contains(c.Expense, cat)
}
