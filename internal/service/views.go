package service

import (
	"time"

	"github.com/boddenberg/zenith-finance-go/internal/aggregate"
	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// recentLimit is how many transactions the dashboard lists.
const recentLimit = 5

// Dashboard is the per-account overview for one range.
type Dashboard struct {
	Account    domain.Account            `json:"account"`
	Range      aggregate.Range           `json:"range"`
	Summary    aggregate.Summary         `json:"summary"`
	Categories []aggregate.CategoryTotal `json:"categories"`
	Series     []aggregate.DatePoint     `json:"series"`
	Recent     []domain.Transaction      `json:"recent"`
}

// ActiveTransactions returns the active account's transactions, newest
// first.
func (c *Coordinator) ActiveTransactions() ([]domain.Transaction, error) {
	acc, ok := c.session.ActiveAccount()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: "active"}
	}
	return aggregate.ForAccount(c.store.ListTransactions(), acc.ID), nil
}

// Dashboard aggregates the active account's transactions over rng.
func (c *Coordinator) Dashboard(rng aggregate.Range) (*Dashboard, error) {
	acc, ok := c.session.ActiveAccount()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: "active"}
	}

	txs := aggregate.ForAccount(c.store.ListTransactions(), acc.ID)
	txs = aggregate.FilterByRange(txs, rng, c.now())
	return &Dashboard{
		Account:    acc,
		Range:      rng,
		Summary:    aggregate.Totals(txs),
		Categories: aggregate.CategoryTotals(txs),
		Series:     aggregate.DateSeries(txs),
		Recent:     aggregate.Recent(txs, recentLimit),
	}, nil
}

// Calendar builds the month grid for the active account. A zero year
// means the current month.
func (c *Coordinator) Calendar(year int, month time.Month) (aggregate.CalendarMonth, error) {
	txs, err := c.ActiveTransactions()
	if err != nil {
		return aggregate.CalendarMonth{}, err
	}
	now := c.now()
	if year == 0 {
		year, month = now.Year(), now.Month()
	}
	if month < time.January || month > time.December {
		return aggregate.CalendarMonth{}, &domain.ErrValidation{Field: "month", Message: "must be 1-12"}
	}
	return aggregate.Calendar(txs, year, month, domain.LocalDate(now)), nil
}

// History groups the active account's transactions by month.
func (c *Coordinator) History() ([]aggregate.MonthGroup, error) {
	txs, err := c.ActiveTransactions()
	if err != nil {
		return nil, err
	}
	return aggregate.MonthGroups(txs), nil
}
