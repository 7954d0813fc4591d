// Package aggregate derives read-only views from a transaction list:
// range filters, totals, category breakdowns, per-day buckets, the calendar
// grid and month-grouped history.
//
// Every function is pure. Nothing here reads the clock; callers pass now.
package aggregate

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// Range selects a time window relative to the caller's clock.
type Range string

const (
	RangeToday Range = "today"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
)

// ParseRange accepts today, month (or thisMonth) and all. Empty means all.
func ParseRange(s string) (Range, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return RangeToday, nil
	case "month", "thismonth", "this_month":
		return RangeMonth, nil
	case "all", "":
		return RangeAll, nil
	}
	return "", &domain.ErrValidation{Field: "range", Message: "must be today, month or all"}
}

// FilterByRange keeps the transactions whose date falls on now's local day
// (today) or local year-month (month). RangeAll returns the input unchanged.
func FilterByRange(txs []domain.Transaction, rng Range, now time.Time) []domain.Transaction {
	var keep func(date string) bool
	switch rng {
	case RangeToday:
		today := domain.LocalDate(now)
		keep = func(date string) bool { return date == today }
	case RangeMonth:
		prefix := now.Format("2006-01") + "-"
		keep = func(date string) bool { return strings.HasPrefix(date, prefix) }
	default:
		return txs
	}

	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if keep(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// ForAccount returns the account's transactions, newest date first. Ties
// keep their input order.
func ForAccount(txs []domain.Transaction, accountID string) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	SortByDateDesc(out)
	return out
}

// SortByDateDesc sorts in place, newest first, stable.
func SortByDateDesc(txs []domain.Transaction) {
	slices.SortStableFunc(txs, func(a, b domain.Transaction) int {
		return cmp.Compare(b.Date, a.Date)
	})
}

// Recent returns at most n transactions from the front of txs.
func Recent(txs []domain.Transaction, n int) []domain.Transaction {
	if n < 0 {
		n = 0
	}
	if len(txs) <= n {
		return txs
	}
	return txs[:n]
}

// Summary is the income/expense/balance triple.
type Summary struct {
	Income  domain.Money `json:"income"`
	Expense domain.Money `json:"expense"`
	Balance domain.Money `json:"balance"`
}

// Totals sums amounts by type. Balance is always Income minus Expense.
func Totals(txs []domain.Transaction) Summary {
	var income, expense domain.Money
	for _, t := range txs {
		switch t.Type {
		case domain.Income:
			income = income.Plus(t.Amount)
		case domain.Expense:
			expense = expense.Plus(t.Amount)
		}
	}
	return Summary{Income: income, Expense: expense, Balance: income.Minus(expense)}
}

// CategoryTotal is one slice of the expense breakdown.
type CategoryTotal struct {
	Category string       `json:"name"`
	Total    domain.Money `json:"value"`
}

// CategoryTotals sums expense amounts per category, largest first. Equal
// totals are ordered by category name.
func CategoryTotals(txs []domain.Transaction) []CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Type != domain.Expense {
			continue
		}
		sums[t.Category] = sums[t.Category].Add(t.Amount.Decimal)
	}

	out := make([]CategoryTotal, 0, len(sums))
	for cat, sum := range sums {
		if !sum.IsPositive() {
			continue
		}
		out = append(out, CategoryTotal{Category: cat, Total: domain.NewMoney(sum)})
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Total.Cmp(a.Total.Decimal); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}

// DatePoint is the income and expense booked on one date.
type DatePoint struct {
	Date    string       `json:"date"`
	Income  domain.Money `json:"income"`
	Expense domain.Money `json:"expense"`
}

// DateSeries buckets txs by date, oldest first. Only dates with activity
// appear.
func DateSeries(txs []domain.Transaction) []DatePoint {
	byDate := bucketByDate(txs, func(string) bool { return true })

	out := make([]DatePoint, 0, len(byDate))
	for date, b := range byDate {
		out = append(out, DatePoint{Date: date, Income: domain.NewMoney(b.income), Expense: domain.NewMoney(b.expense)})
	}
	slices.SortFunc(out, func(a, b DatePoint) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// DayBucket is one day of a month with its proportional split.
type DayBucket struct {
	Date         string       `json:"date"`
	Income       domain.Money `json:"income"`
	Expense      domain.Money `json:"expense"`
	Total        domain.Money `json:"total"`
	IncomeRatio  float64      `json:"incomeRatio"`
	ExpenseRatio float64      `json:"expenseRatio"`
}

// DailySeries buckets the month's transactions per date, ascending. Days
// without activity are omitted.
func DailySeries(txs []domain.Transaction, year int, month time.Month) []DayBucket {
	byDate := bucketByDate(txs, inMonth(year, month))

	out := make([]DayBucket, 0, len(byDate))
	for date, b := range byDate {
		out = append(out, b.day(date))
	}
	slices.SortFunc(out, func(a, b DayBucket) int { return cmp.Compare(a.Date, b.Date) })
	return out
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	DayBucket
	Day            int     `json:"day"`
	IsCurrentMonth bool    `json:"isCurrentMonth"`
	IsToday        bool    `json:"isToday"`
	TotalBar       float64 `json:"totalBar"`
}

// CalendarMonth is a Sunday-aligned grid covering a whole month.
type CalendarMonth struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	MaxTotal domain.Money    `json:"maxTotal"`
	Weeks    [][]CalendarDay `json:"weeks"`
}

// Calendar lays out the month as full weeks starting on Sunday. Cells
// outside the month are flagged and carry zero amounts. TotalBar is the
// day's total as a percentage of the busiest day in the month.
func Calendar(txs []domain.Transaction, year int, month time.Month, today string) CalendarMonth {
	days := make(map[string]DayBucket)
	maxTotal := decimal.Zero
	for _, d := range DailySeries(txs, year, month) {
		days[d.Date] = d
		if d.Total.GreaterThan(maxTotal) {
			maxTotal = d.Total.Decimal
		}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	cal := CalendarMonth{Year: year, Month: month, MaxTotal: domain.NewMoney(maxTotal)}
	var week []CalendarDay
	for d := start; !d.After(last) || len(week) > 0; d = d.AddDate(0, 0, 1) {
		key := d.Format(domain.DateLayout)
		cell := CalendarDay{
			Day:            d.Day(),
			IsCurrentMonth: d.Month() == month,
			IsToday:        key == today,
		}
		day, ok := days[key]
		if !ok || !cell.IsCurrentMonth {
			day = bucket{income: decimal.Zero, expense: decimal.Zero}.day(key)
		}
		cell.DayBucket = day
		cell.TotalBar = percent(day.Total.Decimal, maxTotal)

		week = append(week, cell)
		if len(week) == 7 {
			cal.Weeks = append(cal.Weeks, week)
			week = nil
		}
	}
	return cal
}

// MonthGroup is one (year, month) slice of the history.
type MonthGroup struct {
	Year         int                  `json:"year"`
	Month        time.Month           `json:"month"`
	Label        string               `json:"label"`
	Transactions []domain.Transaction `json:"transactions"`
}

// MonthGroups groups by the year-month of each date, newest month first,
// each group newest date first. Malformed dates are skipped.
func MonthGroups(txs []domain.Transaction) []MonthGroup {
	index := make(map[string]int)
	var groups []MonthGroup
	for _, t := range txs {
		d, err := time.Parse(domain.DateLayout, t.Date)
		if err != nil {
			continue
		}
		key := t.Date[:7]
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{
				Year:  d.Year(),
				Month: d.Month(),
				Label: fmt.Sprintf("%s %d", d.Month(), d.Year()),
			})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}

	slices.SortFunc(groups, func(a, b MonthGroup) int {
		if c := cmp.Compare(b.Year, a.Year); c != 0 {
			return c
		}
		return cmp.Compare(b.Month, a.Month)
	})
	for i := range groups {
		SortByDateDesc(groups[i].Transactions)
	}
	return groups
}

type bucket struct {
	income, expense decimal.Decimal
}

func (b bucket) day(date string) DayBucket {
	total := b.income.Add(b.expense)
	return DayBucket{
		Date:         date,
		Income:       domain.NewMoney(b.income),
		Expense:      domain.NewMoney(b.expense),
		Total:        domain.NewMoney(total),
		IncomeRatio:  percent(b.income, total),
		ExpenseRatio: percent(b.expense, total),
	}
}

func bucketByDate(txs []domain.Transaction, keep func(date string) bool) map[string]bucket {
	out := make(map[string]bucket)
	for _, t := range txs {
		if !keep(t.Date) {
			continue
		}
		b, ok := out[t.Date]
		if !ok {
			b = bucket{income: decimal.Zero, expense: decimal.Zero}
		}
		switch t.Type {
		case domain.Income:
			b.income = b.income.Add(t.Amount.Decimal)
		case domain.Expense:
			b.expense = b.expense.Add(t.Amount.Decimal)
		}
		out[t.Date] = b
	}
	return out
}

func inMonth(year int, month time.Month) func(string) bool {
	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	return func(date string) bool { return strings.HasPrefix(date, prefix) }
}

// percent returns part/whole*100, or 0 when whole is not positive.
func percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
