package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

func mk(id string, typ domain.TransactionType, category string, amount float64, date string) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		AccountID: "A",
		Type:      typ,
		Category:  category,
		Amount:    domain.MoneyFromFloat(amount),
		Date:      date,
	}
}

func money(f float64) domain.Money { return domain.MoneyFromFloat(f) }

func assertMoney(t *testing.T, want float64, got domain.Money) {
	t.Helper()
	assert.True(t, money(want).Equal(got.Decimal), "want %v, got %s", want, got.String())
}

var sample = []domain.Transaction{
	mk("1", domain.Income, "Salary", 5000, "2024-05-01"),
	mk("2", domain.Expense, "Housing & Rent", 1200, "2024-05-01"),
	mk("3", domain.Expense, "Food & Groceries", 85.5, "2024-05-03"),
	mk("4", domain.Expense, "Food & Groceries", 32.5, "2024-05-12"),
	mk("5", domain.Income, "Gift", 50, "2024-04-30"),
	mk("6", domain.Expense, "Entertainment", 25, "2023-12-31"),
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{"today": RangeToday, "thisMonth": RangeMonth, "month": RangeMonth, "": RangeAll, "ALL": RangeAll} {
		got, err := ParseRange(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRange("week")
	var val *domain.ErrValidation
	assert.ErrorAs(t, err, &val)
}

func TestFilterByRange_AllIsIdentity(t *testing.T) {
	now := time.Date(2024, 5, 12, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, sample, FilterByRange(sample, RangeAll, now))
}

func TestFilterByRange_TodayExact(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	got := FilterByRange(sample, RangeToday, now)

	var ids []string
	for _, tx := range got {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestFilterByRange_UsesLocalCalendar(t *testing.T) {
	// 2024-05-01 02:00 in UTC+3 is still 2024-04-30 in UTC.
	loc := time.FixedZone("EAT", 3*60*60)
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, loc)

	got := FilterByRange(sample, RangeToday, now)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-01", got[0].Date)

	month := FilterByRange(sample, RangeMonth, now)
	assert.Len(t, month, 4)
}

func TestTotals_BalanceIdentity(t *testing.T) {
	s := Totals(sample)
	assertMoney(t, 5050, s.Income)
	assertMoney(t, 1343, s.Expense)
	assert.True(t, s.Balance.Equal(s.Income.Minus(s.Expense).Decimal))

	empty := Totals(nil)
	assert.True(t, empty.Balance.IsZero())
}

func TestTotals_DecimalExact(t *testing.T) {
	txs := []domain.Transaction{
		mk("a", domain.Expense, "Food & Groceries", 0.1, "2024-05-01"),
		mk("b", domain.Expense, "Food & Groceries", 0.2, "2024-05-01"),
	}
	assert.Equal(t, "0.3", Totals(txs).Expense.String())
}

func TestCategoryTotals(t *testing.T) {
	txs := []domain.Transaction{
		mk("1", domain.Expense, "Food", 10, "2024-05-01"),
		mk("2", domain.Expense, "Food", 5, "2024-05-02"),
		mk("3", domain.Income, "Salary", 100, "2024-05-02"),
	}

	got := CategoryTotals(txs)
	require.Len(t, got, 1)
	assert.Equal(t, "Food", got[0].Category)
	assertMoney(t, 15, got[0].Total)
}

func TestCategoryTotals_OrderedDescThenName(t *testing.T) {
	txs := []domain.Transaction{
		mk("1", domain.Expense, "Shopping", 20, "2024-05-01"),
		mk("2", domain.Expense, "Entertainment", 20, "2024-05-01"),
		mk("3", domain.Expense, "Housing & Rent", 900, "2024-05-01"),
	}

	got := CategoryTotals(txs)
	require.Len(t, got, 3)
	assert.Equal(t, "Housing & Rent", got[0].Category)
	assert.Equal(t, "Entertainment", got[1].Category)
	assert.Equal(t, "Shopping", got[2].Category)
}

func TestDailySeries(t *testing.T) {
	got := DailySeries(sample, 2024, time.May)
	require.Len(t, got, 3)

	assert.Equal(t, "2024-05-01", got[0].Date)
	assertMoney(t, 5000, got[0].Income)
	assertMoney(t, 1200, got[0].Expense)
	assert.InDelta(t, 5000.0/6200*100, got[0].IncomeRatio, 1e-9)
	assert.InDelta(t, 100-got[0].IncomeRatio, got[0].ExpenseRatio, 1e-9)

	assert.Equal(t, "2024-05-03", got[1].Date)
	assert.Equal(t, float64(0), got[1].IncomeRatio)
	assert.Equal(t, float64(100), got[1].ExpenseRatio)
}

func TestDateSeries_Ascending(t *testing.T) {
	got := DateSeries(sample)
	require.Len(t, got, 5)
	assert.Equal(t, "2023-12-31", got[0].Date)
	assert.Equal(t, "2024-05-12", got[4].Date)
}

func TestCalendar_Grid(t *testing.T) {
	// May 2024 starts on a Wednesday and ends on a Friday.
	cal := Calendar(sample, 2024, time.May, "2024-05-12")

	require.Len(t, cal.Weeks, 5)
	for _, w := range cal.Weeks {
		assert.Len(t, w, 7)
	}

	first := cal.Weeks[0]
	assert.Equal(t, 28, first[0].Day)
	assert.False(t, first[0].IsCurrentMonth)
	assert.True(t, first[0].Total.IsZero())
	assert.Equal(t, 1, first[3].Day)
	assert.True(t, first[3].IsCurrentMonth)
	assert.Equal(t, float64(100), first[3].TotalBar)

	// 2024-04-30 has income but sits outside the month.
	assert.Equal(t, 30, first[2].Day)
	assert.True(t, first[2].Income.IsZero())

	var today *CalendarDay
	for wi := range cal.Weeks {
		for di := range cal.Weeks[wi] {
			if cal.Weeks[wi][di].IsToday {
				today = &cal.Weeks[wi][di]
			}
		}
	}
	require.NotNil(t, today)
	assert.Equal(t, 12, today.Day)
	assert.InDelta(t, 32.5/6200*100, today.TotalBar, 1e-9)
}

func TestCalendar_CellsMatchDailySeries(t *testing.T) {
	series := DailySeries(sample, 2024, time.May)
	require.NotEmpty(t, series)
	cal := Calendar(sample, 2024, time.May, "")

	cells := make(map[string]DayBucket)
	for _, w := range cal.Weeks {
		for _, d := range w {
			if d.IsCurrentMonth && !d.Total.IsZero() {
				cells[d.Date] = d.DayBucket
			}
		}
	}
	require.Len(t, cells, len(series))
	for _, b := range series {
		assert.Equal(t, b, cells[b.Date], b.Date)
	}
}

func TestCalendar_EmptyMonth(t *testing.T) {
	cal := Calendar(nil, 2024, time.February, "")
	require.NotEmpty(t, cal.Weeks)
	for _, w := range cal.Weeks {
		for _, d := range w {
			assert.Equal(t, float64(0), d.TotalBar)
			assert.Equal(t, float64(0), d.IncomeRatio)
		}
	}
}

func TestMonthGroups(t *testing.T) {
	txs := append([]domain.Transaction{mk("bad", domain.Expense, "Other", 1, "not-a-date")}, sample...)
	groups := MonthGroups(txs)

	require.Len(t, groups, 3)
	assert.Equal(t, "May 2024", groups[0].Label)
	assert.Equal(t, "April 2024", groups[1].Label)
	assert.Equal(t, "December 2023", groups[2].Label)

	may := groups[0].Transactions
	require.Len(t, may, 4)
	assert.Equal(t, "2024-05-12", may[0].Date)
	assert.Equal(t, "2024-05-01", may[3].Date)
}

func TestForAccountAndRecent(t *testing.T) {
	txs := append([]domain.Transaction{}, sample...)
	txs[0].AccountID = "B"

	got := ForAccount(txs, "A")
	require.Len(t, got, 5)
	assert.Equal(t, "2024-05-12", got[0].Date)
	assert.Equal(t, "2023-12-31", got[4].Date)

	assert.Len(t, Recent(got, 3), 3)
	assert.Len(t, Recent(got, 10), 5)
	assert.Empty(t, Recent(got, -1))
}

func TestPurity(t *testing.T) {
	in := append([]domain.Transaction{}, sample...)
	_ = MonthGroups(in)
	_ = ForAccount(in, "A")
	_ = CategoryTotals(in)
	assert.Equal(t, sample, in)
}
