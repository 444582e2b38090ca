package service

import (
	"sort"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Report aggregation: pure functions over fetched rows
// ============================================================

const (
	weeklyTopCategories  = 5
	monthlyTopCategories = 3

	// uncategorized groups rows whose category is empty.
	uncategorized = "Lainnya"
)

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian month name (1-12).
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// totals is the shared pass over the rows.
type totals struct {
	income, expense int64
	count           int
	incomeByCat     map[string]*domain.CategoryTotal
	expenseByCat    map[string]*domain.CategoryTotal
}

func aggregate(window domain.DateWindow, txns []domain.Transaction) totals {
	t := totals{
		incomeByCat:  make(map[string]*domain.CategoryTotal),
		expenseByCat: make(map[string]*domain.CategoryTotal),
	}
	for _, tx := range txns {
		if !window.Contains(tx.Date) {
			continue
		}
		t.count++

		cat := tx.Category
		if cat == "" {
			cat = uncategorized
		}

		var groups map[string]*domain.CategoryTotal
		switch tx.Type {
		case domain.TransactionIncome:
			t.income += tx.Amount
			groups = t.incomeByCat
		case domain.TransactionExpense:
			t.expense += tx.Amount
			groups = t.expenseByCat
		default:
			continue
		}

		g, ok := groups[cat]
		if !ok {
			g = &domain.CategoryTotal{Category: cat}
			groups[cat] = g
		}
		g.Amount += tx.Amount
		g.Count++
	}
	return t
}

// RankCategories sorts groups by amount descending, ties by category name
// ascending, and keeps at most limit entries. The result is never nil.
func RankCategories(groups map[string]*domain.CategoryTotal, limit int) []domain.CategoryTotal {
	ranked := make([]domain.CategoryTotal, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, *g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].Category < ranked[j].Category
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// BuildWeeklyReport aggregates the rows that fall inside window.
func BuildWeeklyReport(window domain.DateWindow, txns []domain.Transaction) *domain.WeeklyReport {
	t := aggregate(window, txns)
	return &domain.WeeklyReport{
		WeekStart:        window.StartDate(),
		WeekEnd:          window.EndDate(),
		TotalIncome:      t.income,
		TotalExpense:     t.expense,
		NetAmount:        t.income - t.expense,
		TransactionCount: t.count,
		TopCategories:    RankCategories(t.expenseByCat, weeklyTopCategories),
	}
}

// BuildMonthlyReport aggregates a calendar month. Daily averages divide by
// the number of days in the month, not by the days elapsed.
func BuildMonthlyReport(window domain.DateWindow, txns []domain.Transaction) *domain.MonthlyReport {
	t := aggregate(window, txns)
	year, month := window.Start.Year(), window.Start.Month()
	days := DaysInMonth(year, month)

	return &domain.MonthlyReport{
		WeeklyReport: domain.WeeklyReport{
			WeekStart:        window.StartDate(),
			WeekEnd:          window.EndDate(),
			TotalIncome:      t.income,
			TotalExpense:     t.expense,
			NetAmount:        t.income - t.expense,
			TransactionCount: t.count,
			TopCategories:    RankCategories(t.expenseByCat, weeklyTopCategories),
		},
		Month:                int(month),
		Year:                 year,
		MonthName:            MonthName(int(month)),
		DaysInMonth:          days,
		TopIncomeCategories:  RankCategories(t.incomeByCat, monthlyTopCategories),
		TopExpenseCategories: RankCategories(t.expenseByCat, monthlyTopCategories),
		DailyAverage: domain.DailyAverage{
			Income:  perDay(t.income, days),
			Expense: perDay(t.expense, days),
		},
	}
}

// perDay divides and rounds half away from zero to a whole minor unit.
func perDay(total int64, days int) int64 {
	if days < 1 {
		days = 1
	}
	return decimal.NewFromInt(total).
		Div(decimal.NewFromInt(int64(days))).
		Round(0).
		IntPart()
}
