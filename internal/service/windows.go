package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
)

// ============================================================
// Report windows
// ============================================================

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeeklyWindow returns Monday..Sunday ending on the most recent Sunday
// relative to now (now itself when it is a Sunday). now must already be
// in the report timezone.
func WeeklyWindow(now time.Time) domain.DateWindow {
	today := midnight(now)
	lastSunday := today.AddDate(0, 0, -int(today.Weekday()))
	return domain.DateWindow{
		Start: lastSunday.AddDate(0, 0, -6),
		End:   lastSunday,
	}
}

// MonthlyWindow returns the previous full calendar month relative to now.
func MonthlyWindow(now time.Time) domain.DateWindow {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := firstOfThisMonth.AddDate(0, -1, 0)
	return domain.DateWindow{
		Start: start,
		End:   firstOfThisMonth.AddDate(0, 0, -1),
	}
}

// WindowFor dispatches on kind.
func WindowFor(kind domain.ReportKind, now time.Time) domain.DateWindow {
	if kind == domain.ReportMonthly {
		return MonthlyWindow(now)
	}
	return WeeklyWindow(now)
}

// DaysInMonth returns the last day number of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// PeriodKey identifies a report period for delivery de-duplication,
// e.g. "weekly:2024-W23" or "monthly:2024-05".
func PeriodKey(kind domain.ReportKind, window domain.DateWindow) string {
	if kind == domain.ReportMonthly {
		return fmt.Sprintf("monthly:%04d-%02d", window.Start.Year(), int(window.Start.Month()))
	}
	year, week := window.End.ISOWeek()
	return fmt.Sprintf("weekly:%04d-W%02d", year, week)
}
