package domain

// ============================================================
// Derived reports (computed per job run, never persisted)
// ============================================================

// ReportKind selects the weekly or monthly pipeline.
type ReportKind string

const (
	ReportWeekly  ReportKind = "weekly"
	ReportMonthly ReportKind = "monthly"
)

// ParseReportKind validates a kind coming from a URL or action payload.
func ParseReportKind(s string) (ReportKind, error) {
	switch ReportKind(s) {
	case ReportWeekly, ReportMonthly:
		return ReportKind(s), nil
	}
	return "", &ErrValidation{Field: "kind", Message: "must be 'weekly' or 'monthly'"}
}

// CategoryTotal is one row of a category ranking.
type CategoryTotal struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Count    int    `json:"count"`
}

// WeeklyReport summarizes one user's week.
type WeeklyReport struct {
	WeekStart        string          `json:"weekStart"`
	WeekEnd          string          `json:"weekEnd"`
	TotalIncome      int64           `json:"totalIncome"`
	TotalExpense     int64           `json:"totalExpense"`
	NetAmount        int64           `json:"netAmount"`
	TransactionCount int             `json:"transactionCount"`
	TopCategories    []CategoryTotal `json:"topCategories"`
}

// DailyAverage holds per-day averages over a calendar month.
type DailyAverage struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// MonthlyReport summarizes one user's calendar month.
type MonthlyReport struct {
	WeeklyReport
	Month                int             `json:"month"`
	Year                 int             `json:"year"`
	MonthName            string          `json:"monthName"`
	DaysInMonth          int             `json:"daysInMonth"`
	TopIncomeCategories  []CategoryTotal `json:"topIncomeCategories"`
	TopExpenseCategories []CategoryTotal `json:"topExpenseCategories"`
	DailyAverage         DailyAverage    `json:"dailyAverage"`
}

// TransactionNotice is the payload of the "transaction" WhatsApp template.
type TransactionNotice struct {
	Type       TransactionType `json:"type"`
	Amount     int64           `json:"amount"`
	Category   string          `json:"category"`
	Note       string          `json:"note,omitempty"`
	Date       string          `json:"date"`
	WalletName string          `json:"walletName,omitempty"`
}

// DailySummary is the payload of the "daily_report" WhatsApp template.
type DailySummary struct {
	Date             string `json:"date"`
	TotalIncome      int64  `json:"totalIncome"`
	TotalExpense     int64  `json:"totalExpense"`
	TransactionCount int    `json:"transactionCount"`
}
