package domain

import (
	"fmt"
	"time"
)

// ============================================================
// Wallet transactions & profiles (rows owned by the hosted store)
// ============================================================

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// DateLayout is the calendar date format used by the store and the API.
const DateLayout = "2006-01-02"

// Transaction is a single wallet movement. Amount is in the minor currency
// unit and never negative; Type carries the sign.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	WalletID  string          `json:"wallet_id"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	Category  string          `json:"category"`
	Note      string          `json:"note,omitempty"`
	Date      string          `json:"date"` // YYYY-MM-DD
	CreatedAt time.Time       `json:"created_at"`
}

// Profile is the per-user record. A non-empty WhatsAppNumber is the
// only opt-in signal for scheduled reports.
type Profile struct {
	ID             string  `json:"id"`
	WhatsAppNumber *string `json:"whatsapp_number"`
	FullName       *string `json:"full_name"`
}

// Phone returns the registered WhatsApp number or "".
func (p Profile) Phone() string {
	if p.WhatsAppNumber == nil {
		return ""
	}
	return *p.WhatsAppNumber
}

// DisplayName returns the full name, falling back to a neutral greeting target.
func (p Profile) DisplayName() string {
	if p.FullName == nil || *p.FullName == "" {
		return "Kak"
	}
	return *p.FullName
}

// DateWindow is an inclusive calendar date range in a fixed location.
type DateWindow struct {
	Start time.Time // midnight of the first day
	End   time.Time // midnight of the last day (inclusive)
}

// StartDate returns the first day as YYYY-MM-DD.
func (w DateWindow) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate returns the last day as YYYY-MM-DD.
func (w DateWindow) EndDate() string { return w.End.Format(DateLayout) }

// Contains reports whether a YYYY-MM-DD date lies inside the window.
// String comparison is valid because the layout is zero-padded.
func (w DateWindow) Contains(date string) bool {
	if len(date) > len(DateLayout) {
		date = date[:len(DateLayout)]
	}
	return date >= w.StartDate() && date <= w.EndDate()
}

// Days returns the number of calendar days in the window.
func (w DateWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24+0.5) + 1
}

func (w DateWindow) String() string {
	return fmt.Sprintf("%s..%s", w.StartDate(), w.EndDate())
}
