package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"github.com/dustin/go-humanize"
)

// ============================================================
// WhatsApp message templates (pure, deterministic)
// ============================================================

const messageFooter = "_Dikirim otomatis oleh Wallet Reports_"

// FormatRupiah renders a minor-unit amount as "Rp 1.500.000".
func FormatRupiah(amount int64) string {
	if amount < 0 {
		return "-Rp " + humanize.FormatInteger("#.###,", int(-amount))
	}
	return "Rp " + humanize.FormatInteger("#.###,", int(amount))
}

// FormatDate renders YYYY-MM-DD as "3 Juni 2024"; unparsable input is returned as is.
func FormatDate(date string) string {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d %s %d", t.Day(), MonthName(int(t.Month())), t.Year())
}

func netLine(net int64) string {
	if net >= 0 {
		return "📈 Surplus: " + FormatRupiah(net)
	}
	return "📉 Defisit: " + FormatRupiah(-net)
}

func closingLine(net int64, period string) string {
	if net >= 0 {
		return fmt.Sprintf("🎉 Kerja bagus! Keuanganmu %s ini sehat, pertahankan ya 💪", period)
	}
	return fmt.Sprintf("💡 Pengeluaran %s ini melebihi pemasukan. Yuk, lebih bijak di %s berikutnya 🙏", period, period)
}

func writeCategories(b *strings.Builder, title string, cats []domain.CategoryTotal) {
	b.WriteString(title)
	b.WriteString("\n")
	if len(cats) == 0 {
		b.WriteString("- Belum ada transaksi\n")
		return
	}
	for i, c := range cats {
		fmt.Fprintf(b, "%d. %s: %s (%dx)\n", i+1, c.Category, FormatRupiah(c.Amount), c.Count)
	}
}

// FormatWeeklyReport renders the weekly WhatsApp message.
func FormatWeeklyReport(name string, r *domain.WeeklyReport) string {
	var b strings.Builder

	b.WriteString("📊 *Laporan Keuangan Mingguan*\n")
	fmt.Fprintf(&b, "Halo %s! Berikut ringkasan keuanganmu minggu ini.\n", name)
	fmt.Fprintf(&b, "📅 Periode: %s - %s\n\n", FormatDate(r.WeekStart), FormatDate(r.WeekEnd))

	fmt.Fprintf(&b, "💰 Pemasukan: %s\n", FormatRupiah(r.TotalIncome))
	fmt.Fprintf(&b, "💸 Pengeluaran: %s\n", FormatRupiah(r.TotalExpense))
	b.WriteString(netLine(r.NetAmount) + "\n")
	fmt.Fprintf(&b, "🧾 Jumlah transaksi: %d\n\n", r.TransactionCount)

	writeCategories(&b, "🏷️ *Pengeluaran Terbesar:*", r.TopCategories)
	b.WriteString("\n")

	b.WriteString(closingLine(r.NetAmount, "minggu") + "\n\n")
	b.WriteString(messageFooter)
	return b.String()
}

// FormatMonthlyReport renders the monthly WhatsApp message.
func FormatMonthlyReport(name string, r *domain.MonthlyReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *Laporan Keuangan Bulanan - %s %d*\n", r.MonthName, r.Year)
	fmt.Fprintf(&b, "Halo %s! Berikut ringkasan keuanganmu bulan lalu.\n", name)
	fmt.Fprintf(&b, "📅 Periode: %s - %s\n\n", FormatDate(r.WeekStart), FormatDate(r.WeekEnd))

	fmt.Fprintf(&b, "💰 Pemasukan: %s\n", FormatRupiah(r.TotalIncome))
	fmt.Fprintf(&b, "💸 Pengeluaran: %s\n", FormatRupiah(r.TotalExpense))
	b.WriteString(netLine(r.NetAmount) + "\n")
	fmt.Fprintf(&b, "🧾 Jumlah transaksi: %d\n\n", r.TransactionCount)

	b.WriteString("📆 *Rata-rata Harian:*\n")
	fmt.Fprintf(&b, "- Pemasukan: %s\n", FormatRupiah(r.DailyAverage.Income))
	fmt.Fprintf(&b, "- Pengeluaran: %s\n\n", FormatRupiah(r.DailyAverage.Expense))

	writeCategories(&b, "💰 *Sumber Pemasukan Teratas:*", r.TopIncomeCategories)
	b.WriteString("\n")
	writeCategories(&b, "💸 *Pengeluaran Terbesar:*", r.TopExpenseCategories)
	b.WriteString("\n")

	b.WriteString(closingLine(r.NetAmount, "bulan") + "\n\n")
	b.WriteString(messageFooter)
	return b.String()
}

// FormatTransactionNotice renders the single-transaction confirmation.
func FormatTransactionNotice(n domain.TransactionNotice) string {
	var b strings.Builder

	b.WriteString("✅ *Transaksi Tercatat*\n\n")
	if n.Type == domain.TransactionIncome {
		fmt.Fprintf(&b, "💰 Pemasukan: %s\n", FormatRupiah(n.Amount))
	} else {
		fmt.Fprintf(&b, "💸 Pengeluaran: %s\n", FormatRupiah(n.Amount))
	}
	category := n.Category
	if category == "" {
		category = uncategorized
	}
	fmt.Fprintf(&b, "🏷️ Kategori: %s\n", category)
	if n.WalletName != "" {
		fmt.Fprintf(&b, "👛 Dompet: %s\n", n.WalletName)
	}
	if n.Note != "" {
		fmt.Fprintf(&b, "📝 Catatan: %s\n", n.Note)
	}
	fmt.Fprintf(&b, "📅 Tanggal: %s\n\n", FormatDate(n.Date))
	b.WriteString(messageFooter)
	return b.String()
}

// FormatDailyReport renders the end-of-day summary.
func FormatDailyReport(s domain.DailySummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📆 *Laporan Harian - %s*\n\n", FormatDate(s.Date))
	fmt.Fprintf(&b, "💰 Pemasukan: %s\n", FormatRupiah(s.TotalIncome))
	fmt.Fprintf(&b, "💸 Pengeluaran: %s\n", FormatRupiah(s.TotalExpense))
	b.WriteString(netLine(s.TotalIncome-s.TotalExpense) + "\n")
	fmt.Fprintf(&b, "🧾 Jumlah transaksi: %d\n\n", s.TransactionCount)
	b.WriteString(messageFooter)
	return b.String()
}
