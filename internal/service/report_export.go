package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// ============================================================
// Report export: CSV and PDF renderings of a built report
// ============================================================

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ParseExportFormat accepts "csv" or "pdf"; empty means pdf.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch s {
	case "", string(ExportPDF):
		return ExportPDF, nil
	case string(ExportCSV):
		return ExportCSV, nil
	}
	return "", &domain.ErrValidation{Field: "format", Message: "must be pdf or csv"}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/pdf"
}

// FileName returns the attachment name, e.g. "laporan-weekly-2024-06-03_2024-06-09.csv".
func (r *Report) FileName(f ExportFormat) string {
	t := r.Totals()
	return fmt.Sprintf("laporan-%s-%s_%s.%s", r.Kind, t.WeekStart, t.WeekEnd, f)
}

// Export renders the report in the given format.
func (r *Report) Export(w io.Writer, name string, f ExportFormat) error {
	if f == ExportCSV {
		return r.WriteCSV(w)
	}
	return r.WritePDF(w, name)
}

// sharePct returns part/total as a percentage with one decimal.
func sharePct(part, total int64) string {
	if total == 0 {
		return "0.0"
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		StringFixed(1)
}

// WriteCSV writes one row per figure: section,label,amount,count,share_pct.
func (r *Report) WriteCSV(w io.Writer) error {
	t := r.Totals()
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"section", "label", "amount", "count", "share_pct"},
		{"period", "start", t.WeekStart, "", ""},
		{"period", "end", t.WeekEnd, "", ""},
		{"summary", "total_income", strconv.FormatInt(t.TotalIncome, 10), "", ""},
		{"summary", "total_expense", strconv.FormatInt(t.TotalExpense, 10), "", ""},
		{"summary", "net_amount", strconv.FormatInt(t.NetAmount, 10), "", ""},
		{"summary", "transactions", "", strconv.Itoa(t.TransactionCount), ""},
	}

	categoryRows := func(section string, cats []domain.CategoryTotal, total int64) {
		for _, c := range cats {
			rows = append(rows, []string{
				section,
				c.Category,
				strconv.FormatInt(c.Amount, 10),
				strconv.Itoa(c.Count),
				sharePct(c.Amount, total),
			})
		}
	}

	if m := r.Monthly; m != nil {
		rows = append(rows,
			[]string{"daily_average", "income", strconv.FormatInt(m.DailyAverage.Income, 10), "", ""},
			[]string{"daily_average", "expense", strconv.FormatInt(m.DailyAverage.Expense, 10), "", ""},
		)
		categoryRows("top_income", m.TopIncomeCategories, m.TotalIncome)
		categoryRows("top_expense", m.TopExpenseCategories, m.TotalExpense)
	} else {
		categoryRows("top_expense", t.TopCategories, t.TotalExpense)
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WritePDF renders a one-page A4 summary. Core fonts only cover Latin-1,
// so the PDF carries no emoji.
func (r *Report) WritePDF(w io.Writer, name string) error {
	t := r.Totals()

	title := "Laporan Keuangan Mingguan"
	if r.Monthly != nil {
		title = fmt.Sprintf("Laporan Keuangan Bulanan - %s %d", r.Monthly.MonthName, r.Monthly.Year)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("") // UTF-8 to cp1252

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Nama: "+tr(name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Periode: %s - %s", FormatDate(t.WeekStart), FormatDate(t.WeekEnd)))
	pdf.Ln(10)

	sumW := []float64{61, 61, 60}
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(sumW[0], 10, "Pemasukan", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Pengeluaran", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Selisih", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, FormatRupiah(t.TotalIncome), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, FormatRupiah(t.TotalExpense), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, FormatRupiah(t.NetAmount), "1", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Jumlah transaksi: %d", t.TransactionCount))
	pdf.Ln(8)

	if m := r.Monthly; m != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "Rata-rata Harian")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "Pemasukan: "+FormatRupiah(m.DailyAverage.Income))
		pdf.Ln(5)
		pdf.Cell(0, 6, "Pengeluaran: "+FormatRupiah(m.DailyAverage.Expense))
		pdf.Ln(8)

		pdfCategoryTable(pdf, tr, "Sumber Pemasukan Teratas", m.TopIncomeCategories, m.TotalIncome)
		pdfCategoryTable(pdf, tr, "Pengeluaran Terbesar", m.TopExpenseCategories, m.TotalExpense)
	} else {
		pdfCategoryTable(pdf, tr, "Pengeluaran Terbesar", t.TopCategories, t.TotalExpense)
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Dibuat oleh Wallet Reports - "+time.Now().Format(time.RFC3339), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func pdfCategoryTable(pdf *gofpdf.Fpdf, tr func(string) string, title string, cats []domain.CategoryTotal, total int64) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 20, 20)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)

	colW := []float64{80, 50, 22, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(colW[0], 8, "KATEGORI", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[1], 8, "JUMLAH", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[2], 8, "TRX", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[3], 8, "PORSI", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	if len(cats) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 8, "Belum ada transaksi", "1", 1, "C", false, 0, "")
		pdf.Ln(4)
		return
	}
	for _, c := range cats {
		pdf.CellFormat(colW[0], 8, tr(c.Category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 8, FormatRupiah(c.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 8, strconv.Itoa(c.Count), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[3], 8, sharePct(c.Amount, total)+"%", "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}
