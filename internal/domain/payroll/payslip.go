package payroll

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// PayslipHeader carries the school-level details printed on every payslip.
type PayslipHeader struct {
	SchoolName string
	Currency   string
}

// RenderPayslip writes a single-page PDF for result into dir and returns its path.
func RenderPayslip(dir string, header PayslipHeader, period Period, result Result, payslipID string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filePath := filepath.Join(dir, payslipID+".pdf")
	shown := result.DeductionResult.Rounded(result.Gross)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, header.SchoolName)
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Payslip")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Staff: %s", result.StaffName))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s (%s to %s)", period.Name,
		period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")))
	pdf.Ln(10)

	line := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(80, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, amount.StringFixed(2)+" "+header.Currency, "", 1, "R", false, 0, "")
	}
	line("Gross pay", result.Gross.Round(2))
	line("Income tax (PAYE)", shown.IncomeTax)
	line("Health insurance levy", shown.HealthLevy)
	line("Pension contribution", shown.Pension)
	pdf.SetFont("Helvetica", "B", 11)
	line("Total deductions", shown.TotalDeductions)
	line("Net pay", shown.NetSalary)

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", err
	}
	return filePath, nil
}
