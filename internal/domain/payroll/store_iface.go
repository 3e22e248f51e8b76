package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type StoreAPI interface {
	CreateStaff(ctx context.Context, staff Staff) (string, error)
	GetStaff(ctx context.Context, staffID string) (Staff, error)
	ListStaff(ctx context.Context, status string, limit, offset int) ([]Staff, int, error)
	AddAllowance(ctx context.Context, staffID, name string, amount decimal.Decimal) (string, error)
	ListActiveStaffPay(ctx context.Context) ([]StaffPay, error)

	CreatePeriod(ctx context.Context, name string, startDate, endDate time.Time) (string, error)
	GetPeriod(ctx context.Context, periodID string) (Period, error)
	ListPeriods(ctx context.Context, limit, offset int) ([]Period, int, error)
	UpdatePeriodStatus(ctx context.Context, periodID, status string) error

	// PreviousNet returns the staff member's net pay from the latest period
	// that starts before periodID.
	PreviousNet(ctx context.Context, staffID, periodID string) (decimal.Decimal, bool, error)
	// ReplaceResults atomically swaps the period's results for results and
	// marks it reviewed. It fails with ErrPeriodFinalized if the period was
	// finalized in the meantime.
	ReplaceResults(ctx context.Context, periodID string, results []Result) error
	ListResults(ctx context.Context, periodID string) ([]Result, error)
	DeleteResultsForPeriod(ctx context.Context, periodID string) error

	CreatePayslip(ctx context.Context, periodID, staffID string) (string, error)
	UpdatePayslipFileURL(ctx context.Context, payslipID, fileURL string) error
	GetPayslip(ctx context.Context, payslipID string) (Payslip, error)
	ListPayslips(ctx context.Context, periodID string) ([]Payslip, error)
	DeletePayslipsForPeriod(ctx context.Context, periodID string) error
}
