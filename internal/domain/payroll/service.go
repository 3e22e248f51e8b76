package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RunRecorder observes payroll runs. The metrics collector implements it.
type RunRecorder interface {
	PayrollRun(outcome string, staffCount int)
}

type Options struct {
	PayslipDir string
	Header     PayslipHeader
	Recorder   RunRecorder
	Logger     zerolog.Logger
}

type Service struct {
	store      StoreAPI
	calc       Calculator
	payslipDir string
	header     PayslipHeader
	recorder   RunRecorder
	log        zerolog.Logger
}

func NewService(store StoreAPI, calc Calculator, opts Options) *Service {
	if opts.PayslipDir == "" {
		opts.PayslipDir = "storage/payslips"
	}
	if opts.Header.Currency == "" {
		opts.Header.Currency = "KES"
	}
	return &Service{
		store:      store,
		calc:       calc,
		payslipDir: opts.PayslipDir,
		header:     opts.Header,
		recorder:   opts.Recorder,
		log:        opts.Logger.With().Str("component", "payroll").Logger(),
	}
}

func (s *Service) Calculator() Calculator {
	return s.calc
}

// Quote computes deductions for a gross salary without touching the store.
func (s *Service) Quote(gross decimal.Decimal) (DeductionResult, error) {
	return s.calc.Calculate(gross)
}

func (s *Service) CreateStaff(ctx context.Context, staff Staff) (string, error) {
	staff.StaffNo = strings.TrimSpace(staff.StaffNo)
	staff.Email = strings.ToLower(strings.TrimSpace(staff.Email))
	if staff.BaseSalary.IsNegative() {
		return "", fmt.Errorf("%w: base salary must not be negative", ErrInvalidArgument)
	}
	return s.store.CreateStaff(ctx, staff)
}

func (s *Service) ListStaff(ctx context.Context, status string, limit, offset int) ([]Staff, int, error) {
	return s.store.ListStaff(ctx, status, limit, offset)
}

// AddAllowance attaches a recurring allowance to a staff member. Negative
// amounts are allowed and act as recurring reductions of gross pay.
func (s *Service) AddAllowance(ctx context.Context, staffID, name string, amount decimal.Decimal) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: allowance name required", ErrInvalidArgument)
	}
	if _, err := s.store.GetStaff(ctx, staffID); err != nil {
		return "", err
	}
	return s.store.AddAllowance(ctx, staffID, strings.TrimSpace(name), amount)
}

func (s *Service) CreatePeriod(ctx context.Context, name string, startDate, endDate time.Time) (string, error) {
	if endDate.Before(startDate) {
		return "", fmt.Errorf("%w: period end precedes start", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		name = startDate.Format("January 2006")
	}
	return s.store.CreatePeriod(ctx, name, startDate, endDate)
}

func (s *Service) Period(ctx context.Context, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, periodID)
}

func (s *Service) ListPeriods(ctx context.Context, limit, offset int) ([]Period, int, error) {
	return s.store.ListPeriods(ctx, limit, offset)
}

// RunPeriod computes a result for every active staff member and moves the
// period to reviewed. Re-running a reviewed period replaces all of its
// results, so staff skipped or deactivated since the last run drop out.
func (s *Service) RunPeriod(ctx context.Context, periodID string) (RunSummary, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return RunSummary{}, err
	}
	if period.Status == PeriodStatusFinalized {
		return RunSummary{}, ErrPeriodFinalized
	}

	staff, err := s.store.ListActiveStaffPay(ctx)
	if err != nil {
		s.observe("failed", 0)
		return RunSummary{}, fmt.Errorf("load staff: %w", err)
	}

	summary := RunSummary{PeriodID: periodID, Warnings: map[string]int{}}
	results := make([]Result, 0, len(staff))
	for _, pay := range staff {
		result, err := s.computeResult(ctx, periodID, pay)
		if err != nil {
			if ctx.Err() != nil {
				s.observe("failed", 0)
				return RunSummary{}, ctx.Err()
			}
			s.log.Warn().Err(err).Str("period_id", periodID).Str("staff_id", pay.Staff.ID).Msg("staff skipped")
			summary.Skipped++
			summary.Warnings[WarningInvalidGross]++
			continue
		}
		for _, warning := range result.Warnings {
			summary.Warnings[warning]++
		}
		results = append(results, result)
	}

	if err := s.store.ReplaceResults(ctx, periodID, results); err != nil {
		s.observe("failed", 0)
		if errors.Is(err, ErrPeriodFinalized) || errors.Is(err, ErrPeriodNotFound) {
			return RunSummary{}, err
		}
		return RunSummary{}, fmt.Errorf("persist results: %w", err)
	}
	summary.StaffCount = len(results)
	summary.Status = PeriodStatusReviewed
	s.observe("completed", summary.StaffCount)
	s.log.Info().Str("period_id", periodID).Int("staff", summary.StaffCount).Int("skipped", summary.Skipped).Msg("payroll run completed")
	return summary, nil
}

func (s *Service) computeResult(ctx context.Context, periodID string, pay StaffPay) (Result, error) {
	gross := pay.Gross()
	deductions, err := s.calc.Calculate(gross)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		PeriodID:        periodID,
		StaffID:         pay.Staff.ID,
		StaffName:       pay.Staff.FullName(),
		Gross:           gross,
		DeductionResult: deductions,
		Currency:        s.header.Currency,
		Warnings:        []string{},
	}
	if strings.TrimSpace(pay.Staff.BankAccount) == "" {
		result.Warnings = append(result.Warnings, WarningMissingBank)
	}
	if deductions.NetSalary.IsNegative() {
		result.Warnings = append(result.Warnings, WarningNegativeNet)
	}

	previous, ok, err := s.store.PreviousNet(ctx, pay.Staff.ID, periodID)
	if err != nil {
		s.log.Warn().Err(err).Str("staff_id", pay.Staff.ID).Msg("previous net lookup failed")
	} else if ok && netVarianceExceeded(previous, deductions.NetSalary) {
		result.Warnings = append(result.Warnings, WarningNetVariance)
	}
	return result, nil
}

func netVarianceExceeded(previous, current decimal.Decimal) bool {
	if !previous.IsPositive() {
		return false
	}
	ratio := current.Sub(previous).Abs().Div(previous)
	return ratio.GreaterThan(decimal.NewFromFloat(NetVarianceThreshold))
}

// Finalize locks a reviewed period and renders a payslip per result.
func (s *Service) Finalize(ctx context.Context, periodID string) ([]Payslip, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status != PeriodStatusReviewed {
		return nil, ErrFinalizeInvalidState
	}
	results, err := s.store.ListResults(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrFinalizeNoResults
	}

	payslips := make([]Payslip, 0, len(results))
	for _, result := range results {
		payslipID, err := s.store.CreatePayslip(ctx, periodID, result.StaffID)
		if err != nil {
			return nil, fmt.Errorf("create payslip for staff %s: %w", result.StaffID, err)
		}
		path, err := RenderPayslip(s.payslipDir, s.header, period, result, payslipID)
		if err != nil {
			return nil, fmt.Errorf("render payslip %s: %w", payslipID, err)
		}
		if err := s.store.UpdatePayslipFileURL(ctx, payslipID, path); err != nil {
			return nil, err
		}
		payslips = append(payslips, Payslip{ID: payslipID, PeriodID: periodID, StaffID: result.StaffID, FileURL: path})
	}

	if err := s.store.UpdatePeriodStatus(ctx, periodID, PeriodStatusFinalized); err != nil {
		return nil, err
	}
	s.log.Info().Str("period_id", periodID).Int("payslips", len(payslips)).Msg("payroll period finalized")
	return payslips, nil
}

// Reopen returns a reviewed or finalized period to draft and discards its
// results and payslips.
func (s *Service) Reopen(ctx context.Context, periodID string) error {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != PeriodStatusReviewed && period.Status != PeriodStatusFinalized {
		return ErrReopenInvalidState
	}
	if err := s.store.DeletePayslipsForPeriod(ctx, periodID); err != nil {
		return err
	}
	if err := s.store.DeleteResultsForPeriod(ctx, periodID); err != nil {
		return err
	}
	return s.store.UpdatePeriodStatus(ctx, periodID, PeriodStatusDraft)
}

func (s *Service) Results(ctx context.Context, periodID string) ([]Result, error) {
	if _, err := s.store.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, periodID)
}

func (s *Service) Summary(ctx context.Context, periodID string) (PeriodSummary, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	results, err := s.store.ListResults(ctx, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}

	summary := PeriodSummary{PeriodID: periodID, Status: period.Status, Warnings: map[string]int{}}
	for _, result := range results {
		summary.StaffCount++
		summary.TotalGross = summary.TotalGross.Add(result.Gross)
		summary.TotalIncomeTax = summary.TotalIncomeTax.Add(result.IncomeTax)
		summary.TotalHealthLevy = summary.TotalHealthLevy.Add(result.HealthLevy)
		summary.TotalPension = summary.TotalPension.Add(result.Pension)
		summary.TotalDeductions = summary.TotalDeductions.Add(result.TotalDeductions)
		summary.TotalNet = summary.TotalNet.Add(result.NetSalary)
		for _, warning := range result.Warnings {
			summary.Warnings[warning]++
		}
	}
	return summary, nil
}

func (s *Service) Payslips(ctx context.Context, periodID string) ([]Payslip, error) {
	if _, err := s.store.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.store.ListPayslips(ctx, periodID)
}

func (s *Service) Payslip(ctx context.Context, payslipID string) (Payslip, error) {
	return s.store.GetPayslip(ctx, payslipID)
}

func (s *Service) observe(outcome string, staffCount int) {
	if s.recorder != nil {
		s.recorder.PayrollRun(outcome, staffCount)
	}
}
