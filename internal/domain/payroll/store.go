package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)

func (s *Store) CreateStaff(ctx context.Context, staff Staff) (string, error) {
	if staff.Status == "" {
		staff.Status = StaffStatusActive
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO staff (staff_no, first_name, last_name, email, role, base_salary, bank_account, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    RETURNING id
  `, staff.StaffNo, staff.FirstName, staff.LastName, staff.Email, staff.Role, staff.BaseSalary, nullIfEmpty(staff.BankAccount), staff.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetStaff(ctx context.Context, staffID string) (Staff, error) {
	var staff Staff
	err := s.DB.QueryRow(ctx, `
    SELECT id, staff_no, first_name, last_name, email, role, base_salary, COALESCE(bank_account, ''), status, created_at
    FROM staff
    WHERE id = $1
  `, staffID).Scan(&staff.ID, &staff.StaffNo, &staff.FirstName, &staff.LastName, &staff.Email, &staff.Role,
		&staff.BaseSalary, &staff.BankAccount, &staff.Status, &staff.CreatedAt)
	if notFound(err) {
		return Staff{}, ErrStaffNotFound
	}
	if err != nil {
		return Staff{}, err
	}
	return staff, nil
}

func (s *Store) ListStaff(ctx context.Context, status string, limit, offset int) ([]Staff, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM staff WHERE ($1 = '' OR status = $1)", status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, staff_no, first_name, last_name, email, role, base_salary, COALESCE(bank_account, ''), status, created_at
    FROM staff
    WHERE ($1 = '' OR status = $1)
    ORDER BY last_name, first_name
    LIMIT $2 OFFSET $3
  `, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var staff Staff
		if err := rows.Scan(&staff.ID, &staff.StaffNo, &staff.FirstName, &staff.LastName, &staff.Email, &staff.Role,
			&staff.BaseSalary, &staff.BankAccount, &staff.Status, &staff.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, staff)
	}
	return out, total, rows.Err()
}

func (s *Store) AddAllowance(ctx context.Context, staffID, name string, amount decimal.Decimal) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO staff_allowances (staff_id, name, amount)
    VALUES ($1,$2,$3)
    RETURNING id
  `, staffID, name, amount).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListActiveStaffPay(ctx context.Context) ([]StaffPay, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT s.id, s.staff_no, s.first_name, s.last_name, s.email, s.role, s.base_salary,
           COALESCE(s.bank_account, ''), s.status, s.created_at,
           COALESCE(array_agg(a.amount::text) FILTER (WHERE a.id IS NOT NULL), '{}')
    FROM staff s
    LEFT JOIN staff_allowances a ON a.staff_id = s.id
    WHERE s.status = $1
    GROUP BY s.id
    ORDER BY s.staff_no
  `, StaffStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StaffPay
	for rows.Next() {
		var pay StaffPay
		var allowances []string
		staff := &pay.Staff
		if err := rows.Scan(&staff.ID, &staff.StaffNo, &staff.FirstName, &staff.LastName, &staff.Email, &staff.Role,
			&staff.BaseSalary, &staff.BankAccount, &staff.Status, &staff.CreatedAt, &allowances); err != nil {
			return nil, err
		}
		for _, raw := range allowances {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("allowance for staff %s: %w", staff.ID, err)
			}
			pay.Allowances = append(pay.Allowances, amount)
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

func (s *Store) CreatePeriod(ctx context.Context, name string, startDate, endDate time.Time) (string, error) {
	var id string
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (name, start_date, end_date, status)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, name, startDate, endDate, PeriodStatusDraft).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (Period, error) {
	var period Period
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, start_date, end_date, status
    FROM payroll_periods
    WHERE id = $1
  `, periodID).Scan(&period.ID, &period.Name, &period.StartDate, &period.EndDate, &period.Status)
	if notFound(err) {
		return Period{}, ErrPeriodNotFound
	}
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

func (s *Store) ListPeriods(ctx context.Context, limit, offset int) ([]Period, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM payroll_periods").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id, name, start_date, end_date, status
    FROM payroll_periods
    ORDER BY start_date DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var period Period
		if err := rows.Scan(&period.ID, &period.Name, &period.StartDate, &period.EndDate, &period.Status); err != nil {
			return nil, 0, err
		}
		periods = append(periods, period)
	}
	return periods, total, rows.Err()
}

func (s *Store) UpdatePeriodStatus(ctx context.Context, periodID, status string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_periods
    SET status = $1,
        finalized_at = CASE WHEN $1 = 'finalized' THEN now() ELSE NULL END
    WHERE id = $2
  `, status, periodID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (s *Store) PreviousNet(ctx context.Context, staffID, periodID string) (decimal.Decimal, bool, error) {
	var net decimal.Decimal
	err := s.DB.QueryRow(ctx, `
    SELECT r.net_salary
    FROM payroll_results r
    JOIN payroll_periods p ON p.id = r.period_id
    WHERE r.staff_id = $1
      AND p.start_date < (SELECT start_date FROM payroll_periods WHERE id = $2)
    ORDER BY p.start_date DESC
    LIMIT 1
  `, staffID, periodID).Scan(&net)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return net, true, nil
}

func (s *Store) ReplaceResults(ctx context.Context, periodID string, results []Result) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		// The row lock taken here serializes the run against a concurrent finalize.
		tag, err := tx.Exec(ctx, `
      UPDATE payroll_periods
      SET status = $1, finalized_at = NULL
      WHERE id = $2 AND status <> $3
    `, PeriodStatusReviewed, periodID, PeriodStatusFinalized)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrPeriodFinalized
		}
		if _, err := tx.Exec(ctx, "DELETE FROM payroll_results WHERE period_id = $1", periodID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, result := range results {
			warningsJSON, err := json.Marshal(result.Warnings)
			if err != nil {
				return err
			}
			batch.Queue(`
        INSERT INTO payroll_results (period_id, staff_id, gross, income_tax, health_levy, pension, total_deductions, net_salary, currency, warnings_json)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
      `, periodID, result.StaffID, result.Gross, result.IncomeTax, result.HealthLevy, result.Pension,
				result.TotalDeductions, result.NetSalary, result.Currency, warningsJSON)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) ListResults(ctx context.Context, periodID string) ([]Result, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.period_id, r.staff_id, s.first_name || ' ' || s.last_name,
           r.gross, r.income_tax, r.health_levy, r.pension, r.total_deductions, r.net_salary,
           r.currency, r.warnings_json, r.created_at
    FROM payroll_results r
    JOIN staff s ON s.id = r.staff_id
    WHERE r.period_id = $1
    ORDER BY s.staff_no
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var result Result
		var warningsJSON []byte
		if err := rows.Scan(&result.PeriodID, &result.StaffID, &result.StaffName,
			&result.Gross, &result.IncomeTax, &result.HealthLevy, &result.Pension, &result.TotalDeductions, &result.NetSalary,
			&result.Currency, &warningsJSON, &result.CreatedAt); err != nil {
			return nil, err
		}
		if len(warningsJSON) > 0 {
			if err := json.Unmarshal(warningsJSON, &result.Warnings); err != nil {
				return nil, fmt.Errorf("decode warnings for staff %s: %w", result.StaffID, err)
			}
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func (s *Store) DeleteResultsForPeriod(ctx context.Context, periodID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM payroll_results WHERE period_id = $1", periodID)
	return err
}

func (s *Store) CreatePayslip(ctx context.Context, periodID, staffID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payslips (period_id, staff_id)
    VALUES ($1,$2)
    ON CONFLICT (period_id, staff_id) DO UPDATE SET period_id = EXCLUDED.period_id
    RETURNING id
  `, periodID, staffID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdatePayslipFileURL(ctx context.Context, payslipID, fileURL string) error {
	_, err := s.DB.Exec(ctx, "UPDATE payslips SET file_url = $1 WHERE id = $2", fileURL, payslipID)
	return err
}

func (s *Store) GetPayslip(ctx context.Context, payslipID string) (Payslip, error) {
	var payslip Payslip
	err := s.DB.QueryRow(ctx, `
    SELECT id, period_id, staff_id, COALESCE(file_url, ''), created_at
    FROM payslips
    WHERE id = $1
  `, payslipID).Scan(&payslip.ID, &payslip.PeriodID, &payslip.StaffID, &payslip.FileURL, &payslip.CreatedAt)
	if notFound(err) {
		return Payslip{}, ErrPayslipNotFound
	}
	if err != nil {
		return Payslip{}, err
	}
	return payslip, nil
}

func (s *Store) ListPayslips(ctx context.Context, periodID string) ([]Payslip, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, period_id, staff_id, COALESCE(file_url, ''), created_at
    FROM payslips
    WHERE period_id = $1
    ORDER BY created_at
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payslip
	for rows.Next() {
		var payslip Payslip
		if err := rows.Scan(&payslip.ID, &payslip.PeriodID, &payslip.StaffID, &payslip.FileURL, &payslip.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, payslip)
	}
	return out, rows.Err()
}

func (s *Store) DeletePayslipsForPeriod(ctx context.Context, periodID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM payslips WHERE period_id = $1", periodID)
	return err
}

// notFound also covers ids that are not valid UUIDs, which Postgres rejects
// with invalid_text_representation before any row lookup.
func notFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
