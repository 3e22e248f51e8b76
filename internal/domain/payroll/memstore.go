package payroll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemStore is an in-memory StoreAPI for tests and local demos.
type MemStore struct {
	mu         sync.Mutex
	staff      map[string]Staff
	allowances map[string][]Allowance
	periods    map[string]Period
	results    map[string]map[string]Result
	payslips   map[string]Payslip
	clock      func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		staff:      map[string]Staff{},
		allowances: map[string][]Allowance{},
		periods:    map[string]Period{},
		results:    map[string]map[string]Result{},
		payslips:   map[string]Payslip{},
		clock:      time.Now,
	}
}

var _ StoreAPI = (*MemStore)(nil)

func (m *MemStore) CreateStaff(_ context.Context, staff Staff) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staff.ID = uuid.NewString()
	if staff.Status == "" {
		staff.Status = StaffStatusActive
	}
	staff.CreatedAt = m.clock()
	m.staff[staff.ID] = staff
	return staff.ID, nil
}

func (m *MemStore) GetStaff(_ context.Context, staffID string) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	staff, ok := m.staff[staffID]
	if !ok {
		return Staff{}, ErrStaffNotFound
	}
	return staff, nil
}

func (m *MemStore) ListStaff(_ context.Context, status string, limit, offset int) ([]Staff, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Staff
	for _, staff := range m.staff {
		if status == "" || staff.Status == status {
			all = append(all, staff)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		return all[i].FirstName < all[j].FirstName
	})
	return page(all, limit, offset), len(all), nil
}

func (m *MemStore) AddAllowance(_ context.Context, staffID, name string, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staff[staffID]; !ok {
		return "", ErrStaffNotFound
	}
	allowance := Allowance{ID: uuid.NewString(), StaffID: staffID, Name: name, Amount: amount}
	m.allowances[staffID] = append(m.allowances[staffID], allowance)
	return allowance.ID, nil
}

func (m *MemStore) ListActiveStaffPay(_ context.Context) ([]StaffPay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StaffPay
	for _, staff := range m.staff {
		if staff.Status != StaffStatusActive {
			continue
		}
		pay := StaffPay{Staff: staff}
		for _, allowance := range m.allowances[staff.ID] {
			pay.Allowances = append(pay.Allowances, allowance.Amount)
		}
		out = append(out, pay)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Staff.StaffNo < out[j].Staff.StaffNo })
	return out, nil
}

func (m *MemStore) CreatePeriod(_ context.Context, name string, startDate, endDate time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	period := Period{ID: uuid.NewString(), Name: name, StartDate: startDate, EndDate: endDate, Status: PeriodStatusDraft}
	m.periods[period.ID] = period
	return period.ID, nil
}

func (m *MemStore) GetPeriod(_ context.Context, periodID string) (Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return Period{}, ErrPeriodNotFound
	}
	return period, nil
}

func (m *MemStore) ListPeriods(_ context.Context, limit, offset int) ([]Period, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]Period, 0, len(m.periods))
	for _, period := range m.periods {
		all = append(all, period)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartDate.After(all[j].StartDate) })
	return page(all, limit, offset), len(all), nil
}

func (m *MemStore) UpdatePeriodStatus(_ context.Context, periodID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	period.Status = status
	m.periods[periodID] = period
	return nil
}

func (m *MemStore) PreviousNet(_ context.Context, staffID, periodID string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.periods[periodID]
	if !ok {
		return decimal.Zero, false, nil
	}
	var (
		net    decimal.Decimal
		latest time.Time
		found  bool
	)
	for id, byStaff := range m.results {
		start := m.periods[id].StartDate
		if !start.Before(current.StartDate) {
			continue
		}
		result, ok := byStaff[staffID]
		if !ok {
			continue
		}
		if !found || start.After(latest) {
			net, latest, found = result.NetSalary, start, true
		}
	}
	return net, found, nil
}

func (m *MemStore) ReplaceResults(_ context.Context, periodID string, results []Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	period, ok := m.periods[periodID]
	if !ok {
		return ErrPeriodNotFound
	}
	if period.Status == PeriodStatusFinalized {
		return ErrPeriodFinalized
	}
	byStaff := make(map[string]Result, len(results))
	for _, result := range results {
		result.PeriodID = periodID
		if staff, ok := m.staff[result.StaffID]; ok {
			result.StaffName = staff.FullName()
		}
		result.CreatedAt = m.clock()
		byStaff[result.StaffID] = result
	}
	m.results[periodID] = byStaff
	period.Status = PeriodStatusReviewed
	m.periods[periodID] = period
	return nil
}

func (m *MemStore) ListResults(_ context.Context, periodID string) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Result, 0, len(m.results[periodID]))
	for _, result := range m.results[periodID] {
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool {
		return m.staff[out[i].StaffID].StaffNo < m.staff[out[j].StaffID].StaffNo
	})
	return out, nil
}

func (m *MemStore) DeleteResultsForPeriod(_ context.Context, periodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, periodID)
	return nil
}

func (m *MemStore) CreatePayslip(_ context.Context, periodID, staffID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payslip := range m.payslips {
		if payslip.PeriodID == periodID && payslip.StaffID == staffID {
			return payslip.ID, nil
		}
	}
	payslip := Payslip{ID: uuid.NewString(), PeriodID: periodID, StaffID: staffID, CreatedAt: m.clock()}
	m.payslips[payslip.ID] = payslip
	return payslip.ID, nil
}

func (m *MemStore) UpdatePayslipFileURL(_ context.Context, payslipID, fileURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payslip, ok := m.payslips[payslipID]
	if !ok {
		return ErrPayslipNotFound
	}
	payslip.FileURL = fileURL
	m.payslips[payslipID] = payslip
	return nil
}

func (m *MemStore) GetPayslip(_ context.Context, payslipID string) (Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payslip, ok := m.payslips[payslipID]
	if !ok {
		return Payslip{}, ErrPayslipNotFound
	}
	return payslip, nil
}

func (m *MemStore) ListPayslips(_ context.Context, periodID string) ([]Payslip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payslip
	for _, payslip := range m.payslips {
		if payslip.PeriodID == periodID {
			out = append(out, payslip)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StaffID < out[j].StaffID })
	return out, nil
}

func (m *MemStore) DeletePayslipsForPeriod(_ context.Context, periodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, payslip := range m.payslips {
		if payslip.PeriodID == periodID {
			delete(m.payslips, id)
		}
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
