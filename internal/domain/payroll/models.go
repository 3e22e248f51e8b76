package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type Staff struct {
	ID          string          `json:"id"`
	StaffNo     string          `json:"staffNo"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	Role        string          `json:"role"`
	BaseSalary  decimal.Decimal `json:"baseSalary"`
	BankAccount string          `json:"bankAccount,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}

type Allowance struct {
	ID      string          `json:"id"`
	StaffID string          `json:"staffId"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
}

type Period struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Status    string    `json:"status"`
}

// StaffPay is what a run needs to know about one active staff member.
type StaffPay struct {
	Staff      Staff
	Allowances []decimal.Decimal
}

// Gross is base salary plus every allowance.
func (p StaffPay) Gross() decimal.Decimal {
	gross := p.Staff.BaseSalary
	for _, amount := range p.Allowances {
		gross = gross.Add(amount)
	}
	return gross
}

type Result struct {
	PeriodID  string          `json:"periodId"`
	StaffID   string          `json:"staffId"`
	StaffName string          `json:"staffName,omitempty"`
	Gross     decimal.Decimal `json:"gross"`
	DeductionResult
	Currency  string    `json:"currency"`
	Warnings  []string  `json:"warnings"`
	CreatedAt time.Time `json:"createdAt"`
}

type RunSummary struct {
	PeriodID   string         `json:"periodId"`
	Status     string         `json:"status"`
	StaffCount int            `json:"staffCount"`
	Skipped    int            `json:"skipped"`
	Warnings   map[string]int `json:"warnings"`
}

type PeriodSummary struct {
	PeriodID        string          `json:"periodId"`
	Status          string          `json:"status"`
	StaffCount      int             `json:"staffCount"`
	TotalGross      decimal.Decimal `json:"totalGross"`
	TotalIncomeTax  decimal.Decimal `json:"totalIncomeTax"`
	TotalHealthLevy decimal.Decimal `json:"totalHealthLevy"`
	TotalPension    decimal.Decimal `json:"totalPension"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	TotalNet        decimal.Decimal `json:"totalNet"`
	Warnings        map[string]int  `json:"warnings"`
}

type Payslip struct {
	ID        string    `json:"id"`
	PeriodID  string    `json:"periodId"`
	StaffID   string    `json:"staffId"`
	FileURL   string    `json:"fileUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
