package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DeductionResult is the statutory breakdown for one gross salary.
type DeductionResult struct {
	IncomeTax       decimal.Decimal `json:"incomeTax"`
	HealthLevy      decimal.Decimal `json:"healthLevy"`
	Pension         decimal.Decimal `json:"pension"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	NetSalary       decimal.Decimal `json:"netSalary"`
}

// Calculator computes statutory deductions from a Schedule. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	schedule Schedule
}

func NewCalculator(schedule Schedule) (Calculator, error) {
	if err := schedule.Validate(); err != nil {
		return Calculator{}, err
	}
	return Calculator{schedule: schedule}, nil
}

// DefaultCalculator uses DefaultSchedule.
func DefaultCalculator() Calculator {
	return Calculator{schedule: DefaultSchedule()}
}

func (c Calculator) Schedule() Schedule {
	return c.schedule
}

func validateGross(gross decimal.Decimal) error {
	if gross.IsNegative() {
		return fmt.Errorf("%w: gross salary %s is negative", ErrInvalidArgument, gross.String())
	}
	return nil
}

// IncomeTax applies the progressive bands, subtracts personal relief and
// clamps at zero. A salary that ends inside a band never reaches the next one.
func (c Calculator) IncomeTax(gross decimal.Decimal) (decimal.Decimal, error) {
	if err := validateGross(gross); err != nil {
		return decimal.Zero, err
	}
	return c.incomeTax(gross), nil
}

func (c Calculator) incomeTax(gross decimal.Decimal) decimal.Decimal {
	table := c.schedule.Tax
	remainder := gross
	tax := decimal.Zero
	exhausted := true
	for _, band := range table.Bands {
		if remainder.GreaterThan(band.Width) {
			tax = tax.Add(band.Width.Mul(band.Rate))
			remainder = remainder.Sub(band.Width)
			continue
		}
		tax = tax.Add(remainder.Mul(band.Rate))
		remainder = decimal.Zero
		exhausted = false
		break
	}
	if exhausted {
		tax = tax.Add(remainder.Mul(table.TopRate))
	}
	tax = tax.Sub(table.PersonalRelief)
	if tax.IsNegative() {
		return decimal.Zero
	}
	return tax
}

// HealthLevy returns the flat fee of the first bracket whose bound exceeds
// gross, or the maximum fee above the table. No pay means no levy.
func (c Calculator) HealthLevy(gross decimal.Decimal) (decimal.Decimal, error) {
	if err := validateGross(gross); err != nil {
		return decimal.Zero, err
	}
	return c.healthLevy(gross), nil
}

func (c Calculator) healthLevy(gross decimal.Decimal) decimal.Decimal {
	if gross.IsZero() {
		return decimal.Zero
	}
	for _, bracket := range c.schedule.Levy.Brackets {
		if bracket.UpperBound.GreaterThan(gross) {
			return bracket.Fee
		}
	}
	return c.schedule.Levy.MaxFee
}

// Pension sums the two contribution tiers. Nothing above the upper ceiling
// contributes.
func (c Calculator) Pension(gross decimal.Decimal) (decimal.Decimal, error) {
	if err := validateGross(gross); err != nil {
		return decimal.Zero, err
	}
	return c.pension(gross), nil
}

func (c Calculator) pension(gross decimal.Decimal) decimal.Decimal {
	tiers := c.schedule.Pension
	tier1 := decimal.Min(gross, tiers.LowerCeiling).Mul(tiers.Rate)
	if !gross.GreaterThan(tiers.LowerCeiling) {
		return tier1
	}
	band := decimal.Min(gross, tiers.UpperCeiling).Sub(tiers.LowerCeiling)
	tier2 := decimal.Max(decimal.Zero, band).Mul(tiers.Rate)
	return tier1.Add(tier2)
}

// Calculate validates gross once and returns the full breakdown.
func (c Calculator) Calculate(gross decimal.Decimal) (DeductionResult, error) {
	if err := validateGross(gross); err != nil {
		return DeductionResult{}, err
	}
	result := DeductionResult{
		IncomeTax:  c.incomeTax(gross),
		HealthLevy: c.healthLevy(gross),
		Pension:    c.pension(gross),
	}
	result.TotalDeductions = result.IncomeTax.Add(result.HealthLevy).Add(result.Pension)
	result.NetSalary = gross.Sub(result.TotalDeductions)
	return result, nil
}

// Rounded returns the breakdown rounded to two decimal places for display.
// Net is recomputed from the rounded parts so the payslip still adds up.
func (r DeductionResult) Rounded(gross decimal.Decimal) DeductionResult {
	out := DeductionResult{
		IncomeTax:  r.IncomeTax.Round(2),
		HealthLevy: r.HealthLevy.Round(2),
		Pension:    r.Pension.Round(2),
	}
	out.TotalDeductions = out.IncomeTax.Add(out.HealthLevy).Add(out.Pension)
	out.NetSalary = gross.Round(2).Sub(out.TotalDeductions)
	return out
}
