package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TaxBand is one progressive band: the next Width of salary is taxed at Rate.
type TaxBand struct {
	Width decimal.Decimal
	Rate  decimal.Decimal
}

// TaxTable holds the bounded bands in ascending order. Salary left after the
// last band is taxed at TopRate.
type TaxTable struct {
	Bands          []TaxBand
	TopRate        decimal.Decimal
	PersonalRelief decimal.Decimal
}

// LevyBracket charges Fee for any salary strictly below UpperBound that did not
// match an earlier bracket.
type LevyBracket struct {
	UpperBound decimal.Decimal
	Fee        decimal.Decimal
}

type LevyTable struct {
	Brackets []LevyBracket
	MaxFee   decimal.Decimal
}

// PensionTiers is the two-tier capped contribution. Tier 1 covers salary up
// to LowerCeiling, tier 2 the band between LowerCeiling and UpperCeiling.
type PensionTiers struct {
	Rate         decimal.Decimal
	LowerCeiling decimal.Decimal
	UpperCeiling decimal.Decimal
}

// Schedule is the full set of statutory tables for one tax year.
type Schedule struct {
	Tax     TaxTable
	Levy    LevyTable
	Pension PensionTiers
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// DefaultSchedule returns the reference monthly tables in shillings.
func DefaultSchedule() Schedule {
	return Schedule{
		Tax: TaxTable{
			Bands: []TaxBand{
				{Width: dec("24000"), Rate: dec("0.10")},
				{Width: dec("8333"), Rate: dec("0.25")},
			},
			TopRate:        dec("0.30"),
			PersonalRelief: dec("2400"),
		},
		Levy: LevyTable{
			Brackets: []LevyBracket{
				{UpperBound: dec("6000"), Fee: dec("150")},
				{UpperBound: dec("8000"), Fee: dec("300")},
				{UpperBound: dec("12000"), Fee: dec("400")},
				{UpperBound: dec("15000"), Fee: dec("500")},
				{UpperBound: dec("25000"), Fee: dec("600")},
				{UpperBound: dec("30000"), Fee: dec("850")},
				{UpperBound: dec("35000"), Fee: dec("900")},
				{UpperBound: dec("40000"), Fee: dec("950")},
				{UpperBound: dec("45000"), Fee: dec("1000")},
				{UpperBound: dec("50000"), Fee: dec("1100")},
				{UpperBound: dec("60000"), Fee: dec("1200")},
				{UpperBound: dec("70000"), Fee: dec("1300")},
				{UpperBound: dec("80000"), Fee: dec("1400")},
				{UpperBound: dec("90000"), Fee: dec("1500")},
				{UpperBound: dec("100000"), Fee: dec("1600")},
			},
			MaxFee: dec("1700"),
		},
		Pension: PensionTiers{
			Rate:         dec("0.06"),
			LowerCeiling: dec("7000"),
			UpperCeiling: dec("36000"),
		},
	}
}

// Validate checks the ordering invariants the calculator relies on.
func (s Schedule) Validate() error {
	for i, band := range s.Tax.Bands {
		if !band.Width.IsPositive() {
			return fmt.Errorf("%w: tax band %d width must be positive", ErrInvalidSchedule, i)
		}
		if band.Rate.IsNegative() {
			return fmt.Errorf("%w: tax band %d rate must not be negative", ErrInvalidSchedule, i)
		}
	}
	if s.Tax.TopRate.IsNegative() {
		return fmt.Errorf("%w: top tax rate must not be negative", ErrInvalidSchedule)
	}
	if s.Tax.PersonalRelief.IsNegative() {
		return fmt.Errorf("%w: personal relief must not be negative", ErrInvalidSchedule)
	}

	prev := decimal.Zero
	for i, bracket := range s.Levy.Brackets {
		if bracket.UpperBound.LessThanOrEqual(prev) {
			return fmt.Errorf("%w: levy bracket %d bound must increase", ErrInvalidSchedule, i)
		}
		if bracket.Fee.IsNegative() {
			return fmt.Errorf("%w: levy bracket %d fee must not be negative", ErrInvalidSchedule, i)
		}
		prev = bracket.UpperBound
	}
	if s.Levy.MaxFee.IsNegative() {
		return fmt.Errorf("%w: maximum levy must not be negative", ErrInvalidSchedule)
	}

	p := s.Pension
	if p.Rate.IsNegative() {
		return fmt.Errorf("%w: pension rate must not be negative", ErrInvalidSchedule)
	}
	if p.LowerCeiling.IsNegative() || !p.LowerCeiling.LessThan(p.UpperCeiling) {
		return fmt.Errorf("%w: pension ceilings must satisfy 0 <= lower < upper", ErrInvalidSchedule)
	}
	return nil
}

// Scale returns a copy with every monetary constant multiplied by factor.
// Rates are left alone, so Scale(100) expresses the schedule in cents.
func (s Schedule) Scale(factor decimal.Decimal) Schedule {
	out := Schedule{
		Tax: TaxTable{
			Bands:          make([]TaxBand, len(s.Tax.Bands)),
			TopRate:        s.Tax.TopRate,
			PersonalRelief: s.Tax.PersonalRelief.Mul(factor),
		},
		Levy: LevyTable{
			Brackets: make([]LevyBracket, len(s.Levy.Brackets)),
			MaxFee:   s.Levy.MaxFee.Mul(factor),
		},
		Pension: PensionTiers{
			Rate:         s.Pension.Rate,
			LowerCeiling: s.Pension.LowerCeiling.Mul(factor),
			UpperCeiling: s.Pension.UpperCeiling.Mul(factor),
		},
	}
	for i, band := range s.Tax.Bands {
		out.Tax.Bands[i] = TaxBand{Width: band.Width.Mul(factor), Rate: band.Rate}
	}
	for i, bracket := range s.Levy.Brackets {
		out.Levy.Brackets[i] = LevyBracket{UpperBound: bracket.UpperBound.Mul(factor), Fee: bracket.Fee.Mul(factor)}
	}
	return out
}
