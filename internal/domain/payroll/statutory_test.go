package payroll

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.String())
	}
}

func TestCalculateTwentyThousand(t *testing.T) {
	result, err := DefaultCalculator().Calculate(d("20000"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertAmount(t, "income tax", result.IncomeTax, "0")
	assertAmount(t, "health levy", result.HealthLevy, "600")
	assertAmount(t, "pension", result.Pension, "1200")
	assertAmount(t, "total", result.TotalDeductions, "1800")
	assertAmount(t, "net", result.NetSalary, "18200")
}

func TestCalculateFiftyThousand(t *testing.T) {
	result, err := DefaultCalculator().Calculate(d("50000"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertAmount(t, "income tax", result.IncomeTax, "7383.35")
	assertAmount(t, "health levy", result.HealthLevy, "1200")
	assertAmount(t, "pension", result.Pension, "2160")
	assertAmount(t, "total", result.TotalDeductions, "10743.35")
	assertAmount(t, "net", result.NetSalary, "39256.65")
}

func TestCalculateZero(t *testing.T) {
	result, err := DefaultCalculator().Calculate(decimal.Zero)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	assertAmount(t, "income tax", result.IncomeTax, "0")
	assertAmount(t, "health levy", result.HealthLevy, "0")
	assertAmount(t, "pension", result.Pension, "0")
	assertAmount(t, "net", result.NetSalary, "0")
}

func TestPensionAtLowerCeiling(t *testing.T) {
	pension, err := DefaultCalculator().Pension(d("7000"))
	if err != nil {
		t.Fatalf("pension: %v", err)
	}
	assertAmount(t, "pension", pension, "420")
}

func TestPensionTiers(t *testing.T) {
	calc := DefaultCalculator()
	cases := []struct {
		gross string
		want  string
	}{
		{"1", "0.06"},
		{"5000", "300"},
		{"6999.99", "419.9994"},
		{"7000.01", "420.0006"},
		{"20000", "1200"},
		{"36000", "2160"},
		{"36000.01", "2160"},
		{"250000", "2160"},
	}
	for _, tc := range cases {
		got, err := calc.Pension(d(tc.gross))
		if err != nil {
			t.Fatalf("pension(%s): %v", tc.gross, err)
		}
		assertAmount(t, "pension("+tc.gross+")", got, tc.want)
	}
}

func TestPensionSaturatesAndIsProportionalBelowLower(t *testing.T) {
	calc := DefaultCalculator()
	tiers := calc.Schedule().Pension
	ceiling := tiers.LowerCeiling.Mul(tiers.Rate).Add(tiers.UpperCeiling.Sub(tiers.LowerCeiling).Mul(tiers.Rate))
	for g := int64(36000); g <= 200000; g += 7919 {
		got, _ := calc.Pension(decimal.NewFromInt(g))
		if !got.Equal(ceiling) {
			t.Fatalf("expected saturated pension %s at %d, got %s", ceiling, g, got)
		}
	}
	for g := int64(0); g <= 7000; g += 333 {
		gross := decimal.NewFromInt(g)
		got, _ := calc.Pension(gross)
		if !got.Equal(gross.Mul(tiers.Rate)) {
			t.Fatalf("expected proportional pension at %d, got %s", g, got)
		}
	}
}

func TestIncomeTaxBands(t *testing.T) {
	calc := DefaultCalculator()
	cases := []struct {
		gross string
		want  string
	}{
		{"0", "0"},
		{"20000", "0"},
		{"24000", "0"},
		{"24001", "0.25"},
		{"32333", "2083.25"},
		{"32334", "2083.55"},
		{"50000", "7383.35"},
		{"100000", "22383.35"},
	}
	for _, tc := range cases {
		got, err := calc.IncomeTax(d(tc.gross))
		if err != nil {
			t.Fatalf("income tax(%s): %v", tc.gross, err)
		}
		assertAmount(t, "income tax("+tc.gross+")", got, tc.want)
	}
}

func TestIncomeTaxEarlyTerminationStaysInBand(t *testing.T) {
	// 30,000 ends inside band 2: 2,400 + 6,000 x 25% - 2,400 relief.
	got, err := DefaultCalculator().IncomeTax(d("30000"))
	if err != nil {
		t.Fatalf("income tax: %v", err)
	}
	assertAmount(t, "income tax", got, "1500")
}

func TestIncomeTaxMonotonicAndNonNegative(t *testing.T) {
	calc := DefaultCalculator()
	prev := decimal.Zero
	for g := int64(0); g <= 120000; g += 37 {
		got, err := calc.IncomeTax(decimal.NewFromInt(g))
		if err != nil {
			t.Fatalf("income tax(%d): %v", g, err)
		}
		if got.IsNegative() {
			t.Fatalf("income tax negative at %d: %s", g, got)
		}
		if got.LessThan(prev) {
			t.Fatalf("income tax decreased at %d: %s < %s", g, got, prev)
		}
		prev = got
	}
}

func TestHealthLevyStepBoundaries(t *testing.T) {
	calc := DefaultCalculator()
	cases := []struct {
		gross string
		want  string
	}{
		{"0.01", "150"},
		{"5999.99", "150"},
		{"6000", "300"},
		{"14999", "500"},
		{"15000", "600"},
		{"24999", "600"},
		{"25000", "850"},
		{"49999", "1100"},
		{"50000", "1200"},
		{"59999.99", "1200"},
		{"60000", "1300"},
		{"99999", "1600"},
		{"100000", "1700"},
		{"1000000", "1700"},
	}
	for _, tc := range cases {
		got, err := calc.HealthLevy(d(tc.gross))
		if err != nil {
			t.Fatalf("levy(%s): %v", tc.gross, err)
		}
		assertAmount(t, "levy("+tc.gross+")", got, tc.want)
	}
}

func TestCalculateIsAdditive(t *testing.T) {
	calc := DefaultCalculator()
	for g := int64(0); g <= 150000; g += 1013 {
		gross := decimal.NewFromInt(g)
		result, err := calc.Calculate(gross)
		if err != nil {
			t.Fatalf("calculate(%d): %v", g, err)
		}
		sum := result.IncomeTax.Add(result.HealthLevy).Add(result.Pension)
		if !result.TotalDeductions.Equal(sum) {
			t.Fatalf("total %s != parts %s at %d", result.TotalDeductions, sum, g)
		}
		if !result.NetSalary.Equal(gross.Sub(result.TotalDeductions)) {
			t.Fatalf("net %s inconsistent at %d", result.NetSalary, g)
		}
	}
}

func TestNegativeGrossRejectedEverywhere(t *testing.T) {
	calc := DefaultCalculator()
	gross := d("-1")
	if _, err := calc.IncomeTax(gross); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("income tax: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := calc.HealthLevy(gross); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("levy: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := calc.Pension(gross); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("pension: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := calc.Calculate(gross); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("calculate: expected ErrInvalidArgument, got %v", err)
	}
}

func TestCalculateScalesWithUnits(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	major := DefaultCalculator()
	minor, err := NewCalculator(DefaultSchedule().Scale(hundred))
	if err != nil {
		t.Fatalf("scaled schedule: %v", err)
	}
	for _, g := range []string{"0", "5999.99", "20000", "32333", "50000", "123456.78"} {
		inMajor, _ := major.Calculate(d(g))
		inMinor, _ := minor.Calculate(d(g).Mul(hundred))
		if !inMinor.TotalDeductions.Equal(inMajor.TotalDeductions.Mul(hundred)) {
			t.Fatalf("total at %s: cents %s vs shillings %s", g, inMinor.TotalDeductions, inMajor.TotalDeductions)
		}
		if !inMinor.NetSalary.Equal(inMajor.NetSalary.Mul(hundred)) {
			t.Fatalf("net at %s: cents %s vs shillings %s", g, inMinor.NetSalary, inMajor.NetSalary)
		}
	}
}

func TestRoundedKeepsNetConsistent(t *testing.T) {
	gross := d("6999.99")
	result, _ := DefaultCalculator().Calculate(gross)
	shown := result.Rounded(gross)
	assertAmount(t, "pension", shown.Pension, "420")
	sum := shown.IncomeTax.Add(shown.HealthLevy).Add(shown.Pension)
	if !shown.TotalDeductions.Equal(sum) {
		t.Fatalf("rounded total %s != parts %s", shown.TotalDeductions, sum)
	}
	assertAmount(t, "net", shown.NetSalary, "6279.99")
}
