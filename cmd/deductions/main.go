// Command deductions prints the statutory deduction breakdown for one or
// more gross monthly salaries.
//
//	deductions 20000 50000
//	deductions -minor 5000000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"

	"bursar/internal/domain/payroll"
)

type line struct {
	Gross decimal.Decimal `json:"gross"`
	payroll.DeductionResult
}

func main() {
	minor := flag.Bool("minor", false, "Salaries are given in minor units (cents)")
	exact := flag.Bool("exact", false, "Show unrounded amounts")
	asJSON := flag.Bool("json", false, "Print JSON instead of a table")
	currency := flag.String("currency", "KES", "Currency label for the table")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] GROSS [GROSS...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	calc, err := calculator(*minor)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	lines, err := compute(calc, flag.Args(), !*exact)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lines); err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		return
	}

	if err := pterm.DefaultTable.WithHasHeader().WithRightAlignment().WithData(tableData(lines, *currency)).Render(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func calculator(minor bool) (payroll.Calculator, error) {
	if !minor {
		return payroll.DefaultCalculator(), nil
	}
	return payroll.NewCalculator(payroll.DefaultSchedule().Scale(decimal.NewFromInt(100)))
}

func compute(calc payroll.Calculator, args []string, rounded bool) ([]line, error) {
	lines := make([]line, 0, len(args))
	for _, arg := range args {
		gross, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(arg), ",", ""))
		if err != nil {
			return nil, fmt.Errorf("gross %q: not a number", arg)
		}
		result, err := calc.Calculate(gross)
		if err != nil {
			return nil, fmt.Errorf("gross %q: %w", arg, err)
		}
		if rounded {
			result = result.Rounded(gross)
		}
		lines = append(lines, line{Gross: gross, DeductionResult: result})
	}
	return lines, nil
}

func tableData(lines []line, currency string) pterm.TableData {
	data := pterm.TableData{{"Gross (" + currency + ")", "Income tax", "Health levy", "Pension", "Total", "Net"}}
	for _, l := range lines {
		data = append(data, []string{
			formatAmount(l.Gross),
			formatAmount(l.IncomeTax),
			formatAmount(l.HealthLevy),
			formatAmount(l.Pension),
			formatAmount(l.TotalDeductions),
			formatAmount(l.NetSalary),
		})
	}
	return data
}

// formatAmount renders value with thousands separators and at least two
// decimal places.
func formatAmount(value decimal.Decimal) string {
	places := int32(2)
	if _, digits, ok := strings.Cut(value.String(), "."); ok {
		places = max(int32(len(digits)), 2)
	}
	fixed := value.Abs().StringFixed(places)
	whole, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if value.IsNegative() {
		sign = "-"
	}
	wholeValue, err := decimal.NewFromString(whole)
	if err != nil || !wholeValue.BigInt().IsInt64() {
		return sign + fixed
	}
	return sign + humanize.Comma(wholeValue.IntPart()) + "." + frac
}
