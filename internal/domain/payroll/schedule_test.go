package payroll

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultScheduleIsValid(t *testing.T) {
	if err := DefaultSchedule().Validate(); err != nil {
		t.Fatalf("expected default schedule to be valid, got %v", err)
	}
}

func TestValidateRejectsUnorderedLevyBrackets(t *testing.T) {
	schedule := DefaultSchedule()
	schedule.Levy.Brackets[3].UpperBound = schedule.Levy.Brackets[2].UpperBound
	if _, err := NewCalculator(schedule); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestValidateRejectsZeroWidthBand(t *testing.T) {
	schedule := DefaultSchedule()
	schedule.Tax.Bands[1].Width = decimal.Zero
	if err := schedule.Validate(); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestValidateRejectsInvertedPensionCeilings(t *testing.T) {
	schedule := DefaultSchedule()
	schedule.Pension.UpperCeiling = schedule.Pension.LowerCeiling
	if err := schedule.Validate(); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestScaleLeavesRatesAndOriginalUntouched(t *testing.T) {
	base := DefaultSchedule()
	scaled := base.Scale(decimal.NewFromInt(100))

	if !scaled.Tax.Bands[0].Width.Equal(decimal.NewFromInt(2_400_000)) {
		t.Fatalf("expected scaled band width 2400000, got %s", scaled.Tax.Bands[0].Width)
	}
	if !scaled.Tax.Bands[0].Rate.Equal(base.Tax.Bands[0].Rate) {
		t.Fatalf("expected rate unchanged, got %s", scaled.Tax.Bands[0].Rate)
	}
	if !scaled.Pension.Rate.Equal(base.Pension.Rate) {
		t.Fatalf("expected pension rate unchanged, got %s", scaled.Pension.Rate)
	}
	if !base.Levy.Brackets[0].Fee.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("scale mutated original schedule: %s", base.Levy.Brackets[0].Fee)
	}
}
