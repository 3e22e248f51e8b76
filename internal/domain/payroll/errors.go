package payroll

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidSchedule      = errors.New("invalid statutory schedule")
	ErrPeriodNotFound       = errors.New("payroll period not found")
	ErrPeriodFinalized      = errors.New("payroll period already finalized")
	ErrFinalizeInvalidState = errors.New("payroll period must be reviewed before finalize")
	ErrFinalizeNoResults    = errors.New("payroll period has no payroll results")
	ErrReopenInvalidState   = errors.New("only reviewed or finalized periods can be reopened")
	ErrStaffNotFound        = errors.New("staff member not found")
	ErrPayslipNotFound      = errors.New("payslip not found")
)
