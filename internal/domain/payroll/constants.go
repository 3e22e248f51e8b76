package payroll

const (
	PeriodStatusDraft     = "draft"
	PeriodStatusReviewed  = "reviewed"
	PeriodStatusFinalized = "finalized"

	StaffStatusActive   = "active"
	StaffStatusInactive = "inactive"

	WarningMissingBank  = "missing_bank_account"
	WarningNegativeNet  = "negative_net"
	WarningNetVariance  = "net_variance"
	WarningInvalidGross = "invalid_gross"

	// NetVarianceThreshold flags a net pay swing above 50% of the previous run.
	NetVarianceThreshold = 0.5
)
