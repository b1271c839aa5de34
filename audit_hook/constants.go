package audithook

// Action constants for audit events.
const (
	// Vault actions
	ActionVaultInitialized = "vault.initialized"
	ActionDiscrepancy      = "vault.discrepancy"

	// Balance actions
	ActionDeposited   = "balance.deposited"
	ActionWithdrawn   = "balance.withdrawn"
	ActionRejected    = "balance.rejected"
	ActionFailed      = "balance.failed"
	ActionCompensated = "balance.compensated"
	ActionReversed    = "balance.reversed"
)

// Resource constants for audit events.
const (
	ResourceVault   = "vault"
	ResourceBalance = "balance"
)

// Category constants for audit events.
const (
	CategoryCustody    = "custody"
	CategoryAccess     = "access"
	CategoryAccounting = "accounting"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
