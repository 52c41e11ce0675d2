package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the deployment name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback deployment name.
	DefaultSiteName = "RPASOps"
	// ComplianceRunIntervalSecondsKey controls the compliance run interval in seconds.
	ComplianceRunIntervalSecondsKey = "COMPLIANCE_RUN_INTERVAL_SECONDS"
	// ComplianceMaxConcurrencyKey controls parallel object evaluation in a run.
	ComplianceMaxConcurrencyKey = "COMPLIANCE_MAX_CONCURRENCY"
	// MaintenanceScanIntervalSecondsKey controls the maintenance scan interval in seconds.
	MaintenanceScanIntervalSecondsKey = "MAINTENANCE_SCAN_INTERVAL_SECONDS"
	// DefaultComplianceRunIntervalSeconds is the fallback run interval (seconds).
	DefaultComplianceRunIntervalSeconds = 900
	// DefaultComplianceMaxConcurrency is the fallback max concurrency.
	DefaultComplianceMaxConcurrency = 4
	// DefaultMaintenanceScanIntervalSeconds is the fallback scan interval (seconds).
	DefaultMaintenanceScanIntervalSeconds = 300
)
