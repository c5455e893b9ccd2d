package storage

import "time"

// Log field keys.
const (
	logFieldTitle   = "title"
	logFieldTable   = "table"
	logFieldBackend = "backend"
	logFieldCount   = "count"

	titleLogPrefix = 30
)

// Table names.
const (
	tableRaw      = "raw_ideas"
	tableAnalyzed = "analyzed_ideas"
)

const (
	// DefaultRetentionDays is how long raw ideas are kept when not configured.
	DefaultRetentionDays = 30

	hoursPerDay = 24 * time.Hour

	// connectionRetrySleep is the sleep duration between connection retries.
	connectionRetrySleep = 2 * time.Second
	// maxConnectionRetries bounds the hosted database connection attempts.
	maxConnectionRetries = 3

	migrationLockID = 1000

	sqliteTimeLayout = "2006-01-02 15:04:05"
)
