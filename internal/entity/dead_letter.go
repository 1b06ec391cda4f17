package entity

import "time"

// DeadLetter mirrors the `dead_letter_jobs` PostgreSQL table schema.
// A row is written when a job exhausted its retry budget or failed permanently.
type DeadLetter struct {
	ID            int64
	URL           string
	DiscoveredAt  time.Time
	Attempts      int
	FailureReason string
	Permanent     bool
	FailedAt      time.Time
}
