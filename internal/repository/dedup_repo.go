package repository

import "context"

// DedupRepository is the persistent record of URLs already scheduled for crawling.
type DedupRepository interface {
	// FilterNew returns the subset of urls that have no live record, preserving order.
	FilterNew(ctx context.Context, urls []string) ([]string, error)
	// MarkCrawled records urls as scheduled for the configured dedup window.
	MarkCrawled(ctx context.Context, urls []string) error
}
