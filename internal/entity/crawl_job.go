package entity

import "time"

// CrawlJob is a unit of work in the job queue.
type CrawlJob struct {
	// ID is the queue-assigned message id, empty until enqueued.
	ID           string
	URL          string
	DiscoveredAt time.Time
	// Attempt counts deliveries that ended in a retry, starting at 0.
	Attempt int
}

// CrawlJobPayload is the JSON wire form of a job: {url, timestamp(epoch millis)}.
type CrawlJobPayload struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// NewCrawlJob builds a job for a freshly discovered URL.
func NewCrawlJob(url string, discoveredAt time.Time) CrawlJob {
	return CrawlJob{URL: url, DiscoveredAt: discoveredAt}
}

// Payload returns the wire form of the job.
func (j CrawlJob) Payload() CrawlJobPayload {
	return CrawlJobPayload{URL: j.URL, Timestamp: j.DiscoveredAt.UnixMilli()}
}

// FromPayload restores a job from its wire form.
func FromPayload(p CrawlJobPayload) CrawlJob {
	return CrawlJob{URL: p.URL, DiscoveredAt: time.UnixMilli(p.Timestamp)}
}
