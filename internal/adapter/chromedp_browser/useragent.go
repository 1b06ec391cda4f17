package chromedp_browser

import (
	"math/rand/v2"
	"sync"
)

// UserAgentRotator hands out user agents for browser sessions.
type UserAgentRotator struct {
	mu         sync.Mutex
	userAgents []string
	next       int
}

// NewUserAgentRotator returns a rotator over agents, or over desktop Chrome agents if none are given.
func NewUserAgentRotator(agents ...string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		}
	}
	return &UserAgentRotator{userAgents: agents, next: rand.IntN(len(agents))}
}

// Next returns the following user agent in round-robin order.
func (r *UserAgentRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua := r.userAgents[r.next]
	r.next = (r.next + 1) % len(r.userAgents)
	return ua
}
