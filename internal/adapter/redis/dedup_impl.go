package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const crawledURLPrefix = "crawled:url:"

// DedupRepoImpl records scheduled URLs as expiring Redis keys.
type DedupRepoImpl struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

var _ repository.DedupRepository = (*DedupRepoImpl)(nil)

// NewDedupRepo creates a dedup store whose records expire after window.
func NewDedupRepo(client *redis.Client, window time.Duration) *DedupRepoImpl {
	return &DedupRepoImpl{client: client, window: window, now: time.Now}
}

func crawledKey(url string) string {
	return crawledURLPrefix + url
}

// FilterNew checks every URL in one pipelined round trip.
func (r *DedupRepoImpl) FilterNew(ctx context.Context, urls []string) ([]string, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.IntCmd, len(urls))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, url := range urls {
			cmds[i] = pipe.Exists(ctx, crawledKey(url))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	fresh := make([]string, 0, len(urls))
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			fresh = append(fresh, urls[i])
		}
	}
	return fresh, nil
}

// MarkCrawled stores the first-seen time of each URL with the dedup window as TTL.
func (r *DedupRepoImpl) MarkCrawled(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	seenAt := r.now().UnixMilli()
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, url := range urls {
			pipe.Set(ctx, crawledKey(url), seenAt, r.window)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dedup mark: %w", err)
	}
	return nil
}
