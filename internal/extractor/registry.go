package extractor

import (
	"fmt"
	"net/url"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/pkg/utils"
)

// Registry routes URLs to the extractor of the source that publishes them.
// It is read-only after construction.
type Registry struct {
	extractors []*SourceExtractor
}

// NewRegistry builds a registry over the given extractors, in match order.
func NewRegistry(extractors ...*SourceExtractor) *Registry {
	return &Registry{extractors: extractors}
}

// Match returns the extractor whose domain matches the host of rawURL.
func (r *Registry) Match(rawURL string) (*SourceExtractor, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnsupportedSource, rawURL)
	}
	for _, e := range r.extractors {
		if utils.MatchesDomain(rawURL, e.Domain()) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrUnsupportedSource, u.Hostname())
}

// All returns every registered extractor.
func (r *Registry) All() []*SourceExtractor {
	out := make([]*SourceExtractor, len(r.extractors))
	copy(out, r.extractors)
	return out
}
