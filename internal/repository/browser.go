package repository

import (
	"context"
	"time"

	"github.com/newsfeed/crawler-service/internal/entity"
)

// LoadOptions bounds a single page load.
type LoadOptions struct {
	// Anchor is the CSS selector whose appearance marks the page as ready.
	Anchor        string
	PageTimeout   time.Duration
	AnchorTimeout time.Duration
}

// Browser defines the contract for the headless browser used for page retrieval.
type Browser interface {
	// Load navigates to url and waits for the anchor element. Each call acquires its own
	// session and releases it before returning. On anchor failure the returned page still
	// carries the markup captured after navigation.
	Load(ctx context.Context, url string, opts LoadOptions) (*entity.Page, error)
}

// Oracle is the text-generation service used by the AI fallback extractor.
type Oracle interface {
	Generate(ctx context.Context, systemPrompt, userContent string) (string, error)
}
