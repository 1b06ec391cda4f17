package extractor

import "time"

// CoinDesk is the coindesk.com source definition.
var CoinDesk = Source{
	Name:          "coindesk",
	Domain:        "coindesk.com",
	ListURL:       "https://www.coindesk.com/latest-crypto-news",
	BaseURL:       "https://www.coindesk.com",
	ListAnchor:    "a.content-card-title",
	LinkSelector:  "a.content-card-title",
	ListAnchorTTL: 10 * time.Second,
	Content: ContentSelectors{
		Anchor:    "h1.font-headline-lg",
		Header:    "h1.font-headline-lg",
		Subheader: `[data-module-name="article-header"] h2`,
		Thumbnail: ".article-content-wrapper figure img",
		Body:      `[data-module-name="article-body"] .document-body`,
	},
	ContentAnchorTTL: 10 * time.Second,
}

// Cointelegraph is the cointelegraph.com source definition.
var Cointelegraph = Source{
	Name:          "cointelegraph",
	Domain:        "cointelegraph.com",
	ListURL:       "https://cointelegraph.com/category/latest-news",
	BaseURL:       "https://cointelegraph.com",
	ListAnchor:    "a.post-card-inline__title-link",
	LinkSelector:  "a.post-card-inline__title-link",
	ListAnchorTTL: 10 * time.Second,
	Content: ContentSelectors{
		Anchor:    "article h1",
		Header:    `[data-testid="post-title"]`,
		Subheader: `[data-testid="post-description"]`,
		Thumbnail: `[data-testid="post-cover-image"]`,
		Body:      `[data-testid="html-renderer-container"]`,
	},
	ContentAnchorTTL: 15 * time.Second,
}

// DefaultSources lists every built-in source.
func DefaultSources() []Source {
	return []Source{CoinDesk, Cointelegraph}
}
