package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	defaultPageTimeout   = 30 * time.Second
	defaultAnchorTimeout = 10 * time.Second
)

// ChromedpBrowser loads pages in tabs of a single headless Chrome process.
type ChromedpBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	tabs          *semaphore.Weighted
	userAgents  *UserAgentRotator
	logger      *zap.Logger
}

// NewChromedpBrowser launches Chrome. At most maxTabs pages are open at once.
func NewChromedpBrowser(maxTabs int, userAgents *UserAgentRotator, logger *zap.Logger) (*ChromedpBrowser, error) {
	if maxTabs < 1 {
		return nil, errors.New("maxTabs must be at least 1")
	}
	if userAgents == nil {
		userAgents = NewUserAgentRotator()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run on the browser context starts the process
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &ChromedpBrowser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          semaphore.NewWeighted(int64(maxTabs)),
		userAgents:    userAgents,
		logger:        logger.Named("browser"),
	}, nil
}

var _ repository.Browser = (*ChromedpBrowser)(nil)

// Load navigates to url, captures the markup once the document has loaded, then waits for
// the anchor and captures again. An anchor timeout returns the first capture with the error.
func (b *ChromedpBrowser) Load(ctx context.Context, url string, opts repository.LoadOptions) (*entity.Page, error) {
	if err := b.tabs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.tabs.Release(1)

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	// tie the tab to the caller's context as well as the browser
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	page := &entity.Page{URL: url}
	start := time.Now()

	// open the tab on its own context so the timeouts below do not close it
	if err := chromedp.Run(tabCtx); err != nil {
		return page, fmt.Errorf("open tab: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, orDefault(opts.PageTimeout, defaultPageTimeout))
	err := chromedp.Run(navCtx,
		emulation.SetUserAgentOverride(b.userAgents.Next()),
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	cancelNav()
	if err != nil {
		b.logger.Warn("page load failed", zap.String("url", url), zap.Error(err))
		return page, fmt.Errorf("navigate %s: %w", url, err)
	}

	if opts.Anchor == "" {
		page.AnchorFound = true
		return page, nil
	}

	anchorCtx, cancelAnchor := context.WithTimeout(tabCtx, orDefault(opts.AnchorTimeout, defaultAnchorTimeout))
	defer cancelAnchor()

	var settled string
	err = chromedp.Run(anchorCtx,
		chromedp.WaitVisible(opts.Anchor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &settled, chromedp.ByQuery),
	)
	if err != nil {
		b.logger.Warn("anchor did not appear",
			zap.String("url", url),
			zap.String("anchor", opts.Anchor),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return page, fmt.Errorf("wait for %q on %s: %w", opts.Anchor, url, err)
	}

	page.HTML = settled
	page.AnchorFound = true
	b.logger.Debug("page loaded", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return page, nil
}

// Close shuts the browser process down.
func (b *ChromedpBrowser) Close() {
	b.browserCancel()
	b.allocCancel()
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
