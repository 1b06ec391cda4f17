package extractor_test

import (
	"net/url"
	"testing"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listingHTML mimics a source listing page with one repeated and one empty link.
const listingHTML = `<html><body>
  <a class="content-card-title" href="/markets/2025/01/01/first">First</a>
  <a class="content-card-title" href="https://www.coindesk.com/policy/second">Second</a>
  <a class="content-card-title" href="/markets/2025/01/01/first">First again</a>
  <a class="content-card-title" href="">Empty</a>
  <a class="other" href="/ignored">Ignored</a>
</body></html>`

// articleHTML mimics a CoinDesk article page.
const articleHTML = `<html><body>
  <div data-module-name="article-header">
    <h1 class="font-headline-lg">  Bitcoin Hits New High </h1>
    <h2>Markets rally on ETF inflows</h2>
  </div>
  <div class="article-content-wrapper"><figure><img src="/images/btc.jpg"></figure></div>
  <div data-module-name="article-body">
    <div class="document-body">
      <p>First paragraph.</p>
      <p>   </p>
      <p>Second paragraph.</p>
    </div>
  </div>
</body></html>`

func TestParseLinks(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://www.coindesk.com")
	require.NoError(t, err)

	links, err := extractor.ParseLinks(listingHTML, base, "a.content-card-title")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.coindesk.com/markets/2025/01/01/first",
		"https://www.coindesk.com/policy/second",
	}, links)
}

func TestParseLinks_NoMatch(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://www.coindesk.com")
	require.NoError(t, err)

	_, err = extractor.ParseLinks(listingHTML, base, "a.missing")
	require.ErrorIs(t, err, entity.ErrStructureMismatch)

	_, err = extractor.ParseLinks(`<a class="x">no href</a>`, base, "a.x")
	require.ErrorIs(t, err, entity.ErrStructureMismatch)
}

func TestParseArticle(t *testing.T) {
	t.Parallel()

	pageURL := "https://www.coindesk.com/markets/2025/01/01/first"
	article, err := extractor.ParseArticle(articleHTML, pageURL, extractor.CoinDesk.Content)
	require.NoError(t, err)

	assert.Equal(t, pageURL, article.URL)
	assert.Equal(t, "Bitcoin Hits New High", article.Header)
	assert.Equal(t, "Markets rally on ETF inflows", article.Subheader)
	assert.Equal(t, "https://www.coindesk.com/images/btc.jpg", article.Thumbnail)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", article.Content)
}

func TestParseArticle_ThumbnailWrapper(t *testing.T) {
	t.Parallel()

	html := `<html><body>
  <article><h1 data-testid="post-title">Ether Upgrade Ships</h1></article>
  <div data-testid="post-cover-image"><img src="https://images.cointelegraph.com/eth.png"></div>
  <div data-testid="html-renderer-container"><p>Body.</p></div>
</body></html>`

	article, err := extractor.ParseArticle(html, "https://cointelegraph.com/news/eth", extractor.Cointelegraph.Content)
	require.NoError(t, err)
	assert.Equal(t, "Ether Upgrade Ships", article.Header)
	assert.Empty(t, article.Subheader)
	assert.Equal(t, "https://images.cointelegraph.com/eth.png", article.Thumbnail)
	assert.Equal(t, "Body.", article.Content)
}

func TestParseArticle_StructureMismatch(t *testing.T) {
	t.Parallel()

	_, err := extractor.ParseArticle(`<html><body><div>unrelated</div></body></html>`,
		"https://www.coindesk.com/x", extractor.CoinDesk.Content)
	require.ErrorIs(t, err, entity.ErrStructureMismatch)
}
