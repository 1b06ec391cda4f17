package extractor_test

import (
	"testing"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readablePageHTML is an article page whose layout matches no source selectors.
const readablePageHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Network Upgrade Goes Live</title>
  <meta property="og:description" content="The long-awaited upgrade activated on mainnet.">
  <meta property="og:image" content="https://www.coindesk.com/images/upgrade.jpg">
</head>
<body>
  <nav><a href="/">Home</a> <a href="/markets">Markets</a></nav>
  <main>
    <article>
      <h1>Network Upgrade Goes Live</h1>
      <p>The network upgrade activated on mainnet early on Tuesday, after months of testing on public testnets and a series of delays that had frustrated developers and users alike across the ecosystem.</p>
      <p>Core developers said the change reduces fees for layer-two rollups and lays the groundwork for future scaling work, while node operators and validators reported a smooth transition with no missed blocks during the activation window.</p>
      <p>Market reaction was muted, with the native token trading within a narrow range throughout the session as analysts pointed out that the upgrade had been widely anticipated and largely priced in by traders well ahead of time.</p>
    </article>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestReadabilityArticle(t *testing.T) {
	t.Parallel()

	article, err := extractor.ReadabilityArticle(readablePageHTML, articleURL)
	require.NoError(t, err)

	assert.Equal(t, articleURL, article.URL)
	assert.NotEmpty(t, article.Header)
	assert.Contains(t, article.Content, "validators")
	assert.Equal(t, "The long-awaited upgrade activated on mainnet.", article.Subheader)
	assert.Equal(t, "https://www.coindesk.com/images/upgrade.jpg", article.Thumbnail)
}

func TestReadabilityArticle_Empty(t *testing.T) {
	t.Parallel()

	_, err := extractor.ReadabilityArticle("  ", articleURL)
	require.ErrorIs(t, err, entity.ErrNoMarkup)
}
