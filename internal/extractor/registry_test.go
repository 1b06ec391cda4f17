package extractor_test

import (
	"testing"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_Match(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{}
	coindesk := extractor.NewSourceExtractor(extractor.CoinDesk, browser, nil, extractor.Options{}, zap.NewNop())
	cointelegraph := extractor.NewSourceExtractor(extractor.Cointelegraph, browser, nil, extractor.Options{}, zap.NewNop())
	registry := extractor.NewRegistry(coindesk, cointelegraph)

	got, err := registry.Match("https://www.coindesk.com/markets/2025/01/01/first")
	require.NoError(t, err)
	assert.Equal(t, "coindesk", got.Name())

	got, err = registry.Match("https://cointelegraph.com/news/eth")
	require.NoError(t, err)
	assert.Equal(t, "cointelegraph", got.Name())

	for _, raw := range []string{"https://example.org/a", "https://notcoindesk.com/a", "::not a url", ""} {
		_, err := registry.Match(raw)
		require.ErrorIs(t, err, entity.ErrUnsupportedSource, raw)
	}

	assert.Len(t, registry.All(), 2)
}
