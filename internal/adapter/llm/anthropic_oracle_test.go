package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func messagesServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewAnthropicOracle_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnthropicOracle(Config{Model: "claude-test"}, zap.NewNop())
	require.ErrorIs(t, err, entity.ErrOracleUnavailable)
}

func TestAnthropicOracle_Generate(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := messagesServer(t, `["https://www.coindesk.com/a"]`, &body)

	oracle, err := NewAnthropicOracle(Config{
		APIKey:    "test-key",
		Model:     "claude-test",
		MaxTokens: 256,
		BaseURL:   srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	got, err := oracle.Generate(context.Background(), "system prompt", "user content")
	require.NoError(t, err)
	assert.Equal(t, `["https://www.coindesk.com/a"]`, got)

	assert.Equal(t, "claude-test", body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
}

func TestAnthropicOracle_EmptyReply(t *testing.T) {
	t.Parallel()

	srv := messagesServer(t, "   ", nil)

	oracle, err := NewAnthropicOracle(Config{APIKey: "k", Model: "claude-test", BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = oracle.Generate(context.Background(), "s", "u")
	require.ErrorIs(t, err, entity.ErrOracleOutput)
}
