package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the Anthropic oracle.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	// RateLimit is the sustained number of requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// AnthropicOracle implements repository.Oracle with the Anthropic Messages API.
type AnthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
	logger    *zap.Logger
}

var _ repository.Oracle = (*AnthropicOracle)(nil)

// NewAnthropicOracle builds an oracle from cfg. An empty API key yields entity.ErrOracleUnavailable.
func NewAnthropicOracle(cfg Config, logger *zap.Logger) (*AnthropicOracle, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, entity.ErrOracleUnavailable
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &AnthropicOracle{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   limiter,
		logger:    logger.Named("anthropic"),
	}, nil
}

// Generate sends one system-prompted request and returns the concatenated text of the reply.
func (o *AnthropicOracle) Generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	message, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(o.model),
		MaxTokens: o.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	o.logger.Debug("oracle responded",
		zap.String("model", o.model),
		zap.Int64("input_tokens", message.Usage.InputTokens),
		zap.Int64("output_tokens", message.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty reply", entity.ErrOracleOutput)
	}
	return text, nil
}
