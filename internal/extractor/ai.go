package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/internal/repository"
	"github.com/newsfeed/crawler-service/pkg/utils"
	"go.uber.org/zap"
)

const urlSystemPrompt = `You are a URL extraction assistant. Your task is to extract news article URLs from HTML content.
Rules:
- Return ONLY a JSON array of URLs, nothing else
- Each URL should be a complete, absolute URL
- If no URLs can be found, return an empty array []
- Do not include any explanations or markdown formatting

Output format: ["url1", "url2", "url3"]`

const articleSystemPrompt = `You are a news article extraction assistant. Your task is to extract article information from HTML content.
Rules:
- Return ONLY a JSON object with the following fields: header, subheader, thumbnail, content
- header: The main title/headline of the article
- subheader: The subtitle or description of the article
- thumbnail: The URL of the main article image
- content: The full article text content (paragraphs joined with double newlines)
- Do not include any explanations or markdown formatting
- If a field cannot be found, use an empty string

Output format: {"header": "...", "subheader": "...", "thumbnail": "...", "content": "..."}`

// AIExtractor extracts URL lists and articles from raw markup through an Oracle.
// It keeps no state between calls.
type AIExtractor struct {
	oracle         repository.Oracle
	maxMarkupBytes int
	logger         *zap.Logger
}

// NewAIExtractor creates an AI fallback extractor. maxMarkupBytes <= 0 disables truncation.
func NewAIExtractor(oracle repository.Oracle, maxMarkupBytes int, logger *zap.Logger) *AIExtractor {
	return &AIExtractor{
		oracle:         oracle,
		maxMarkupBytes: maxMarkupBytes,
		logger:         logger.Named("ai_extractor"),
	}
}

// ExtractURLs asks the oracle for the article links in html. Entries that are not
// absolute http(s) URLs are dropped.
func (a *AIExtractor) ExtractURLs(ctx context.Context, html, sourceName string) ([]string, error) {
	a.logger.Info("extracting urls with oracle", zap.String("source", sourceName))

	resp, err := a.oracle.Generate(ctx, urlSystemPrompt,
		"Extract all news article URLs from the following HTML content:\n\n"+a.prepareMarkup(html))
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	urls, err := ParseURLList(resp)
	if err != nil {
		a.logger.Warn("unusable oracle response", zap.String("source", sourceName), zap.Error(err))
		return nil, err
	}

	a.logger.Info("extracted urls with oracle", zap.String("source", sourceName), zap.Int("count", len(urls)))
	return urls, nil
}

// ExtractArticle asks the oracle for the article fields in html. The returned
// article always carries pageURL, never a URL proposed by the oracle.
func (a *AIExtractor) ExtractArticle(ctx context.Context, html, pageURL, sourceName string) (*entity.Article, error) {
	a.logger.Info("extracting article with oracle", zap.String("source", sourceName), zap.String("url", pageURL))

	resp, err := a.oracle.Generate(ctx, articleSystemPrompt,
		"Extract the news article information from the following HTML content:\n\n"+a.prepareMarkup(html))
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	article, err := ParseArticleObject(resp)
	if err != nil {
		a.logger.Warn("unusable oracle response", zap.String("url", pageURL), zap.Error(err))
		return nil, err
	}
	article.URL = pageURL

	a.logger.Info("extracted article with oracle", zap.String("url", pageURL), zap.String("header", article.Header))
	return article, nil
}

// prepareMarkup drops elements that carry no article text and bounds the payload size.
func (a *AIExtractor) prepareMarkup(html string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("script, style, noscript, svg, iframe").Remove()
		if cleaned, err := doc.Html(); err == nil {
			html = cleaned
		}
	}
	if a.maxMarkupBytes > 0 && len(html) > a.maxMarkupBytes {
		html = strings.ToValidUTF8(html[:a.maxMarkupBytes], "")
	}
	return html
}

// StripCodeFence removes a surrounding ```json / ``` markdown fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseURLList decodes an oracle response that must be a JSON array of URLs.
func ParseURLList(resp string) ([]string, error) {
	body := StripCodeFence(resp)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", entity.ErrOracleOutput)
	}

	var raw []any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrOracleOutput, err)
	}

	urls := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || !utils.IsAbsoluteHTTPURL(s) {
			continue
		}
		urls = append(urls, s)
	}
	return utils.Dedupe(urls), nil
}

type oracleArticle struct {
	Header    string `json:"header"`
	Subheader string `json:"subheader"`
	Thumbnail string `json:"thumbnail"`
	Content   string `json:"content"`
}

// ParseArticleObject decodes an oracle response that must be a JSON object with
// header, subheader, thumbnail and content fields.
func ParseArticleObject(resp string) (*entity.Article, error) {
	body := StripCodeFence(resp)

	var parsed *oracleArticle
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrOracleOutput, err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: not an object", entity.ErrOracleOutput)
	}
	if strings.TrimSpace(parsed.Header) == "" && strings.TrimSpace(parsed.Content) == "" {
		return nil, fmt.Errorf("%w: header and content are empty", entity.ErrOracleOutput)
	}

	return &entity.Article{
		Header:    strings.TrimSpace(parsed.Header),
		Subheader: strings.TrimSpace(parsed.Subheader),
		Thumbnail: strings.TrimSpace(parsed.Thumbnail),
		Content:   strings.TrimSpace(parsed.Content),
	}, nil
}
