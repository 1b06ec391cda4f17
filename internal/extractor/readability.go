package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/newsfeed/crawler-service/internal/entity"
)

// ReadabilityArticle extracts an article with a readability pass over the full document.
// It is used in place of the oracle when none is configured. Subheader and thumbnail
// come from the page's Open Graph tags.
func ReadabilityArticle(html, pageURL string) (*entity.Article, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return nil, entity.ErrNoMarkup
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	parsed, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	article := &entity.Article{
		URL:     pageURL,
		Header:  strings.TrimSpace(parsed.Title),
		Content: normalizeParagraphs(parsed.TextContent),
	}
	if article.Content == "" {
		return nil, fmt.Errorf("%w: readability found no text", entity.ErrStructureMismatch)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		article.Subheader = metaContent(doc, "og:description")
		article.Thumbnail = metaContent(doc, "og:image")
	}
	return article, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

// normalizeParagraphs collapses the text into trimmed, non-empty paragraphs.
func normalizeParagraphs(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, paragraphSeparator)
}
