package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/newsfeed/crawler-service/internal/entity"
	"github.com/newsfeed/crawler-service/pkg/utils"
)

// paragraphSeparator joins body paragraphs.
const paragraphSeparator = "\n\n"

// ContentSelectors locate article fields on a source's article page.
type ContentSelectors struct {
	Anchor    string
	Header    string
	Subheader string
	Thumbnail string
	// Body selects the container whose <p> children form the article text.
	Body string
}

// ParseLinks returns the absolute hrefs of all elements matching selector, in document order
// and without repeats.
func ParseLinks(html string, base *url.URL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		return nil, fmt.Errorf("%w: no elements match %q", entity.ErrStructureMismatch, selector)
	}

	var links []string
	selection.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := utils.ToAbsoluteURL(base, href)
		if err != nil {
			return
		}
		links = append(links, abs)
	})
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: elements matching %q carry no href", entity.ErrStructureMismatch, selector)
	}

	return utils.Dedupe(links), nil
}

// ParseArticle reads the article fields from html. Fields that cannot be located are
// returned as empty strings; the page must yield at least a header or body text.
func ParseArticle(html, pageURL string, sel ContentSelectors) (*entity.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	article := &entity.Article{
		URL:       pageURL,
		Header:    firstText(doc, sel.Header),
		Subheader: firstText(doc, sel.Subheader),
		Thumbnail: imageSource(doc, sel.Thumbnail, pageURL),
		Content:   bodyText(doc, sel.Body),
	}

	if article.Header == "" && article.Content == "" {
		return nil, fmt.Errorf("%w: neither %q nor %q produced text", entity.ErrStructureMismatch, sel.Header, sel.Body)
	}
	return article, nil
}

func firstText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func imageSource(doc *goquery.Document, selector, pageURL string) string {
	if selector == "" {
		return ""
	}
	node := doc.Find(selector).First()
	src, ok := node.Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		// the selector may point at a wrapper around the image
		src, ok = node.Find("img").First().Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return ""
		}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return strings.TrimSpace(src)
	}
	abs, err := utils.ToAbsoluteURL(base, src)
	if err != nil {
		return ""
	}
	return abs
}

func bodyText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	var parts []string
	doc.Find(selector).First().Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, paragraphSeparator)
}
