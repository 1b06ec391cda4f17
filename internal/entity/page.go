package entity

// Page is the markup captured by a browser session.
// HTML may be non-empty even when loading ended with an error.
type Page struct {
	URL  string
	HTML string
	// AnchorFound reports whether the expected anchor element appeared.
	AnchorFound bool
}

// HasMarkup reports whether any markup was captured.
func (p *Page) HasMarkup() bool {
	return p != nil && p.HTML != ""
}
