package browser

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// page is the concrete cluster.Page returned by chromeBrowser.ToPage.
type page struct {
	url  string
	html string
}

func (p *page) URL() string { return p.url }

func (p *page) HTML() (string, error) { return p.html, nil }

// Markdown renders the page's HTML as markdown, used by job bodies that
// want a human-readable digest of a page rather than raw DOM access.
func (p *page) Markdown() (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(p.html)
	if err != nil {
		return "", fmt.Errorf("convert page to markdown: %w", err)
	}
	return out, nil
}
