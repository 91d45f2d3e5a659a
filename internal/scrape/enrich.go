package scrape

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Enrich fills the title, description and markdown that Firecrawl left empty
// from the returned HTML. Documents without HTML are returned untouched.
func Enrich(doc *Document) error {
	if doc == nil {
		return nil
	}
	html := doc.HTML
	if html == "" {
		html = doc.RawHTML
	}
	if html == "" {
		return nil
	}

	if doc.Title() == "" || doc.Description() == "" {
		title, description, err := extractMeta(html)
		if err != nil {
			return err
		}
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		if doc.Title() == "" && title != "" {
			doc.Metadata["title"] = title
		}
		if doc.Description() == "" && description != "" {
			doc.Metadata["description"] = description
		}
	}

	if strings.TrimSpace(doc.Markdown) == "" {
		markdown, err := convertHTMLToMarkdown(html)
		if err != nil {
			return err
		}
		doc.Markdown = markdown
	}
	return nil
}

func extractMeta(html string) (title, description string, err error) {
	page, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	description = strings.TrimSpace(page.Find(`meta[name="description"]`).AttrOr("content", ""))
	if description == "" {
		description = strings.TrimSpace(page.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	return title, description, nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Remove("script", "style")

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown, nil
}
