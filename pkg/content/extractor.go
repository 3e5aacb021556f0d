package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Extractor turns HTML into plain text
type Extractor interface {
	ExtractText(htmlContent string) (string, error)
}

// DefaultExtractor implements the Extractor interface using the standard extraction functions
type DefaultExtractor struct{}

// NewDefaultExtractor creates a new default extractor
func NewDefaultExtractor() *DefaultExtractor {
	return &DefaultExtractor{}
}

// ExtractText extracts the text using the default extraction logic
func (e *DefaultExtractor) ExtractText(htmlContent string) (string, error) {
	return ExtractText(htmlContent)
}

// ExtractText extracts the main readable text from HTML content. Readability
// handles full documents; short fragments (feed item bodies, card blurbs)
// that readability discards fall back to the plain text of the fragment.
func ExtractText(htmlContent string) (string, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return "", nil
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	text, ferr := FragmentText(htmlContent)
	if ferr != nil {
		if err != nil {
			return "", fmt.Errorf("failed to extract text: %w", err)
		}
		return "", ferr
	}
	return text, nil
}

// FragmentText returns the text nodes of an HTML fragment joined by spaces,
// with scripts and styles dropped.
func FragmentText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
