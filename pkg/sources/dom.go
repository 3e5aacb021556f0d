package sources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"idea-harvest/pkg/domain"
)

// SelectorRules locate catalog cards in rendered HTML. Every selector except
// Item is evaluated relative to the matched card.
type SelectorRules struct {
	Item        string // one element per catalog entry
	Title       string // empty reads the card's own text
	Description string
	Link        string // empty uses the card itself when it is an <a>, else its first <a>
	Tags        string
	TagAttr     string // attribute holding the tag name (e.g. "alt" on service icons); empty reads text
	Category    string
}

// ExtractCandidates applies rules to html and returns one candidate per card
// that has a title. Relative links are resolved against pageURL (or the
// document's <base>/canonical URL when present).
func ExtractCandidates(html, pageURL string, rules SelectorRules) ([]domain.RawCandidate, error) {
	if rules.Item == "" {
		return nil, fmt.Errorf("selector rules need an item selector")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	baseURL := pageURL
	if b := getBaseURL(doc); b != "" {
		baseURL = b
	}

	var result []domain.RawCandidate
	doc.Find(rules.Item).Each(func(_ int, card *goquery.Selection) {
		title := selectionText(card, rules.Title)
		if title == "" {
			return
		}
		result = append(result, domain.RawCandidate{
			Title:         title,
			Description:   selectionText(card, rules.Description),
			TagCandidates: tagsOf(card, rules.Tags, rules.TagAttr),
			Category:      selectionText(card, rules.Category),
			URL:           normalizeURL(linkOf(card, rules.Link), baseURL),
		})
	})
	return result, nil
}

func selectionText(card *goquery.Selection, selector string) string {
	s := card
	if selector != "" {
		s = card.Find(selector).First()
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func linkOf(card *goquery.Selection, selector string) string {
	var link *goquery.Selection
	switch {
	case selector != "":
		link = card.Find(selector).First()
	case goquery.NodeName(card) == "a":
		link = card
	default:
		link = card.Find("a[href]").First()
	}
	href, _ := link.Attr("href")
	return href
}

func tagsOf(card *goquery.Selection, selector, attr string) []string {
	if selector == "" {
		return nil
	}
	var tags []string
	card.Find(selector).Each(func(_ int, s *goquery.Selection) {
		var tag string
		if attr != "" {
			tag, _ = s.Attr(attr)
		} else {
			tag = s.Text()
		}
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	})
	return tags
}

// getBaseURL extracts the base URL from the HTML document.
// Tries the <base> tag, then the canonical link.
func getBaseURL(doc *goquery.Document) string {
	if baseHref, ok := doc.Find("base").First().Attr("href"); ok && baseHref != "" {
		return baseHref
	}
	if canonical, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok && canonical != "" {
		if parsed, err := url.Parse(canonical); err == nil && parsed.IsAbs() {
			return parsed.String()
		}
	}
	return ""
}

// normalizeURL resolves href against baseURL and drops the fragment.
// Anchors, javascript: and mailto: links yield "".
func normalizeURL(href, baseURL string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parsed.Fragment = ""
	if parsed.IsAbs() {
		return parsed.String()
	}

	if baseURL != "" {
		if base, err := url.Parse(baseURL); err == nil {
			resolved := base.ResolveReference(parsed)
			resolved.Fragment = ""
			return resolved.String()
		}
	}
	return parsed.String()
}
