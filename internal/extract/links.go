package extract

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Link is an article link found in rendered wiki HTML
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ListLinks returns the first article link of every list item in the
// document, in document order, deduplicated by title. Table-of-contents
// entries, red links and in-page anchors are skipped. baseURL resolves
// relative hrefs and may be empty.
func ListLinks(htmlContent string, baseURL string) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	items := findAll(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "li" {
			return false
		}
		return !strings.Contains(attr(n, "class"), "tocsection")
	})

	var links []Link
	for _, li := range items {
		a := findFirst(li, func(n *html.Node) bool {
			if n.Type != html.ElementNode || n.Data != "a" {
				return false
			}
			href := attr(n, "href")
			return href != "" && !strings.HasPrefix(href, "#") && !hasClass(n, "new") && !hasClass(n, "external")
		})
		if a == nil {
			continue
		}

		title := strings.TrimSpace(attr(a, "title"))
		if title == "" {
			title = nodeText(a)
		}
		if title == "" {
			continue
		}

		link := Link{Title: title}
		if base != nil {
			link.URL = resolveURL(base, attr(a, "href"))
		}
		links = append(links, link)
	}

	return dedupeLinks(links), nil
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	// Skip javascript: and mailto: links
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)

	// Only keep http/https URLs
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

func dedupeLinks(links []Link) []Link {
	seen := make(map[string]bool)
	var unique []Link

	for _, l := range links {
		if !seen[l.Title] {
			seen[l.Title] = true
			unique = append(unique, l)
		}
	}

	return unique
}
