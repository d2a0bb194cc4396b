package crawler

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var onclickRedirectPattern = regexp.MustCompile(`location\.href=['"]?([^'";]+)`)

// navigationLabels are pager glyphs and labels that must never be read as
// content links.
var navigationLabels = map[string]struct{}{
	"2":   {},
	"»":   {},
	"«":   {},
	"‹":   {},
	"›":   {},
	"下一頁": {},
	"上一頁": {},
	"首頁":  {},
	"末頁":  {},
}

// ResolveHref normalizes an anchor into an absolute URL. A placeholder "#"
// href falls back to the inline onclick redirect target; root-relative hrefs
// are prefixed with baseURL. The second return is false when nothing
// resolvable is present.
func ResolveHref(sel *goquery.Selection, baseURL string) (string, bool) {
	href, ok := sel.Attr("href")
	if !ok {
		return "", false
	}
	href = strings.TrimSpace(href)

	if href == "#" {
		onclick := sel.AttrOr("onclick", "")
		match := onclickRedirectPattern.FindStringSubmatch(onclick)
		if match == nil {
			return "", false
		}
		href = strings.Trim(match[1], `'"; `)
	}
	if href == "" {
		return "", false
	}
	if strings.HasPrefix(href, "/") {
		href = baseURL + href
	}
	return href, true
}

// FilterNavigation drops pager chrome from a set of candidate anchors:
// anchors whose trimmed text is at most three runes or matches a known
// pagination label.
func FilterNavigation(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) <= 3 {
			return false
		}
		_, nav := navigationLabels[text]
		return !nav
	})
}

// absoluteAgainst prefixes non-absolute hrefs with baseURL. Attachment hrefs
// from AJAX fragments are either absolute or site-rooted.
func absoluteAgainst(href, baseURL string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return baseURL + href
}
