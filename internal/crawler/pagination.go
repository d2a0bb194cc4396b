package crawler

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

var pageParamPattern = regexp.MustCompile(`[?&]page=(\d+)`)

// MaxPage returns the highest page number referenced by the pagination
// anchors of a listing document. A listing without pagination links is a
// single-page listing, so the default is 1, not an error.
func MaxPage(doc *goquery.Document) int {
	maxPage := 1
	doc.Find("a[href*='?page=']").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		match := pageParamPattern.FindStringSubmatch(href)
		if match == nil {
			return
		}
		page, err := strconv.Atoi(match[1])
		if err != nil {
			return
		}
		if page > maxPage {
			maxPage = page
		}
	})
	return maxPage
}
