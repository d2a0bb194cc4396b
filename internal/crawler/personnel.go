package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	categorySelector = ".group a"
	// Candidate document links live in the listing table body; some category
	// pages render them inside the alternate rndbox container instead. The
	// fallback is strict first-non-empty, never a union of both.
	primaryLinkSelector  = "tbody a"
	fallbackLinkSelector = "#rndbox_body a"
)

// PersonnelConfig holds the site parameters of the hierarchical crawl.
type PersonnelConfig struct {
	BaseURL    string
	MenuURL    string
	Extensions []string
}

// PersonnelCrawler walks the announcement site: menu page → categories →
// paginated listings → attachment links, deduplicating URLs globally across
// the run. It owns its Session for exactly one Crawl call.
type PersonnelCrawler struct {
	session  *Session
	resolver *AttachmentResolver
	sink     PersonnelSink
	cfg      PersonnelConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewPersonnelCrawler wires a personnel orchestrator. The sink may be nil
// for callers that only want the Result.
func NewPersonnelCrawler(session *Session, sink PersonnelSink, cfg PersonnelConfig, logger *zap.Logger) *PersonnelCrawler {
	return &PersonnelCrawler{
		session:  session,
		resolver: NewAttachmentResolver(session, cfg.BaseURL, cfg.Extensions, logger),
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Crawl runs the hierarchical crawl to completion. Only a failure to fetch
// the menu page (or a menu without categories) is terminal; anything that
// goes wrong inside a single category is logged, yields zero documents for
// that category, and the crawl moves on.
func (c *PersonnelCrawler) Crawl(ctx context.Context) Result {
	c.logger.Info("starting personnel crawl", zap.String("menu_url", c.cfg.MenuURL))

	menuDoc, err := c.session.FetchDocument(ctx, c.cfg.MenuURL)
	if err != nil {
		c.logger.Error("cannot fetch menu page", zap.String("url", c.cfg.MenuURL), zap.Error(err))
		return Result{Error: fmt.Sprintf("fetch menu page: %v", err)}
	}

	categories := parseCategoryLinks(menuDoc)
	if len(categories) == 0 {
		c.logger.Error("no category links found on menu page")
		return Result{Error: "no category links found"}
	}
	c.logger.Info("categories found", zap.Int("count", len(categories)))

	index := NewAttachmentIndex()
	totalDocuments := 0
	for _, category := range categories {
		count := c.crawlCategory(ctx, category, index)
		totalDocuments += count
		c.logger.Info("category done",
			zap.String("category", category.Title),
			zap.Int("documents", count),
		)
	}

	c.persist(index)

	result := Result{
		Success:         true,
		TotalCategories: len(categories),
		TotalDocuments:  totalDocuments,
		UniquePDFLinks:  index.UniqueCount(),
	}
	c.logger.Info("personnel crawl finished",
		zap.Int("categories", result.TotalCategories),
		zap.Int("documents", result.TotalDocuments),
		zap.Int("unique_links", result.UniquePDFLinks),
	)
	return result
}

// parseCategoryLinks reads category anchors from the menu container in
// document order, keeping duplicates.
func parseCategoryLinks(doc *goquery.Document) []CategoryLink {
	var links []CategoryLink
	doc.Find(categorySelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		links = append(links, CategoryLink{
			Title: strings.TrimSpace(sel.Text()),
			Href:  href,
		})
	})
	return links
}

// crawlCategory walks every listing page of one category and returns how
// many documents it recorded. Failures inside the category yield zero.
func (c *PersonnelCrawler) crawlCategory(ctx context.Context, category CategoryLink, index *AttachmentIndex) int {
	categoryURL := absoluteAgainst(category.Href, c.cfg.BaseURL)

	firstPage, err := c.session.FetchDocument(ctx, categoryURL)
	if err != nil {
		c.logger.Warn("cannot fetch category page",
			zap.String("category", category.Title),
			zap.String("url", categoryURL),
			zap.Error(err),
		)
		return 0
	}

	maxPage := MaxPage(firstPage)
	c.logger.Info("category pagination resolved",
		zap.String("category", category.Title),
		zap.Int("pages", maxPage),
	)

	documents := 0
	for page := 1; page <= maxPage; page++ {
		pageURL := fmt.Sprintf("%s?page=%d", categoryURL, page)
		documents += c.crawlPage(ctx, pageURL, category.Title, index)
	}
	return documents
}

// crawlPage extracts document links from one listing page. Candidate nodes
// come from the primary selector, else the fallback; pager chrome is
// filtered out before resolution.
func (c *PersonnelCrawler) crawlPage(ctx context.Context, pageURL, categoryTitle string, index *AttachmentIndex) int {
	doc, err := c.session.FetchDocument(ctx, pageURL)
	if err != nil {
		c.logger.Warn("cannot fetch listing page",
			zap.String("category", categoryTitle),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return 0
	}

	nodes := doc.Find(primaryLinkSelector)
	if nodes.Length() == 0 {
		nodes = doc.Find(fallbackLinkSelector)
	}
	candidates := FilterNavigation(nodes)

	documents := 0
	candidates.Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())

		var urls []string
		if HasAttachmentMarker(sel) {
			urls = c.resolver.Resolve(ctx, sel, pageURL, title)
		} else if href, ok := ResolveHref(sel, c.cfg.BaseURL); ok {
			urls = []string{href}
		}

		for _, url := range urls {
			if !index.Add(title, url) {
				continue
			}
			documents++
			documentsTotal.Inc()
			c.logger.Debug("document recorded",
				zap.String("title", title),
				zap.String("url", url),
			)
		}
	})
	return documents
}

// persist hands the finished aggregate to the sink. Sink failures are
// logged, not fatal: the crawl itself already succeeded.
func (c *PersonnelCrawler) persist(index *AttachmentIndex) {
	if c.sink == nil {
		return
	}
	data := PersonnelData{
		Categories:     index.Categories(),
		TotalDocuments: index.UniqueCount(),
		CrawlTimestamp: c.now().Format(time.RFC3339),
	}
	if err := c.sink.SavePersonnel(index.UniqueURLs(), data); err != nil {
		c.logger.Error("persist personnel results failed", zap.Error(err))
	}
}
