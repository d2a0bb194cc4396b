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
	articleLinkSelector    = "tbody a"
	articleContentSelector = "#article_block p"
)

// NewsConfig holds the site parameters of the flat paginated crawl.
// MaxPages is the configured ceiling for one run; overriding it for a single
// call is done by constructing the crawler with a different value, never by
// mutating shared configuration.
type NewsConfig struct {
	CategoryURL string
	MaxPages    int
}

// NewsCrawler walks the news site listing pages and captures article text.
type NewsCrawler struct {
	session *Session
	sink    NewsSink
	cfg     NewsConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewNewsCrawler wires a news orchestrator. The sink may be nil for callers
// that only want the Result.
func NewNewsCrawler(session *Session, sink NewsSink, cfg NewsConfig, logger *zap.Logger) *NewsCrawler {
	return &NewsCrawler{
		session: session,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Crawl iterates listing pages up to the configured ceiling, stopping early
// on the first page that yields no articles. Being unable to fetch the very
// first listing page is the only terminal failure; every later degradation
// is absorbed.
func (c *NewsCrawler) Crawl(ctx context.Context) Result {
	c.logger.Info("starting news crawl", zap.Int("max_pages", c.cfg.MaxPages))

	var articles []ArticleRecord
	pagesProcessed := 0
	for page := 1; page <= c.cfg.MaxPages; page++ {
		pagesProcessed = page

		pageArticles, err := c.crawlListingPage(ctx, page)
		if err != nil {
			if page == 1 {
				c.logger.Error("cannot fetch first listing page", zap.Error(err))
				return Result{Error: fmt.Sprintf("fetch first listing page: %v", err)}
			}
			c.logger.Warn("cannot fetch listing page", zap.Int("page", page), zap.Error(err))
			break
		}
		articles = append(articles, pageArticles...)
		c.logger.Info("listing page done",
			zap.Int("page", page),
			zap.Int("articles", len(pageArticles)),
		)

		// An empty listing page means no further real pages exist.
		if len(pageArticles) == 0 {
			c.logger.Info("empty listing page, stopping", zap.Int("page", page))
			break
		}
	}

	c.persist(articles)

	result := Result{
		Success:       true,
		TotalPages:    pagesProcessed,
		TotalArticles: len(articles),
	}
	c.logger.Info("news crawl finished",
		zap.Int("pages", result.TotalPages),
		zap.Int("articles", result.TotalArticles),
	)
	return result
}

// crawlListingPage fetches one listing page and returns the articles kept
// from it. The error return is non-nil only for a listing fetch failure;
// per-article degradations are absorbed here.
func (c *NewsCrawler) crawlListingPage(ctx context.Context, page int) ([]ArticleRecord, error) {
	pageURL := fmt.Sprintf("%s?page=%d", c.cfg.CategoryURL, page)
	doc, err := c.session.FetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	type linkPair struct {
		url   string
		title string
	}
	var pairs []linkPair
	doc.Find(articleLinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		title := strings.Join(strings.Fields(sel.Text()), " ")
		if !ok || href == "" || title == "" {
			return
		}
		pairs = append(pairs, linkPair{url: href, title: title})
	})

	var kept []ArticleRecord
	for _, pair := range pairs {
		record, ok := c.crawlArticle(ctx, pair.url, pair.title)
		if !ok {
			continue
		}
		kept = append(kept, record)
		articlesTotal.Inc()
	}
	return kept, nil
}

// crawlArticle fetches one article page and extracts its paragraph text.
// The article is skipped when the fetch fails, the content container has no
// paragraphs, or the concatenated text is empty.
func (c *NewsCrawler) crawlArticle(ctx context.Context, articleURL, title string) (ArticleRecord, bool) {
	doc, err := c.session.FetchDocument(ctx, articleURL)
	if err != nil {
		c.logger.Warn("cannot fetch article", zap.String("url", articleURL), zap.Error(err))
		return ArticleRecord{}, false
	}

	paragraphs := doc.Find(articleContentSelector)
	if paragraphs.Length() == 0 {
		c.logger.Warn("article has no content paragraphs", zap.String("url", articleURL))
		return ArticleRecord{}, false
	}

	var content strings.Builder
	paragraphs.Each(func(_ int, sel *goquery.Selection) {
		content.WriteString(strings.TrimSpace(sel.Text()))
	})
	if content.Len() == 0 {
		c.logger.Warn("article content is empty", zap.String("url", articleURL))
		return ArticleRecord{}, false
	}

	c.logger.Debug("article captured", zap.String("title", title))
	return ArticleRecord{
		URL:        articleURL,
		Title:      title,
		Content:    content.String(),
		CapturedAt: c.now().Format(time.RFC3339),
	}, true
}

// persist hands the finished article list to the sink.
func (c *NewsCrawler) persist(articles []ArticleRecord) {
	if c.sink == nil {
		return
	}
	data := NewsData{
		Articles:       articles,
		TotalCount:     len(articles),
		CrawlTimestamp: c.now().Format(time.RFC3339),
	}
	if err := c.sink.SaveNews(data); err != nil {
		c.logger.Error("persist news results failed", zap.Error(err))
	}
}
