// Package crawler implements the harvesting engine for the two Soochow
// University sites: the hierarchical personnel announcement site and the
// flat paginated news site.
package crawler

import "context"

// CategoryLink is one entry parsed from the personnel menu page.
// Duplicate titles are legal and processed independently.
type CategoryLink struct {
	Title string
	Href  string
}

// ArticleRecord is one kept news article. Records are append-only within a
// run; re-crawls may repeat articles.
type ArticleRecord struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	CapturedAt string `json:"timestamp"`
}

// PersonnelData is the structured payload handed to the persistence sink
// after a personnel run.
type PersonnelData struct {
	Categories     map[string][]string `json:"categories"`
	TotalDocuments int                 `json:"total_documents"`
	CrawlTimestamp string              `json:"crawl_timestamp"`
}

// NewsData is the structured payload handed to the persistence sink after a
// news run.
type NewsData struct {
	Articles       []ArticleRecord `json:"articles"`
	TotalCount     int             `json:"total_count"`
	CrawlTimestamp string          `json:"crawl_timestamp"`
}

// Result is the terminal value of an orchestrator call. Per-variant counts
// are zero for the other variant.
type Result struct {
	Success         bool   `json:"success"`
	TotalCategories int    `json:"total_categories,omitempty"`
	TotalDocuments  int    `json:"total_documents,omitempty"`
	UniquePDFLinks  int    `json:"unique_pdf_links,omitempty"`
	TotalPages      int    `json:"total_pages,omitempty"`
	TotalArticles   int    `json:"total_articles,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Crawler is the capability shared by both orchestrators: a single blocking
// call that runs to completion and returns a final Result.
type Crawler interface {
	Crawl(ctx context.Context) Result
}

// PersonnelSink accepts the finished output of a personnel run.
type PersonnelSink interface {
	SavePersonnel(links []string, data PersonnelData) error
}

// NewsSink accepts the finished output of a news run.
type NewsSink interface {
	SaveNews(data NewsData) error
}
