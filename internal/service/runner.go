// Package service composes the crawl engine into runnable targets for the
// CLI and the HTTP layer.
package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/config"
	"github.com/scu-nlp/scu-crawler/internal/crawler"
	"github.com/scu-nlp/scu-crawler/internal/storage/local"
)

// Crawl targets accepted by the runner and the HTTP trigger endpoint.
const (
	TargetPersonnel = "personnel"
	TargetNews      = "news"
	TargetAll       = "all"
)

// ValidTarget reports whether target names a runnable crawl.
func ValidTarget(target string) bool {
	switch target {
	case TargetPersonnel, TargetNews, TargetAll:
		return true
	}
	return false
}

// CrawlRunner builds a fresh Session and orchestrator per call, so every
// run owns its transport from start to finish and releases it on every exit
// path.
type CrawlRunner struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewCrawlRunner returns a runner bound to one loaded configuration.
func NewCrawlRunner(cfg config.Config, logger *zap.Logger) *CrawlRunner {
	return &CrawlRunner{cfg: cfg, logger: logger}
}

// Run executes the named crawl target as a single blocking call. A positive
// pages value overrides the configured news page ceiling for this call.
func (r *CrawlRunner) Run(ctx context.Context, target string, pages int) crawler.Result {
	switch target {
	case TargetPersonnel:
		return r.runPersonnel(ctx)
	case TargetNews:
		return r.runNews(ctx, pages)
	case TargetAll:
		personnel := r.runPersonnel(ctx)
		news := r.runNews(ctx, pages)
		return mergeResults(personnel, news)
	default:
		return crawler.Result{Error: "unknown crawl target: " + target}
	}
}

func (r *CrawlRunner) runPersonnel(ctx context.Context) crawler.Result {
	sink, err := r.newSink()
	if err != nil {
		return crawler.Result{Error: err.Error()}
	}
	session := crawler.NewSession(r.cfg.SessionConfig(), r.logger)
	defer session.Close()

	orchestrator := crawler.NewPersonnelCrawler(session, sink, r.cfg.PersonnelConfig(), r.logger)
	return orchestrator.Crawl(ctx)
}

func (r *CrawlRunner) runNews(ctx context.Context, pages int) crawler.Result {
	sink, err := r.newSink()
	if err != nil {
		return crawler.Result{Error: err.Error()}
	}
	session := crawler.NewSession(r.cfg.SessionConfig(), r.logger)
	defer session.Close()

	orchestrator := crawler.NewNewsCrawler(session, sink, r.cfg.NewsConfig(pages), r.logger)
	return orchestrator.Crawl(ctx)
}

func (r *CrawlRunner) newSink() (*local.Sink, error) {
	files := local.FileNames{
		PDFLinks:      r.cfg.Storage.Files.PDFLinks,
		PersonnelData: r.cfg.Storage.Files.PersonnelData,
		NewsTexts:     r.cfg.Storage.Files.NewsTexts,
		NewsData:      r.cfg.Storage.Files.NewsData,
	}
	return local.NewSink(r.cfg.Storage.RawDataDir, files, r.logger)
}

// mergeResults combines the two per-site results of an "all" run into one
// terminal value.
func mergeResults(personnel, news crawler.Result) crawler.Result {
	merged := crawler.Result{
		Success:         personnel.Success && news.Success,
		TotalCategories: personnel.TotalCategories,
		TotalDocuments:  personnel.TotalDocuments,
		UniquePDFLinks:  personnel.UniquePDFLinks,
		TotalPages:      news.TotalPages,
		TotalArticles:   news.TotalArticles,
	}
	var errs []string
	if personnel.Error != "" {
		errs = append(errs, "personnel: "+personnel.Error)
	}
	if news.Error != "" {
		errs = append(errs, "news: "+news.Error)
	}
	merged.Error = strings.Join(errs, "; ")
	return merged
}
