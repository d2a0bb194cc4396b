package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/crawler"
	"github.com/scu-nlp/scu-crawler/internal/service"
)

// newCrawlCmd groups the crawl subcommands.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run a crawl and persist its results",
	}
	cmd.AddCommand(newCrawlPersonnelCmd(), newCrawlNewsCmd())
	return cmd
}

func newCrawlPersonnelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personnel",
		Short: "Crawl the personnel announcement site",
		Long: `Walks the personnel menu page, every category listing page, and the
attachment links behind them, writing the unique link list and the
structured category data to the configured data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := service.NewCrawlRunner(cfg, logger)
			result := runner.Run(cmd.Context(), service.TargetPersonnel, 0)
			return reportResult(result)
		},
	}
}

func newCrawlNewsCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Crawl the campus news site",
		Long: `Walks the paginated news listing up to the configured page ceiling,
capturing each article's text, and writes the article dump and the
structured article data to the configured data directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner := service.NewCrawlRunner(cfg, logger)
			result := runner.Run(cmd.Context(), service.TargetNews, pages)
			return reportResult(result)
		},
	}
	cmd.Flags().IntVarP(&pages, "pages", "p", 0, "page ceiling for this run (default from config)")
	return cmd
}

func reportResult(result crawler.Result) error {
	if !result.Success {
		return errors.New(result.Error)
	}
	logger.Info("crawl succeeded",
		zap.Int("total_categories", result.TotalCategories),
		zap.Int("total_documents", result.TotalDocuments),
		zap.Int("unique_pdf_links", result.UniquePDFLinks),
		zap.Int("total_pages", result.TotalPages),
		zap.Int("total_articles", result.TotalArticles),
	)
	return nil
}
