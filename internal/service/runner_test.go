package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/config"
	"github.com/scu-nlp/scu-crawler/internal/crawler"
)

func TestValidTarget(t *testing.T) {
	require.True(t, ValidTarget(TargetPersonnel))
	require.True(t, ValidTarget(TargetNews))
	require.True(t, ValidTarget(TargetAll))
	require.False(t, ValidTarget(""))
	require.False(t, ValidTarget("everything"))
}

func TestRunUnknownTarget(t *testing.T) {
	runner := NewCrawlRunner(config.Config{}, zap.NewNop())
	result := runner.Run(context.Background(), "everything", 0)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "unknown crawl target")
}

func TestMergeResults(t *testing.T) {
	personnel := crawler.Result{
		Success:         true,
		TotalCategories: 3,
		TotalDocuments:  10,
		UniquePDFLinks:  8,
	}
	news := crawler.Result{
		Success:       true,
		TotalPages:    4,
		TotalArticles: 20,
	}

	merged := mergeResults(personnel, news)
	require.True(t, merged.Success)
	require.Equal(t, 3, merged.TotalCategories)
	require.Equal(t, 10, merged.TotalDocuments)
	require.Equal(t, 8, merged.UniquePDFLinks)
	require.Equal(t, 4, merged.TotalPages)
	require.Equal(t, 20, merged.TotalArticles)
	require.Empty(t, merged.Error)
}

func TestMergeResultsPropagatesFailures(t *testing.T) {
	personnel := crawler.Result{Error: "menu unreachable"}
	news := crawler.Result{Error: "first page unreachable"}

	merged := mergeResults(personnel, news)
	require.False(t, merged.Success)
	require.Equal(t, "personnel: menu unreachable; news: first page unreachable", merged.Error)

	partial := mergeResults(crawler.Result{Success: true}, news)
	require.False(t, partial.Success)
	require.Equal(t, "news: first page unreachable", partial.Error)
}

// testConfig wires a runner at a local test site with politeness delays off.
func testConfig(t *testing.T, siteURL string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Websites.BaseURL = siteURL
	cfg.Websites.NewsURL = siteURL
	cfg.Crawler.Delays.RequestDelay = 0
	cfg.Crawler.Delays.RetryDelay = 0
	cfg.Crawler.Delays.MaxRetries = 0
	cfg.Storage.RawDataDir = t.TempDir()
	return cfg
}

func TestRunNewsEndToEnd(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/category/university-news", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, `<table><tbody></tbody></table>`)
			return
		}
		fmt.Fprintf(w, `<table><tbody><tr><td><a href="%s/article/1">Graduation ceremony</a></td></tr></tbody></table>`, server.URL)
	})
	mux.HandleFunc("/article/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div id="article_block"><p>ceremony report</p></div>`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL)
	runner := NewCrawlRunner(cfg, zap.NewNop())

	result := runner.Run(context.Background(), TargetNews, 3)
	require.True(t, result.Success)
	require.Equal(t, 1, result.TotalArticles)
	require.Equal(t, 2, result.TotalPages)

	require.FileExists(t, filepath.Join(cfg.Storage.RawDataDir, cfg.Storage.Files.NewsData))
	require.FileExists(t, filepath.Join(cfg.Storage.RawDataDir, cfg.Storage.Files.NewsTexts))
}

func TestRunPersonnelEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/web/person", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="group"><a href="/cat/a">人事任免公告</a></div>`)
	})
	mux.HandleFunc("/cat/a", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<table><tbody><tr><td><a href="/files/x.pdf">Salary schedule</a></td></tr></tbody></table>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL)
	runner := NewCrawlRunner(cfg, zap.NewNop())

	result := runner.Run(context.Background(), TargetPersonnel, 0)
	require.True(t, result.Success)
	require.Equal(t, 1, result.TotalCategories)
	require.Equal(t, 1, result.TotalDocuments)

	require.FileExists(t, filepath.Join(cfg.Storage.RawDataDir, cfg.Storage.Files.PDFLinks))
	require.FileExists(t, filepath.Join(cfg.Storage.RawDataDir, cfg.Storage.Files.PersonnelData))
}
