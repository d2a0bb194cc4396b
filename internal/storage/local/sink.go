// Package local persists finished crawl results to the local filesystem.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/crawler"
)

const newsDivider = 80

// FileNames configures the four output file names.
type FileNames struct {
	PDFLinks      string
	PersonnelData string
	NewsTexts     string
	NewsData      string
}

// Sink writes crawl outputs under a root directory. It implements
// crawler.PersonnelSink and crawler.NewsSink.
type Sink struct {
	root   string
	files  FileNames
	logger *zap.Logger
}

// NewSink returns a sink rooted at dir, creating it if needed.
func NewSink(root string, files FileNames, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	return &Sink{
		root:   root,
		files:  files,
		logger: logger,
	}, nil
}

// SavePersonnel writes the sorted unique link list and the structured
// personnel payload.
func (s *Sink) SavePersonnel(links []string, data crawler.PersonnelData) error {
	sorted := append([]string(nil), links...)
	sort.Strings(sorted)

	linksPath := filepath.Join(s.root, s.files.PDFLinks)
	if err := s.writeText(linksPath, strings.Join(sorted, "\n")+"\n"); err != nil {
		return err
	}
	s.logger.Info("saved attachment links",
		zap.Int("count", len(sorted)),
		zap.String("path", linksPath),
	)

	dataPath := filepath.Join(s.root, s.files.PersonnelData)
	if err := s.writeJSON(dataPath, data); err != nil {
		return err
	}
	s.logger.Info("saved personnel data", zap.String("path", dataPath))
	return nil
}

// SaveNews writes the per-article text dump and the structured news payload.
func (s *Sink) SaveNews(data crawler.NewsData) error {
	textPath := filepath.Join(s.root, s.files.NewsTexts)
	if err := s.writeText(textPath, renderNewsText(data.Articles)); err != nil {
		return err
	}
	s.logger.Info("saved news texts",
		zap.Int("count", len(data.Articles)),
		zap.String("path", textPath),
	)

	dataPath := filepath.Join(s.root, s.files.NewsData)
	if err := s.writeJSON(dataPath, data); err != nil {
		return err
	}
	s.logger.Info("saved news data", zap.String("path", dataPath))
	return nil
}

// renderNewsText formats one block per article: URL, title, content, then a
// fixed-width divider line.
func renderNewsText(articles []crawler.ArticleRecord) string {
	var lines []string
	for _, article := range articles {
		lines = append(lines,
			"URL: "+article.URL,
			"Title: "+article.Title,
			article.Content,
			strings.Repeat("=", newsDivider),
		)
	}
	return strings.Join(lines, "\n")
}

func (s *Sink) writeText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Sink) writeJSON(path string, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
