package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// FetchDocument retrieves url via GET and parses the body into a queryable
// document. Transport failures and unparsable bodies surface as a single
// error class so callers only distinguish "page available" from "not".
func (s *Session) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.Execute(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", url, err)
	}
	return doc, nil
}
