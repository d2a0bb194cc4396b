package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// attachmentHandler names the listing component's attachment-detail
	// handler on the announcement site.
	attachmentHandler = "web_listcomponent::onAttachmentDetail"
	// fragmentKey is the JSON key carrying the attachment HTML fragment.
	fragmentKey = "#rndbox_body"

	markerAttr  = "data-request"
	payloadAttr = "data-request-data"
)

// HasAttachmentMarker reports whether an anchor hides its attachments behind
// the AJAX attachment-detail handler.
func HasAttachmentMarker(sel *goquery.Selection) bool {
	return sel.AttrOr(markerAttr, "") == attachmentHandler
}

// AttachmentResolver replays the client-side attachment-detail request to
// reveal attachment links absent from the initial markup. Every failure mode
// degrades to an empty result; resolution is never fatal to the crawl.
type AttachmentResolver struct {
	session    *Session
	baseURL    string
	extensions []string
	logger     *zap.Logger
}

// NewAttachmentResolver builds a resolver bound to one session and base URL.
func NewAttachmentResolver(session *Session, baseURL string, extensions []string, logger *zap.Logger) *AttachmentResolver {
	return &AttachmentResolver{
		session:    session,
		baseURL:    baseURL,
		extensions: extensions,
		logger:     logger,
	}
}

// Resolve returns the attachment URLs for one marked anchor on pageURL.
func (r *AttachmentResolver) Resolve(ctx context.Context, sel *goquery.Selection, pageURL, title string) []string {
	payload, ok := sel.Attr(payloadAttr)
	if !ok {
		r.logger.Warn("attachment anchor missing request payload", zap.String("title", title))
		return nil
	}
	form, err := parseRequestPayload(payload)
	if err != nil {
		r.logger.Warn("unparsable attachment payload",
			zap.String("title", title),
			zap.String("payload", payload),
			zap.Error(err),
		)
		return nil
	}

	header := http.Header{}
	header.Set("X-Requested-With", "XMLHttpRequest")
	header.Set("X-October-Request-Handler", attachmentHandler)
	header.Set("Referer", pageURL)
	header.Set("Origin", r.baseURL)

	body, err := r.session.Execute(ctx, http.MethodPost, pageURL, header, form)
	if err != nil {
		r.logger.Error("attachment request failed",
			zap.String("title", title),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil
	}

	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		r.logger.Error("attachment response is not valid JSON",
			zap.String("title", title),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil
	}
	fragment, ok := response[fragmentKey].(string)
	if !ok {
		// The component answers without the fragment when a document simply
		// has no attachments.
		r.logger.Debug("no attachment fragment in response", zap.String("title", title))
		return nil
	}

	return r.collectAttachmentLinks(fragment, title)
}

// collectAttachmentLinks re-parses the HTML fragment and keeps anchors whose
// href ends with a configured document extension.
func (r *AttachmentResolver) collectAttachmentLinks(fragment, title string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		r.logger.Error("attachment fragment is not parsable",
			zap.String("title", title),
			zap.Error(err),
		)
		return nil
	}

	var found []string
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		if !r.hasDocumentExtension(href) {
			return
		}
		found = append(found, absoluteAgainst(href, r.baseURL))
	})
	if len(found) == 0 {
		r.logger.Debug("document has no attachments", zap.String("title", title))
	}
	return found
}

func (r *AttachmentResolver) hasDocumentExtension(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range r.extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// parseRequestPayload parses the comma-separated key:value metadata carried
// by the anchor. A part without exactly one colon makes the whole payload
// malformed.
func parseRequestPayload(payload string) (map[string]string, error) {
	form := make(map[string]string)
	for _, part := range strings.Split(payload, ",") {
		pieces := strings.Split(part, ":")
		if len(pieces) != 2 {
			return nil, fmt.Errorf("malformed payload part %q", part)
		}
		form[pieces[0]] = pieces[1]
	}
	return form, nil
}
