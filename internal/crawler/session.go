package crawler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// RetryPolicy controls the retry loop of a Session. The retry delay is a
// fixed interval between attempts; RequestDelay is the politeness pause
// applied after every successful response.
type RetryPolicy struct {
	MaxRetries     int
	RetryDelay     time.Duration
	RequestDelay   time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// SessionConfig captures the transport knobs owned by a Session.
type SessionConfig struct {
	UserAgent          string
	InsecureSkipVerify bool
	Policy             RetryPolicy
}

// Session owns the HTTP transport for a single crawl run and is the single
// chokepoint for outbound requests. It is not safe for concurrent use; one
// orchestrator run owns one Session from creation to Close.
type Session struct {
	base      *colly.Collector
	transport *http.Transport
	policy    RetryPolicy
	logger    *zap.Logger
}

// NewSession builds a Session around a configured Colly collector.
func NewSession(cfg SessionConfig, logger *zap.Logger) *Session {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.Policy.ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: cfg.Policy.ReadTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // campus site serves a broken chain
		},
		MaxIdleConns:    16,
		IdleConnTimeout: 30 * time.Second,
	}

	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(transport)
	base.SetRequestTimeout(cfg.Policy.ConnectTimeout + cfg.Policy.ReadTimeout)

	return &Session{
		base:      base,
		transport: transport,
		policy:    cfg.Policy,
		logger:    logger,
	}
}

// Close releases pooled connections. Safe to call on every exit path.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

// Execute issues one logical request with bounded retries. Attempts run
// 0..MaxRetries inclusive; transport errors and non-2xx statuses count as
// failures. A successful response is followed by the politeness delay
// before the body is returned. Errors never escape mid-loop: the last
// failure is returned once attempts are exhausted.
func (s *Session) Execute(ctx context.Context, method, url string, header http.Header, form map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.logger.Debug("request",
			zap.String("url", url),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts_max", s.policy.MaxRetries+1),
		)

		body, err := s.doOnce(method, url, header, form)
		if err == nil {
			requestsTotal.WithLabelValues("ok").Inc()
			pause(ctx, s.policy.RequestDelay)
			return body, nil
		}
		requestsTotal.WithLabelValues("error").Inc()
		lastErr = err
		s.logger.Warn("request failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if attempt < s.policy.MaxRetries {
			retriesTotal.Inc()
			pause(ctx, s.policy.RetryDelay)
		}
	}
	return nil, fmt.Errorf("request %s %s: %w", method, url, lastErr)
}

// doOnce performs a single attempt on a cloned collector so per-request
// callbacks never leak between requests.
func (s *Session) doOnce(method, url string, header http.Header, form map[string]string) ([]byte, error) {
	collector := s.base.Clone()

	var (
		once     sync.Once
		resultCh = make(chan attemptResult, 1)
	)
	send := func(res attemptResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	if len(header) > 0 {
		collector.OnRequest(func(r *colly.Request) {
			for key, values := range header {
				for _, value := range values {
					r.Headers.Set(key, value)
				}
			}
		})
	}
	collector.OnResponse(func(r *colly.Response) {
		send(attemptResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown transport error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(attemptResult{err: err})
	})

	var err error
	if method == http.MethodPost {
		err = collector.Post(url, form)
	} else {
		err = collector.Visit(url)
	}
	if err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		return res.body, res.err
	default:
		return nil, errors.New("request produced no result")
	}
}

type attemptResult struct {
	body []byte
	err  error
}

// pause sleeps for delay unless the context finishes first.
func pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
