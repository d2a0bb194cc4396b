package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks outbound HTTP attempts by outcome.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scu_crawler_requests_total",
		Help: "The total number of HTTP request attempts, labeled by outcome.",
	}, []string{"result"})
	// retriesTotal tracks attempts that were followed by a retry.
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scu_crawler_retries_total",
		Help: "The total number of retried HTTP requests.",
	})
	// documentsTotal tracks attachment URLs recorded by personnel runs.
	documentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scu_crawler_documents_total",
		Help: "The total number of attachment URLs recorded.",
	})
	// articlesTotal tracks news articles kept by news runs.
	articlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scu_crawler_articles_total",
		Help: "The total number of news articles captured.",
	})
)
