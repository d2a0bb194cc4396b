package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(maxRetries int) *Session {
	return NewSession(SessionConfig{
		UserAgent: "scu-crawler-test/1.0",
		Policy: RetryPolicy{
			MaxRetries:     maxRetries,
			RetryDelay:     time.Millisecond,
			RequestDelay:   0,
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    5 * time.Second,
		},
	}, zap.NewNop())
}

func TestExecuteRetriesExhaustAgainstFailingEndpoint(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	session := newTestSession(3)
	defer session.Close()

	_, err := session.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	require.EqualValues(t, 4, attempts.Load(), "max_retries=3 must mean exactly 4 attempts")
}

func TestExecuteSucceedsAfterTransientFailures(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer server.Close()

	session := newTestSession(3)
	defer session.Close()

	body, err := session.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "finally", string(body))
	require.EqualValues(t, 3, attempts.Load())
}

func TestExecuteZeroRetriesMeansSingleAttempt(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.NotFound(w, nil)
	}))
	defer server.Close()

	session := newTestSession(0)
	defer session.Close()

	_, err := session.Execute(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	require.EqualValues(t, 1, attempts.Load())
}

func TestExecuteSendsCustomHeadersAndForm(t *testing.T) {
	var gotHandler, gotValue string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotHandler = r.Header.Get("X-October-Request-Handler")
		gotValue = r.FormValue("file_id")
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	session := newTestSession(0)
	defer session.Close()

	header := http.Header{}
	header.Set("X-October-Request-Handler", attachmentHandler)
	_, err := session.Execute(context.Background(), http.MethodPost, server.URL, header, map[string]string{"file_id": "42"})
	require.NoError(t, err)
	require.Equal(t, attachmentHandler, gotHandler)
	require.Equal(t, "42", gotValue)
}

func TestExecuteHonorsCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	session := newTestSession(5)
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Execute(ctx, http.MethodGet, server.URL, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchDocumentParsesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p id="hello">hi</p></body></html>`))
	}))
	defer server.Close()

	session := newTestSession(0)
	defer session.Close()

	doc, err := session.FetchDocument(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, "hi", doc.Find("#hello").Text())
}

func TestFetchDocumentSurfacesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	session := newTestSession(0)
	defer session.Close()

	_, err := session.FetchDocument(context.Background(), server.URL)
	require.Error(t, err)
}

func TestPauseReturnsEarlyOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	pause(ctx, time.Minute)
	require.Less(t, time.Since(start), time.Second)
}
