package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingServer answers 503 for the first failures requests, then 200 with body.
func failingServer(t *testing.T, failures int32, body string) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("try later"))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testClient(maxRetries uint, waits *[]time.Duration, opts ...Option) *Client {
	opts = append(opts, WithWaitObserver(func(d time.Duration) { *waits = append(*waits, d) }))
	return NewClient(Config{Timeout: 5 * time.Second, MaxRetries: maxRetries, InitialWait: time.Millisecond}, opts...)
}

func TestRequestWithRetry_BackoffDoubles(t *testing.T) {
	tests := map[string]struct {
		maxRetries uint
	}{
		"two attempts":  {maxRetries: 2},
		"four attempts": {maxRetries: 4},
		"six attempts":  {maxRetries: 6},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			server, calls := failingServer(t, int32(tc.maxRetries)-1, `{"ok": true}`)
			var waits []time.Duration
			client := testClient(tc.maxRetries, &waits)

			resp, err := client.RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, int32(tc.maxRetries), atomic.LoadInt32(calls))

			// 1 + 2 + ... + 2^(N-2) units
			var total time.Duration
			for i, wait := range waits {
				assert.Equal(t, time.Millisecond<<uint(i), wait)
				total += wait
			}
			assert.Len(t, waits, int(tc.maxRetries)-1)
			assert.Equal(t, time.Duration((1<<(tc.maxRetries-1))-1)*time.Millisecond, total)
		})
	}
}

func TestRequestWithRetry_FinalErrorUnchanged(t *testing.T) {
	server, calls := failingServer(t, 100, "")
	var waits []time.Duration
	client := testClient(3, &waits)

	_, err := client.RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: server.URL + "/api/features"})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Same(t, httpErr, err)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "try later", httpErr.Body)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	// no wait after the last attempt
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestRequestWithRetry_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var waits []time.Duration
	_, err := testClient(2, &waits).RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: url})
	require.Error(t, err)

	var httpErr *HTTPError
	assert.False(t, errors.As(err, &httpErr))
	assert.Len(t, waits, 1)
}

func TestRequestWithRetry_SendsJsonBodyQueryAndBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Project"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "x", r.URL.Query().Get("fixed"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, map[string]string{"hello": "world"}, payload)
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer server.Close()

	var waits []time.Duration
	client := testClient(1, &waits, WithBearerToken("s3cret"))
	resp, err := client.RequestWithRetry(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL + "/search?fixed=x",
		Query:   map[string][]string{"page": {"2"}},
		Headers: http.Header{"X-Project": {"abc"}},
		Body:    map[string]string{"hello": "world"},
	})
	require.NoError(t, err)

	var decoded struct {
		Count int `json:"count"`
	}
	require.NoError(t, resp.DecodeJSON(&decoded))
	assert.Equal(t, 3, decoded.Count)
	assert.Empty(t, waits)
}

func TestRequestWithRetry_ContextCancelledStopsWaiting(t *testing.T) {
	server, _ := failingServer(t, 100, "")
	client := NewClient(Config{Timeout: time.Second, MaxRetries: 5, InitialWait: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.RequestWithRetry(ctx, Request{Method: http.MethodGet, URL: server.URL})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

type countingTransport struct {
	calls int32
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&t.calls, 1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestWithBearerToken_WrapsCustomTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	for name, order := range map[string]func(*countingTransport) []Option{
		"token first": func(transport *countingTransport) []Option {
			return []Option{WithBearerToken("s3cret"), WithTransport(transport)}
		},
		"token last": func(transport *countingTransport) []Option {
			return []Option{WithTransport(transport), WithBearerToken("s3cret")}
		},
	} {
		t.Run(name, func(t *testing.T) {
			transport := &countingTransport{}
			client := NewClient(Config{Timeout: time.Second, MaxRetries: 1, InitialWait: time.Millisecond}, order(transport)...)
			_, err := client.RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
			require.NoError(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&transport.calls))
		})
	}
}

type recordedException struct {
	err  error
	tags map[string]string
}

type recordingRecorder struct {
	exceptions []recordedException
}

func (r *recordingRecorder) RecordException(_ context.Context, err error, tags map[string]string) {
	r.exceptions = append(r.exceptions, recordedException{err: err, tags: tags})
}

func TestRequestWithRetry_RecordsFinalFailure(t *testing.T) {
	server, _ := failingServer(t, 100, "")
	recorder := &recordingRecorder{}
	var waits []time.Duration
	client := testClient(2, &waits, WithRecorder(recorder, "search"))

	_, err := client.RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: server.URL + "/rooms/_count"})
	require.Error(t, err)

	require.Len(t, recorder.exceptions, 1)
	assert.Equal(t, err, recorder.exceptions[0].err)
	assert.Equal(t, "search", recorder.exceptions[0].tags["source"])
	assert.Equal(t, http.MethodGet, recorder.exceptions[0].tags["method"])
	assert.Equal(t, server.URL+"/rooms/_count", recorder.exceptions[0].tags["url"])
}

func TestRequestWithRetry_RecorderSkipsSuccessAndCancellation(t *testing.T) {
	server, _ := failingServer(t, 1, `{}`)
	recorder := &recordingRecorder{}
	var waits []time.Duration
	client := testClient(2, &waits, WithRecorder(recorder, "search"))

	_, err := client.RequestWithRetry(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.RequestWithRetry(ctx, Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
	assert.Empty(t, recorder.exceptions)
}
