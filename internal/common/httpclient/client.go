// Package httpclient wraps net/http with the retry policy used for every upstream REST call.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/weni-ai/insights/internal/common/metrics"
	"github.com/weni-ai/insights/internal/common/observability"
)

// maxErrorBody bounds how much of a failed response is kept on HTTPError.
const maxErrorBody = 4096

type Config struct {
	Timeout time.Duration `validate:"gt=0"`
	// Total number of attempts, including the first one
	MaxRetries uint `validate:"gte=1"`
	// Wait before the first retry; every further retry waits twice as long as the previous one
	InitialWait time.Duration `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second, MaxRetries: 3, InitialWait: time.Second}
}

type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers http.Header
	// Encoded as JSON when not nil
	Body interface{}
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) DecodeJSON(v interface{}) error {
	return errors.WithStack(json.Unmarshal(r.Body, v))
}

// HTTPError is returned for any response outside the 2xx range.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) UpstreamStatusCode() int {
	return e.StatusCode
}

type Client struct {
	http        *http.Client
	maxRetries  uint
	initialWait time.Duration
	onWait      func(time.Duration)
	bearerToken string
	recorder    observability.Recorder
	source      string
	metrics     *metrics.Metrics
}

type Option func(*Client)

// WithBearerToken authenticates every request with a static OAuth2 bearer token.
// The token wraps whatever transport the other options leave in place.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.bearerToken = token
	}
}

// WithRecorder reports every request that still fails once retries are exhausted.
// Cancelled requests are not reported.
func WithRecorder(recorder observability.Recorder, source string) Option {
	return func(c *Client) {
		c.recorder = recorder
		c.source = source
	}
}

func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = transport
	}
}

// WithWaitObserver is called with every backoff wait before it is slept.
func WithWaitObserver(onWait func(time.Duration)) Option {
	return func(c *Client) {
		c.onWait = onWait
	}
}

func NewClient(config Config, opts ...Option) *Client {
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	c := &Client{
		http:        &http.Client{Timeout: config.Timeout, Transport: http.DefaultTransport},
		maxRetries:  config.MaxRetries,
		initialWait: config.InitialWait,
		metrics:     metrics.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bearerToken != "" {
		c.http.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.bearerToken, TokenType: "Bearer"}),
			Base:   c.http.Transport,
		}
	}
	return c
}

// RequestWithRetry sends req until it gets a 2xx response or MaxRetries attempts have been made.
// The wait before retry n (zero based) is InitialWait * 2^n, so the waits run 1, 2, 4... units.
// The error from the final attempt is returned unchanged: *HTTPError for a non-2xx response,
// the transport error otherwise. A cancelled ctx stops the sequence and returns ctx.Err().
func (c *Client) RequestWithRetry(ctx context.Context, req Request) (*Response, error) {
	var body []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding body for %s", req.URL)
		}
		body = encoded
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}
	logger := log.WithField("method", req.Method).WithField("url", target.Redacted())

	var response *Response
	err = retry.Do(
		func() error {
			r, err := c.do(ctx, req, target, body)
			if err != nil {
				return err
			}
			response = r
			return nil
		},
		retry.Attempts(c.maxRetries),
		retry.Delay(c.initialWait),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			wait := c.initialWait << n
			logger.WithError(err).Warnf("attempt %d/%d failed, retrying in %s", n+1, c.maxRetries, wait)
			c.metrics.RecordHttpRetry(target.Host)
			if c.onWait != nil {
				c.onWait(wait)
			}
			return wait
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		if c.recorder != nil && ctx.Err() == nil {
			c.recorder.RecordException(ctx, err, map[string]string{
				observability.SourceTag: c.source,
				"method":                req.Method,
				"url":                   target.Redacted(),
			})
		}
		return nil, err
	}
	return response, nil
}

func (c *Client) do(ctx context.Context, req Request, target *url.URL, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for k, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(payload) > maxErrorBody {
			payload = payload[:maxErrorBody]
		}
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        target.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(payload),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

func buildURL(raw string, query url.Values) (*url.URL, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", raw)
	}
	if len(query) > 0 {
		merged := target.Query()
		for k, values := range query {
			for _, v := range values {
				merged.Add(k, v)
			}
		}
		target.RawQuery = merged.Encode()
	}
	return target, nil
}
