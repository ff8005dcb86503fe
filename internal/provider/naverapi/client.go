package naverapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"quoteproxy/internal/httpx"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
)

const (
	defaultBaseURL          = "https://m.stock.naver.com"
	defaultRetryCount       = 1
	defaultRetryWaitTime    = 200 * time.Millisecond
	defaultRetryMaxWaitTime = time.Second
	defaultTimeout          = 4 * time.Second
)

// client is the resty based transport shared by Provider and NameFetcher.
type client struct {
	http *resty.Client
	log  *logrus.Entry
}

// Option configures a Provider or NameFetcher.
type Option func(*options)

type options struct {
	baseURL   string
	endpoints []string
	namePath  string
	retries   int
	retryWait time.Duration
	timeout   time.Duration
	log       *logrus.Entry
}

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithEndpoints overrides the candidate endpoint templates. Each template
// takes the bare code as its only %s verb. An empty list keeps the defaults.
func WithEndpoints(endpoints ...string) Option {
	return func(o *options) {
		if len(endpoints) > 0 {
			o.endpoints = endpoints
		}
	}
}

// WithNamePath overrides the endpoint template used for name lookups.
func WithNamePath(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.namePath = tmpl
		}
	}
}

// WithTimeout bounds each request, retries included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetry sets how often a failed request is retried and the base wait.
func WithRetry(count int, wait time.Duration) Option {
	return func(o *options) { o.retries, o.retryWait = count, wait }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(opts []Option) options {
	o := options{
		baseURL:   defaultBaseURL,
		endpoints: DefaultEndpoints,
		namePath:  "/api/stock/%s/basic",
		retries:   defaultRetryCount,
		retryWait: defaultRetryWaitTime,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logger.OrDiscard(o.log)
	return o
}

func newClient(o options) *client {
	c := &client{log: o.log}
	c.http = resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", httpx.BrowserUserAgent).
		SetHeader("Referer", o.baseURL+"/").
		SetRetryCount(o.retries).
		SetRetryWaitTime(o.retryWait).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(c.retryHook)
	return c
}

// retryCondition retries transport errors, 5xx, 408 and 429.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	}
	return false
}

func (c *client) retryHook(r *resty.Response, err error) {
	entry := c.log.WithField("url", r.Request.URL).WithField("attempt", r.Request.Attempt)
	if err != nil {
		entry.WithError(err).Debug("retrying request due to error")
		return
	}
	entry.WithField("status_code", r.StatusCode()).Debug("retrying request due to status code")
}

// getJSON fetches path and decodes the body into a generic document.
func (c *client) getJSON(ctx context.Context, path string) (any, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, provider.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return nil, provider.ClassifyStatus(resp.StatusCode())
	}

	var doc any
	dec := json.NewDecoder(strings.NewReader(resp.String()))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &provider.FetchError{
			Kind:    provider.ErrorKindValidation,
			Message: fmt.Sprintf("decoding %s: %v", path, err),
			Cause:   err,
		}
	}
	return doc, nil
}
