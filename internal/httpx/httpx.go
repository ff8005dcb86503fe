package httpx

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"quoteproxy/internal/provider"
)

// BrowserUserAgent is sent to upstreams that reject non-browser clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// MaxBodyBytes bounds how much of an upstream body is read.
const MaxBodyBytes = 4 << 20

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: BrowserUserAgent,
		Headers: map[string]string{
			"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		},
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req.WithContext(ctx))
}

// GetText fetches url and returns the body decoded to UTF-8.
// The charset is taken from the Content-Type header, else fallbackCharset,
// else UTF-8. Non-2xx statuses become a *provider.FetchError.
func (c *Client) GetText(ctx context.Context, url, referer, fallbackCharset string) (string, error) {
	return c.getText(ctx, url, referer, func(contentType string) string {
		return Charset(contentType, fallbackCharset)
	})
}

// GetTextAs is GetText for pages whose declared charset cannot be trusted:
// the body is always decoded as charset, whatever the response headers say.
func (c *Client) GetTextAs(ctx context.Context, url, referer, charset string) (string, error) {
	return c.getText(ctx, url, referer, func(string) string { return charset })
}

func (c *Client) getText(ctx context.Context, url, referer string, charsetOf func(contentType string) string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	res, err := c.Do(ctx, req)
	if err != nil {
		return "", provider.NewNetworkError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, MaxBodyBytes))
		return "", provider.ClassifyStatus(res.StatusCode)
	}
	b, err := DecodeBody(io.LimitReader(res.Body, MaxBodyBytes), charsetOf(res.Header.Get("Content-Type")))
	if err != nil {
		return "", provider.NewNetworkError(err)
	}
	return string(b), nil
}

// Charset returns the charset parameter of a Content-Type value, or fallback.
func Charset(contentType, fallback string) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := strings.TrimSpace(params["charset"]); cs != "" {
				return cs
			}
		}
	}
	return fallback
}

// DecodeBody reads r and converts it from the named charset to UTF-8.
// Unknown or empty labels are read as UTF-8.
func DecodeBody(r io.Reader, charset string) ([]byte, error) {
	label := strings.ToLower(strings.TrimSpace(charset))
	if label == "" || label == "utf-8" || label == "utf8" {
		return io.ReadAll(r)
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return io.ReadAll(r)
	}
	return io.ReadAll(enc.NewDecoder().Reader(r))
}
