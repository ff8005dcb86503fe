package realtime

import (
	"net/http"
)

const (
	baseURL = "https://polling.finance.naver.com"
	// defaultCharset is assumed when the response carries no charset parameter.
	defaultCharset = "euc-kr"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=realtime_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the realtime polling API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// charset decodes bodies whose Content-Type names none.
	charset string
}

// ClientOption is a configuration option for the realtime client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithCharset sets the fallback charset used to decode responses.
func WithCharset(charset string) ClientOption {
	return func(c *Client) {
		if charset != "" {
			c.charset = charset
		}
	}
}

// NewClient creates a new realtime client.
func NewClient(options ...ClientOption) *Client {
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		charset:    defaultCharset,
	}
	client.header.Set("Referer", "https://finance.naver.com/")
	for _, option := range options {
		option(client)
	}
	return client
}
