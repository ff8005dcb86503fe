package naverhtml

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"quoteproxy/internal/httpx"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/normalize"
	"quoteproxy/internal/provider"
)

const (
	defaultBaseURL = "https://finance.naver.com"
	defaultCharset = "euc-kr"
)

// Matcher is a named pattern whose first capture group holds the value.
type Matcher struct {
	Name string
	Re   *regexp.Regexp
}

func (m Matcher) find(page string) (string, bool) {
	sub := m.Re.FindStringSubmatch(page)
	if len(sub) < 2 {
		return "", false
	}
	return sub[1], true
}

// PriceMatchers are tried in order against the item page.
var PriceMatchers = []Matcher{
	{"now_val", regexp.MustCompile(`id=["']_nowVal["'][^>]*>([\d,]+)<`)},
	{"no_today", regexp.MustCompile(`class=["']no_today["'][\s\S]*?<span[^>]*>([\d,]+)<`)},
	{"price_strong", regexp.MustCompile(`class=["']price["'][^>]*>\s*<strong[^>]*>([\d,]+)<`)},
	{"blind", regexp.MustCompile(`<span class="blind">([\d,]+)</span>`)},
}

// NameMatchers are tried in order against the item page.
var NameMatchers = []Matcher{
	{"og_title", regexp.MustCompile(`<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)},
	{"title", regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)},
	{"wrap_company", regexp.MustCompile(`(?is)class=["']wrap_company["'][\s\S]*?<h2[^>]*>(.*?)</h2>`)},
}

// Option configures a Provider.
type Option func(*Provider)

func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithCharset sets the charset the page is decoded with. It overrides the
// response header, which the legacy pages do not set reliably.
func WithCharset(charset string) Option {
	return func(p *Provider) {
		if charset != "" {
			p.charset = charset
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(p *Provider) { p.log = log }
}

// Provider scrapes the desktop item page.
type Provider struct {
	http    *httpx.Client
	baseURL string
	charset string
	log     *logrus.Entry
}

func New(client *httpx.Client, opts ...Option) *Provider {
	p := &Provider{http: client, baseURL: defaultBaseURL, charset: defaultCharset}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDiscard(p.log)
	return p
}

func (p *Provider) Name() string { return "naver-html" }

func (p *Provider) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	page, err := p.fetchItemPage(ctx, code)
	if err != nil {
		return provider.Quote{}, err
	}
	price, matched := ParsePrice(page)
	if price <= 0 {
		return provider.Quote{}, provider.NewValidationError("no price pattern matched for %s", code)
	}
	p.log.WithField("code", code).WithField("matcher", matched).Debug("price scraped")
	return provider.Quote{Code: code, Price: price, Name: ParseName(page), Source: p.Name()}, nil
}

// LookupName scrapes only the display name. Used by the profile endpoint.
func (p *Provider) LookupName(ctx context.Context, code string) (string, error) {
	page, err := p.fetchItemPage(ctx, code)
	if err != nil {
		return "", err
	}
	name := ParseName(page)
	if name == "" {
		return "", provider.NewValidationError("no name pattern matched for %s", code)
	}
	return name, nil
}

func (p *Provider) fetchItemPage(ctx context.Context, code string) (string, error) {
	u := fmt.Sprintf("%s/item/main.naver?code=%s", p.baseURL, code)
	return p.http.GetTextAs(ctx, u, p.baseURL+"/", p.charset)
}

// ParsePrice applies PriceMatchers in order and returns the first positive
// price with the name of the matcher that produced it.
func ParsePrice(page string) (float64, string) {
	for _, m := range PriceMatchers {
		raw, ok := m.find(page)
		if !ok {
			continue
		}
		if v, ok := normalize.Number(raw); ok && v > 0 {
			return v, m.Name
		}
	}
	return 0, ""
}

// ParseName applies NameMatchers in order and returns the first non-empty
// cleaned name.
func ParseName(page string) string {
	for _, m := range NameMatchers {
		raw, ok := m.find(page)
		if !ok {
			continue
		}
		if name := normalize.Name(raw); name != "" {
			return name
		}
	}
	return ""
}
