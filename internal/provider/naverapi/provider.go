package naverapi

import (
	"context"
	"errors"
	"fmt"

	"quoteproxy/internal/normalize"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/extract"
)

// DefaultEndpoints are tried in order for every code.
var DefaultEndpoints = []string{
	"/api/stock/%s/price",
	"/api/stock/%s/basic",
}

var priceFields = []extract.Field[float64]{
	extract.NumberAt("now", "price"),
	extract.NumberAt("closePrice"),
	extract.NumberAt("price"),
	extract.NumberAt("tradePrice"),
	extract.NumberAt("nv"),
}

var nameFields = []extract.Field[string]{
	extract.StringAt("stockName"),
	extract.StringAt("name"),
	extract.StringAt("stock", "name"),
	extract.StringAt("basic", "name"),
	extract.StringAt("nm"),
}

var changeFields = []extract.Field[float64]{
	extract.NumberAt("fluctuationsRatio"),
	extract.NumberAt("now", "fluctuationsRatio"),
	extract.NumberAt("cr"),
}

// Provider resolves codes against the mobile quote JSON API.
type Provider struct {
	c         *client
	endpoints []string
}

func New(opts ...Option) *Provider {
	o := buildOptions(opts)
	return &Provider{c: newClient(o), endpoints: o.endpoints}
}

func (p *Provider) Name() string { return "naver-mobile" }

// Resolve tries each candidate endpoint until one yields a positive price.
// A name found on an earlier endpoint is kept for the final record.
func (p *Provider) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	var (
		name    string
		lastErr error
	)
	for _, tmpl := range p.endpoints {
		path := fmt.Sprintf(tmpl, code)
		doc, err := p.c.getJSON(ctx, path)
		if err != nil {
			lastErr = err
			p.c.log.WithField("code", code).WithField("path", path).WithError(err).Debug("candidate endpoint failed")
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			continue
		}
		if name == "" {
			name, _ = extract.FirstString(doc, nameFields...)
		}
		price, field, ok := extract.FirstPositive(doc, priceFields...)
		if !ok {
			lastErr = provider.NewValidationError("no price field in %s", path)
			continue
		}
		q := provider.Quote{Code: code, Price: price, Name: normalize.Name(name), Source: p.Name()}
		for _, f := range changeFields {
			if v, ok := f.Extract(doc); ok {
				pct := normalize.ChangePercent(price, 0, &v)
				q.ChangePercent = &pct
				break
			}
		}
		p.c.log.WithField("code", code).WithField("field", field).Debug("price extracted")
		return q, nil
	}
	if lastErr == nil {
		lastErr = provider.NewValidationError("no candidate endpoints for %s", code)
	}
	return provider.Quote{}, lastErr
}

// NameFetcher looks up display names from the basic info endpoint, which is
// served as UTF-8 even when the quote pages are not.
type NameFetcher struct {
	c    *client
	path string
}

func NewNameFetcher(opts ...Option) *NameFetcher {
	o := buildOptions(opts)
	return &NameFetcher{c: newClient(o), path: o.namePath}
}

func (n *NameFetcher) LookupName(ctx context.Context, code string) (string, error) {
	doc, err := n.c.getJSON(ctx, fmt.Sprintf(n.path, code))
	if err != nil {
		return "", err
	}
	name, ok := extract.FirstString(doc, nameFields...)
	if !ok {
		return "", provider.NewValidationError("no name for %s", code)
	}
	return normalize.Name(name), nil
}
