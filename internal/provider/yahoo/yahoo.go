package yahoo

import (
	"context"
	"fmt"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/sirupsen/logrus"

	"quoteproxy/internal/logger"
	"quoteproxy/internal/normalize"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/symbol"
)

// ListFunc fetches quotes for exchange-qualified symbols.
type ListFunc func(symbols []string) ([]finance.Quote, error)

// List queries Yahoo Finance through finance-go.
func List(symbols []string) ([]finance.Quote, error) {
	var quotes []finance.Quote

	iter := quote.List(symbols)
	for iter.Next() {
		quotes = append(quotes, *iter.Quote())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Provider resolves bare codes by qualifying them with an exchange suffix.
type Provider struct {
	suffix string
	list   ListFunc
	log    *logrus.Entry
}

// New returns a Provider. A nil list uses the live Yahoo backend.
func New(suffix string, list ListFunc, log *logrus.Entry) *Provider {
	if list == nil {
		list = List
	}
	return &Provider{suffix: symbol.New(suffix).Suffix, list: list, log: logger.OrDiscard(log)}
}

func (p *Provider) Name() string { return "yahoo" }

func (p *Provider) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	got, err := p.FetchMany(ctx, []string{code})
	if err != nil {
		return provider.Quote{}, err
	}
	q, ok := got[code]
	if !ok {
		return provider.Quote{}, provider.NewValidationError("no yahoo quote for %s", code)
	}
	return q, nil
}

// FetchMany resolves all codes in one upstream call. Codes Yahoo does not
// know under the configured suffix are retried once under the other Korean
// market, so KOSDAQ listings resolve with a ".KS" default and vice versa.
// finance-go does not take a context, so cancellation is only observed
// before and after each call.
func (p *Provider) FetchMany(ctx context.Context, codes []string) (map[string]provider.Quote, error) {
	if len(codes) == 0 {
		return map[string]provider.Quote{}, nil
	}
	out, err := p.query(ctx, codes, p.suffix)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, c := range codes {
		if _, ok := out[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		alt := alternateSuffix(p.suffix)
		more, err := p.query(ctx, missing, alt)
		if err != nil {
			p.log.WithField("suffix", alt).WithError(err).Debug("yahoo retry failed")
		}
		for c, q := range more {
			out[c] = q
		}
	}
	p.log.WithField("requested", len(codes)).WithField("resolved", len(out)).Debug("yahoo batch fetched")
	return out, nil
}

func (p *Provider) query(ctx context.Context, codes []string, suffix string) (map[string]provider.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, provider.NewNetworkError(err)
	}
	symbols := make([]string, len(codes))
	for i, c := range codes {
		symbols[i] = c + suffix
	}

	type result struct {
		quotes []finance.Quote
		err    error
	}
	done := make(chan result, 1)
	go func() {
		qs, err := p.list(symbols)
		done <- result{qs, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, provider.NewNetworkError(ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return nil, provider.NewNetworkError(fmt.Errorf("listing yahoo quotes: %w", res.err))
	}

	out := make(map[string]provider.Quote, len(res.quotes))
	for _, fq := range res.quotes {
		code := symbol.Code(fq.Symbol)
		if code == "" || fq.RegularMarketPrice <= 0 {
			continue
		}
		raw := fq.RegularMarketChangePercent
		pct := normalize.ChangePercent(fq.RegularMarketPrice, fq.RegularMarketPreviousClose, &raw)
		out[code] = provider.Quote{
			Code:          code,
			Price:         fq.RegularMarketPrice,
			Name:          strings.TrimSpace(fq.ShortName),
			ChangePercent: &pct,
			Source:        p.Name(),
		}
	}
	return out, nil
}

func alternateSuffix(suffix string) string {
	if suffix == ".KQ" {
		return ".KS"
	}
	return ".KQ"
}
