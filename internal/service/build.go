package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"quoteproxy/internal/batch"
	"quoteproxy/internal/chain"
	"quoteproxy/internal/config"
	"quoteproxy/internal/httpx"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/cache"
	"quoteproxy/internal/provider/naverapi"
	"quoteproxy/internal/provider/naverhtml"
	"quoteproxy/internal/provider/ratelimit"
	"quoteproxy/internal/provider/realtime"
	"quoteproxy/internal/provider/yahoo"
	"quoteproxy/internal/search"
	"quoteproxy/internal/symbol"
)

// Build wires providers, chain, cache and orchestrator from cfg.
func Build(cfg *config.Config, log *logrus.Logger) (*Service, error) {
	normalizer := symbol.New(cfg.Symbols.DefaultSuffix)
	httpClient := httpx.New(cfg.Providers.Timeout)
	pc := cfg.Providers

	var (
		rt     *realtime.Source
		yh     *yahoo.Provider
		html   *naverhtml.Provider
		byName = map[string]provider.Provider{}
	)
	if pc.Realtime.Enabled {
		client := realtime.NewClient(
			realtime.WithBaseURL(pc.Realtime.Endpoint),
			realtime.WithHTTPClient(httpClient.HTTP),
			realtime.WithCharset(pc.Realtime.Charset),
		)
		rt = realtime.NewSource(client, logger.WithComponent(log, "realtime"))
		byName["realtime"] = limit(rt, pc.Realtime)
	}
	if pc.Mobile.Enabled {
		byName["mobile"] = limit(naverapi.New(
			naverapi.WithBaseURL(pc.Mobile.Endpoint),
			naverapi.WithEndpoints(pc.Mobile.Paths...),
			naverapi.WithRetry(pc.Mobile.Retries, 200*time.Millisecond),
			naverapi.WithTimeout(pc.Timeout),
			naverapi.WithLogger(logger.WithComponent(log, "naverapi")),
		), pc.Mobile)
	}
	if pc.HTML.Enabled {
		html = naverhtml.New(httpClient,
			naverhtml.WithBaseURL(pc.HTML.Endpoint),
			naverhtml.WithCharset(pc.HTML.Charset),
			naverhtml.WithLogger(logger.WithComponent(log, "naverhtml")),
		)
		byName["html"] = limit(html, pc.HTML)
	}
	if pc.Yahoo.Enabled {
		yh = yahoo.New(cfg.Symbols.DefaultSuffix, nil, logger.WithComponent(log, "yahoo"))
		byName["yahoo"] = limit(yh, pc.Yahoo)
	}

	providers := make([]provider.Provider, 0, len(pc.Order))
	for _, name := range pc.Order {
		if p, ok := byName[name]; ok {
			providers = append(providers, p)
			continue
		}
		log.WithField("provider", name).Warn("provider listed in order but disabled; skipping")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no enabled providers in order %v", pc.Order)
	}

	var names []provider.NameLookup
	chainOpts := []chain.Option{
		chain.WithTimeout(pc.Timeout),
		chain.WithLogger(logger.WithComponent(log, "chain")),
	}
	if pc.Names.Enabled {
		nf := naverapi.NewNameFetcher(
			naverapi.WithBaseURL(pc.Names.Endpoint),
			naverapi.WithNamePath(firstOrEmpty(pc.Names.Paths)),
			naverapi.WithRetry(pc.Names.Retries, 200*time.Millisecond),
			naverapi.WithTimeout(pc.Timeout),
			naverapi.WithLogger(logger.WithComponent(log, "names")),
		)
		names = append(names, nf)
		chainOpts = append(chainOpts, chain.WithNameLookup(nf))
	}
	if html != nil {
		names = append(names, html)
	}
	resolver := chain.New(providers, chainOpts...)

	quotes := cache.New[provider.Quote](cfg.Cache.MaxItems)
	batchOpts := []batch.Option{
		batch.WithChunkSize(cfg.Batch.ChunkSize),
		batch.WithChunkDelay(cfg.Batch.ChunkDelay),
		batch.WithMaxConcurrency(cfg.Batch.MaxConcurrency),
		batch.WithQuoteTTL(cfg.Cache.QuoteTTL),
		batch.WithLogger(logger.WithComponent(log, "batch")),
	}
	switch {
	case cfg.Batch.CombinedSource == "yahoo" && yh != nil:
		batchOpts = append(batchOpts, batch.WithSource(yh))
	case cfg.Batch.CombinedSource == "realtime" && rt != nil:
		batchOpts = append(batchOpts, batch.WithSource(rt))
	case cfg.Batch.Combined:
		return nil, fmt.Errorf("combined mode needs the %s provider enabled", cfg.Batch.CombinedSource)
	}
	orchestrator := batch.New(resolver, quotes, normalizer, batchOpts...)

	var searcher Searcher
	if pc.Search.Enabled {
		searcher = search.New(httpClient, normalizer,
			search.WithBaseURL(pc.Search.Endpoint),
			search.WithCharset(pc.Search.Charset),
			search.WithLimit(pc.Search.Limit),
			search.WithLogger(logger.WithComponent(log, "search")),
		)
	}

	log.WithField("chain", resolver.Providers()).WithField("combined", cfg.Batch.Combined).Info("quote service configured")
	return New(Deps{
		Orchestrator: orchestrator,
		Quotes:       quotes,
		Resolver:     resolver,
		Names:        names,
		Searcher:     searcher,
		Normalizer:   normalizer,
		MaxItems:     cfg.Cache.MaxItems,
		Log:          logger.WithComponent(log, "service"),
	}, Options{
		Combined:      cfg.Batch.Combined,
		ProfileTTL:    cfg.Cache.ProfileTTL,
		SearchTTL:     cfg.Cache.SearchTTL,
		CacheMaxAge:   cfg.Cache.MaxAge,
		SweepInterval: cfg.Cache.SweepInterval,
	}), nil
}

// limit wraps p with the configured rate limiting. A token bucket is
// preferred when a per-minute rate is set, otherwise a minimum interval.
func limit(p provider.Provider, pc config.Provider) provider.Provider {
	switch {
	case pc.MaxRequestsPerMinute > 0:
		return ratelimit.NewLimited(p, float64(pc.MaxRequestsPerMinute)/60.0, pc.Burst)
	case pc.MinRequestInterval > 0:
		return &ratelimit.MinInterval{P: p, Interval: pc.MinRequestInterval}
	}
	return p
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
