package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"quoteproxy/internal/batch"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/cache"
	"quoteproxy/internal/search"
	"quoteproxy/internal/symbol"
)

// ErrUpstreamUnavailable marks request-level failures where no per-symbol
// breakdown is possible.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Searcher finds symbols by free text.
type Searcher interface {
	Search(ctx context.Context, q string) ([]search.Result, error)
}

// Options holds the tunables of a Service.
type Options struct {
	Combined   bool
	ProfileTTL time.Duration
	SearchTTL  time.Duration
	// CacheMaxAge and SweepInterval drive the background sweeper.
	CacheMaxAge   time.Duration
	SweepInterval time.Duration
}

// Service answers the HTTP endpoints. It owns the caches and the TTL policy.
type Service struct {
	opts         Options
	orchestrator *batch.Orchestrator
	quotes       *cache.Cache[provider.Quote]
	names        []provider.NameLookup
	resolver     batch.Resolver
	searcher     Searcher
	normalizer   *symbol.Normalizer
	nameCache    *cache.Cache[string]
	searchCache  *cache.Cache[[]search.Result]
	log          *logrus.Entry
}

// Deps are the collaborators of a Service.
type Deps struct {
	Orchestrator *batch.Orchestrator
	Quotes       *cache.Cache[provider.Quote]
	// Resolver is consulted by Profile when every name lookup failed.
	Resolver   batch.Resolver
	Names      []provider.NameLookup
	Searcher   Searcher
	Normalizer *symbol.Normalizer
	MaxItems   int
	Log        *logrus.Entry
}

func New(d Deps, opts Options) *Service {
	if d.Normalizer == nil {
		d.Normalizer = symbol.New("")
	}
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = 30 * time.Second
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = time.Minute
	}
	return &Service{
		opts:         opts,
		orchestrator: d.Orchestrator,
		quotes:       d.Quotes,
		names:        d.Names,
		resolver:     d.Resolver,
		searcher:     d.Searcher,
		normalizer:   d.Normalizer,
		nameCache:    cache.New[string](d.MaxItems),
		searchCache:  cache.New[[]search.Result](d.MaxItems),
		log:          logger.OrDiscard(d.Log),
	}
}

// Start runs the cache sweepers until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	if s.opts.SweepInterval <= 0 {
		return
	}
	if s.quotes != nil {
		go s.quotes.Run(ctx, s.opts.SweepInterval, s.opts.CacheMaxAge)
	}
	go s.nameCache.Run(ctx, s.opts.SweepInterval, s.opts.CacheMaxAge)
	go s.searchCache.Run(ctx, s.opts.SweepInterval, s.opts.CacheMaxAge)
}

// Quote resolves a symbol list. In combined mode one upstream call serves
// every uncached code and its failure is returned as ErrUpstreamUnavailable.
func (s *Service) Quote(ctx context.Context, symbols []string) ([]batch.Result, error) {
	if !s.opts.Combined {
		return s.orchestrator.ResolveMany(ctx, symbols), nil
	}
	res, err := s.orchestrator.FetchCombined(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return res, nil
}

// Price resolves one code. Input without a recognizable code yields a zero
// record for that input.
func (s *Service) Price(ctx context.Context, input string) provider.Quote {
	_, code := s.normalizer.Normalize(input)
	if code == "" {
		return provider.Quote{Code: strings.TrimSpace(input)}
	}
	return s.orchestrator.ResolveOne(ctx, code)
}

// Prices resolves a code list through the chunked orchestrator.
func (s *Service) Prices(ctx context.Context, codes []string) []batch.Result {
	return s.orchestrator.ResolveMany(ctx, codes)
}

// Search is cached per trimmed query.
func (s *Service) Search(ctx context.Context, q string) ([]search.Result, error) {
	q = strings.TrimSpace(q)
	if q == "" || s.searcher == nil {
		return []search.Result{}, nil
	}
	res, err := s.searchCache.GetOrCompute(ctx, "s:"+strings.ToLower(q), s.opts.SearchTTL, func(ctx context.Context) ([]search.Result, error) {
		return s.searcher.Search(ctx, q)
	})
	if err != nil {
		s.log.WithField("query", q).WithError(err).Warn("search failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return res, nil
}

// Profile returns the display name for a symbol, or "" when unknown.
// Name lookups are tried first; a full chain resolution is the last resort.
func (s *Service) Profile(ctx context.Context, sym string) string {
	_, code := s.normalizer.Normalize(sym)
	if code == "" {
		return ""
	}
	name, err := s.nameCache.GetOrCompute(ctx, "p:"+code, s.opts.ProfileTTL, func(ctx context.Context) (string, error) {
		return s.lookupName(ctx, code)
	})
	if err != nil {
		s.log.WithField("code", code).WithError(err).Debug("profile lookup failed")
		return ""
	}
	return name
}

func (s *Service) lookupName(ctx context.Context, code string) (string, error) {
	var lastErr error
	for _, n := range s.names {
		name, err := n.LookupName(ctx, code)
		if err == nil && name != "" {
			return name, nil
		}
		lastErr = err
	}
	if s.quotes != nil {
		if q, ok := s.quotes.Get(batch.CacheKey(code)); ok && q.Name != "" {
			return q.Name, nil
		}
	}
	if s.resolver != nil {
		if q := s.resolver.Resolve(ctx, code); q.Name != "" {
			return q.Name, nil
		}
	}
	if lastErr == nil {
		lastErr = provider.NewValidationError("no name for %s", code)
	}
	return "", lastErr
}
