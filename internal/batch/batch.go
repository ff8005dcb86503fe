package batch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/cache"
	"quoteproxy/internal/symbol"
)

const (
	DefaultChunkSize  = 20
	DefaultChunkDelay = 50 * time.Millisecond
	DefaultQuoteTTL   = 3 * time.Second
)

// ErrNoSource is returned by FetchCombined when no multi-code source is wired.
var ErrNoSource = errors.New("batch: no combined source configured")

// errUnresolved keeps unresolved records out of the cache.
var errUnresolved = errors.New("unresolved")

// Resolver resolves one bare code. It never fails; see chain.Chain.
type Resolver interface {
	Resolve(ctx context.Context, code string) provider.Quote
}

// Source fetches many codes in one upstream call.
type Source interface {
	Name() string
	FetchMany(ctx context.Context, codes []string) (map[string]provider.Quote, error)
}

// Result pairs a normalized symbol with its record.
type Result struct {
	Symbol string
	Quote  provider.Quote
}

// Orchestrator resolves symbol lists against the cache and a Resolver.
type Orchestrator struct {
	resolver   Resolver
	source     Source
	cache      *cache.Cache[provider.Quote]
	normalizer *symbol.Normalizer

	chunkSize      int
	chunkDelay     time.Duration
	maxConcurrency int
	ttl            time.Duration
	log            *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSource sets the multi-code source used by FetchCombined.
func WithSource(s Source) Option {
	return func(o *Orchestrator) { o.source = s }
}

func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithChunkDelay sets the pause between chunks. Zero disables it.
func WithChunkDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.chunkDelay = d
		}
	}
}

// WithMaxConcurrency caps concurrent resolutions inside a chunk. Zero means
// the whole chunk runs at once.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrency = n }
}

// WithQuoteTTL sets how long resolved quotes stay cached.
func WithQuoteTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ttl = d
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = log }
}

func New(resolver Resolver, c *cache.Cache[provider.Quote], n *symbol.Normalizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:   resolver,
		cache:      c,
		normalizer: n,
		chunkSize:  DefaultChunkSize,
		chunkDelay: DefaultChunkDelay,
		ttl:        DefaultQuoteTTL,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = cache.New[provider.Quote](0)
	}
	if o.normalizer == nil {
		o.normalizer = symbol.New("")
	}
	o.log = logger.OrDiscard(o.log)
	return o
}

// CacheKey is the cache key of a quote for a bare code.
func CacheKey(code string) string { return "q:" + code }

// ResolveOne resolves a single bare code through the cache.
func (o *Orchestrator) ResolveOne(ctx context.Context, code string) provider.Quote {
	q, err := o.cache.GetOrCompute(ctx, CacheKey(code), o.ttl, func(ctx context.Context) (provider.Quote, error) {
		q := o.resolver.Resolve(ctx, code)
		q.Code = code
		if !q.Resolved() {
			return q, errUnresolved
		}
		return q, nil
	})
	if err != nil && q.Code == "" {
		// the wait was abandoned before the shared computation finished
		return provider.Unresolved(code, provider.KindOf(err))
	}
	return q
}

// ResolveMany resolves every distinct normalized symbol once. Codes are
// processed in chunks; chunks run sequentially with a pause between them and
// codes inside a chunk run concurrently. One symbol failing never affects
// another.
func (o *Orchestrator) ResolveMany(ctx context.Context, symbols []string) []Result {
	entries, codes := o.plan(symbols)
	if len(codes) == 0 {
		return []Result{}
	}

	byCode := make(map[string]provider.Quote, len(codes))
	chunks := chunkStrings(codes, o.chunkSize)
	for i, chunk := range chunks {
		if i > 0 && o.chunkDelay > 0 {
			if err := o.sleep(ctx, o.chunkDelay); err != nil {
				kind := provider.KindOf(err)
				for _, rest := range chunks[i:] {
					for _, code := range rest {
						byCode[code] = provider.Unresolved(code, kind)
					}
				}
				break
			}
		}
		for _, q := range o.resolveChunk(ctx, chunk) {
			byCode[q.Code] = q
		}
	}
	o.log.WithField("symbols", len(entries)).WithField("codes", len(codes)).WithField("chunks", len(chunks)).Debug("batch resolved")

	out := make([]Result, len(entries))
	for i, e := range entries {
		q, ok := byCode[e.code]
		if !ok {
			q = provider.Unresolved(e.code, "")
		}
		out[i] = Result{Symbol: e.symbol, Quote: q}
	}
	return out
}

func (o *Orchestrator) resolveChunk(ctx context.Context, codes []string) []provider.Quote {
	p := pool.NewWithResults[provider.Quote]()
	if o.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(o.maxConcurrency)
	}
	for _, code := range codes {
		p.Go(func() provider.Quote {
			return o.ResolveOne(ctx, code)
		})
	}
	return p.Wait()
}

// FetchCombined resolves all uncached codes with a single multi-code upstream
// call, without chunking. A failure of that call fails the whole request.
func (o *Orchestrator) FetchCombined(ctx context.Context, symbols []string) ([]Result, error) {
	if o.source == nil {
		return nil, ErrNoSource
	}
	entries, codes := o.plan(symbols)

	byCode := make(map[string]provider.Quote, len(codes))
	missing := make([]string, 0, len(codes))
	for _, code := range codes {
		if q, ok := o.cache.Get(CacheKey(code)); ok {
			byCode[code] = q
			continue
		}
		missing = append(missing, code)
	}

	if len(missing) > 0 {
		fetched, err := o.source.FetchMany(ctx, missing)
		if err != nil {
			o.log.WithField("source", o.source.Name()).WithField("codes", len(missing)).WithError(err).Warn("combined fetch failed")
			return nil, err
		}
		for _, code := range missing {
			q, ok := fetched[code]
			if !ok || !q.Resolved() {
				byCode[code] = provider.Unresolved(code, "")
				continue
			}
			q.Code = code
			o.cache.Set(CacheKey(code), q, o.ttl)
			byCode[code] = q
		}
	}

	out := make([]Result, len(entries))
	for i, e := range entries {
		out[i] = Result{Symbol: e.symbol, Quote: byCode[e.code]}
	}
	return out, nil
}

type planned struct {
	symbol string
	code   string
}

// plan normalizes symbols, drops those without a code and collapses
// duplicates. It returns the distinct symbols in input order and the
// distinct codes they need.
func (o *Orchestrator) plan(symbols []string) ([]planned, []string) {
	entries := make([]planned, 0, len(symbols))
	codes := make([]string, 0, len(symbols))
	seenSym := make(map[string]struct{}, len(symbols))
	seenCode := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		sym, code := o.normalizer.Normalize(s)
		if code == "" {
			continue
		}
		if _, dup := seenSym[sym]; dup {
			continue
		}
		seenSym[sym] = struct{}{}
		entries = append(entries, planned{symbol: sym, code: code})
		if _, dup := seenCode[code]; !dup {
			seenCode[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return entries, codes
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) == 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := min(i+size, len(in))
		out = append(out, in[i:j])
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
