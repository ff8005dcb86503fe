package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
)

// DefaultTimeout bounds each individual provider call.
const DefaultTimeout = 4 * time.Second

// Chain tries providers in priority order and returns the first record with
// a positive price.
type Chain struct {
	providers []provider.Provider
	names     provider.NameLookup
	timeout   time.Duration
	log       *logrus.Entry
}

// Option configures a Chain.
type Option func(*Chain)

// WithNameLookup fills names missing from the winning record.
func WithNameLookup(n provider.NameLookup) Option {
	return func(c *Chain) { c.names = n }
}

// WithTimeout sets the per-provider call timeout. Non-positive keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Chain) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Chain) { c.log = log }
}

func New(providers []provider.Provider, opts ...Option) *Chain {
	c := &Chain{providers: providers, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDiscard(c.log)
	return c
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	out := make([]string, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Name()
	}
	return out
}

// Resolve never fails. When every provider fails it returns a zero-price
// record whose ErrorKind is the kind of the last failure.
func (c *Chain) Resolve(ctx context.Context, code string) provider.Quote {
	var lastKind provider.ErrorKind
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			lastKind = provider.KindOf(err)
			break
		}
		q, err := c.call(ctx, p, code)
		entry := c.log.WithField("provider", p.Name()).WithField("code", code)
		if err != nil {
			lastKind = provider.KindOf(err)
			entry.WithField("kind", lastKind).WithError(err).Debug("provider failed, falling through")
			continue
		}
		if !q.Resolved() {
			lastKind = provider.ErrorKindValidation
			entry.Debug("provider returned no price, falling through")
			continue
		}

		q.Code = code
		q.ErrorKind = ""
		if q.Source == "" {
			q.Source = p.Name()
		}
		if q.Name == "" && c.names != nil {
			q.Name = c.lookupName(ctx, code)
		}
		return q
	}
	c.log.WithField("code", code).WithField("kind", lastKind).Warn("all providers failed")
	return provider.Unresolved(code, lastKind)
}

// call runs one provider under the per-call timeout. Panics become errors.
func (c *Chain) call(ctx context.Context, p provider.Provider, code string) (q provider.Quote, err error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Resolve(cctx, code)
}

func (c *Chain) lookupName(ctx context.Context, code string) string {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	name, err := c.names.LookupName(cctx, code)
	if err != nil {
		c.log.WithField("code", code).WithError(err).Debug("name lookup failed")
		return ""
	}
	return name
}
