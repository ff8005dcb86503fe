package realtime

import (
	"context"

	"github.com/sirupsen/logrus"

	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
)

// Source adapts Client to the single-code Provider contract and to the
// multi-code batch source.
type Source struct {
	client *Client
	log    *logrus.Entry
}

func NewSource(client *Client, log *logrus.Entry) *Source {
	return &Source{client: client, log: logger.OrDiscard(log)}
}

func (s *Source) Name() string { return "naver-realtime" }

func (s *Source) Resolve(ctx context.Context, code string) (provider.Quote, error) {
	items, err := s.client.Query(ctx, []string{code})
	if err != nil {
		return provider.Quote{}, err
	}
	for _, it := range items {
		if it.Code == code && it.Price > 0 {
			return it.Quote(s.Name()), nil
		}
	}
	return provider.Quote{}, provider.NewValidationError("no realtime price for %s", code)
}

// FetchMany resolves all codes with one upstream call. Codes missing from the
// response are absent from the returned map.
func (s *Source) FetchMany(ctx context.Context, codes []string) (map[string]provider.Quote, error) {
	items, err := s.client.Query(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]provider.Quote, len(items))
	for _, it := range items {
		if it.Price <= 0 {
			continue
		}
		out[it.Code] = it.Quote(s.Name())
	}
	s.log.WithField("requested", len(codes)).WithField("resolved", len(out)).Debug("realtime batch fetched")
	return out, nil
}
