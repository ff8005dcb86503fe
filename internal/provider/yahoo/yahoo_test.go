package yahoo

import (
	"context"
	"errors"
	"testing"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/require"

	"quoteproxy/internal/provider"
)

// fakeBackend answers from a fixed symbol table and records every call.
type fakeBackend struct {
	quotes map[string]finance.Quote
	err    error
	calls  [][]string
}

func (f *fakeBackend) list(symbols []string) ([]finance.Quote, error) {
	f.calls = append(f.calls, symbols)
	if f.err != nil {
		return nil, f.err
	}
	var out []finance.Quote
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func TestFetchMany(t *testing.T) {
	b := &fakeBackend{quotes: map[string]finance.Quote{
		"005930.KS": {Symbol: "005930.KS", ShortName: "SamsungElec", RegularMarketPrice: 110, RegularMarketPreviousClose: 100, RegularMarketChangePercent: 9.9},
		"000660.KS": {Symbol: "000660.KS", ShortName: "SK hynix", RegularMarketPrice: 50, RegularMarketChangePercent: -3.2},
		"035420.KS": {Symbol: "035420.KS", RegularMarketPrice: 0},
	}}
	p := New(".KS", b.list, nil)

	got, err := p.FetchMany(context.Background(), []string{"005930", "000660", "035420"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.InDelta(t, 10.0, *got["005930"].ChangePercent, 1e-9)
	require.InDelta(t, -3.2, *got["000660"].ChangePercent, 1e-9)
	require.Equal(t, "yahoo", got["000660"].Source)
	require.Equal(t, "SamsungElec", got["005930"].Name)
	require.Equal(t, [][]string{
		{"005930.KS", "000660.KS", "035420.KS"},
		{"035420.KQ"},
	}, b.calls)
}

func TestFetchMany_KOSDAQCodeResolvesUnderDefaultSuffix(t *testing.T) {
	b := &fakeBackend{quotes: map[string]finance.Quote{
		"005930.KS": {Symbol: "005930.KS", ShortName: "SamsungElec", RegularMarketPrice: 70000},
		"247540.KQ": {Symbol: "247540.KQ", ShortName: "EcoPro BM", RegularMarketPrice: 180000, RegularMarketPreviousClose: 200000},
	}}
	p := New(".KS", b.list, nil)

	got, err := p.FetchMany(context.Background(), []string{"005930", "247540"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "247540", got["247540"].Code)
	require.InDelta(t, 180000, got["247540"].Price, 1e-9)
	require.InDelta(t, -10.0, *got["247540"].ChangePercent, 1e-9)
	require.Equal(t, [][]string{{"005930.KS", "247540.KS"}, {"247540.KQ"}}, b.calls)
}

func TestResolve(t *testing.T) {
	// Arrange
	b := &fakeBackend{quotes: map[string]finance.Quote{
		"247540.KQ": {Symbol: "247540.KQ", ShortName: "EcoPro BM", RegularMarketPrice: 180000},
	}}
	p := New("", b.list, nil)

	// Act
	q, err := p.Resolve(context.Background(), "247540")

	// Assert
	require.NoError(t, err)
	require.InDelta(t, 180000, q.Price, 1e-9)
	require.Equal(t, [][]string{{"247540.KS"}, {"247540.KQ"}}, b.calls)
}

func TestResolve_Errors(t *testing.T) {
	b := &fakeBackend{}
	p := New("KQ", b.list, nil)
	_, err := p.Resolve(context.Background(), "091990")
	require.Equal(t, provider.ErrorKindValidation, provider.KindOf(err))
	require.Equal(t, [][]string{{"091990.KQ"}, {"091990.KS"}}, b.calls)

	p = New("", (&fakeBackend{err: errors.New("yahoo down")}).list, nil)
	_, err = p.Resolve(context.Background(), "005930")
	require.Equal(t, provider.ErrorKindNetwork, provider.KindOf(err))
}

func TestFetchMany_CanceledContext(t *testing.T) {
	p := New("", func([]string) ([]finance.Quote, error) {
		t.Fatal("list must not be called")
		return nil, nil
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.FetchMany(ctx, []string{"005930"})
	require.Error(t, err)
}
