package provider

import (
	"context"
)

// Quote is the normalized record returned by all providers.
// Price 0 means the code could not be resolved. A Quote is treated as
// read-only once returned; a newer fetch replaces it rather than mutating it.
type Quote struct {
	Code          string    `json:"code"`
	Price         float64   `json:"price"`
	Name          string    `json:"name"`
	ChangePercent *float64  `json:"changePercent,omitempty"`
	ErrorKind     ErrorKind `json:"errorKind,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// Resolved reports whether q carries a usable price.
func (q Quote) Resolved() bool { return q.Price > 0 }

// Provider resolves a single bare code against one upstream.
//
//go:generate mockgen -package=chain_test -destination=../chain/mock_provider_test.go -source=provider.go Provider NameLookup
type Provider interface {
	Name() string
	Resolve(ctx context.Context, code string) (Quote, error)
}

// NameLookup is a narrow provider that only knows display names.
type NameLookup interface {
	LookupName(ctx context.Context, code string) (string, error)
}

// Unresolved builds the zero-price record used when every provider failed.
func Unresolved(code string, kind ErrorKind) Quote {
	if kind == "" {
		kind = ErrorKindUnresolved
	}
	return Quote{Code: code, ErrorKind: kind}
}
