package search

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/htmlindex"

	"quoteproxy/internal/httpx"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/normalize"
	"quoteproxy/internal/symbol"
)

const (
	defaultBaseURL = "https://finance.naver.com"
	defaultCharset = "euc-kr"
	DefaultLimit   = 10
)

var (
	codeOnlyRe = regexp.MustCompile(`^\d{6}$`)
	resultRe   = regexp.MustCompile(`(?i)href="/item/main\.(?:nhn|naver)\?code=(\d{6})"[^>]*>\s*(?:<span[^>]*>)?([^<]+)<`)
)

// Result is one search hit.
type Result struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
}

// Searcher finds symbols by name through the desktop search page.
type Searcher struct {
	http    *httpx.Client
	baseURL string
	charset string
	suffix  string
	limit   int
	log     *logrus.Entry
}

type Option func(*Searcher)

func WithBaseURL(baseURL string) Option {
	return func(s *Searcher) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithCharset sets the charset of the search page and of its query string.
func WithCharset(charset string) Option {
	return func(s *Searcher) {
		if charset != "" {
			s.charset = charset
		}
	}
}

func WithLimit(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Searcher) { s.log = log }
}

func New(client *httpx.Client, n *symbol.Normalizer, opts ...Option) *Searcher {
	if n == nil {
		n = symbol.New("")
	}
	s := &Searcher{
		http:    client,
		baseURL: defaultBaseURL,
		charset: defaultCharset,
		suffix:  n.Suffix,
		limit:   DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDiscard(s.log)
	return s
}

// Search returns at most limit hits. A bare 6-digit query is answered
// directly without an upstream call.
func (s *Searcher) Search(ctx context.Context, q string) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []Result{}, nil
	}
	if codeOnlyRe.MatchString(q) {
		return []Result{{Symbol: q + s.suffix, Description: q}}, nil
	}

	u := fmt.Sprintf("%s/search/searchList.naver?query=%s", s.baseURL, s.encodeQuery(q))
	page, err := s.http.GetTextAs(ctx, u, s.baseURL+"/", s.charset)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	out := ParseResults(page, s.suffix, s.limit)
	s.log.WithField("query", q).WithField("hits", len(out)).Debug("search page parsed")
	return out, nil
}

// encodeQuery escapes q in the page charset; the legacy search page does not
// understand UTF-8 queries.
func (s *Searcher) encodeQuery(q string) string {
	enc, err := htmlindex.Get(s.charset)
	if err != nil {
		return url.QueryEscape(q)
	}
	encoded, err := enc.NewEncoder().String(q)
	if err != nil {
		return url.QueryEscape(q)
	}
	return url.QueryEscape(encoded)
}

// ParseResults extracts distinct hits from a search result page.
func ParseResults(page, suffix string, limit int) []Result {
	out := []Result{}
	seen := map[string]struct{}{}
	for _, m := range resultRe.FindAllStringSubmatch(page, -1) {
		if limit > 0 && len(out) >= limit {
			break
		}
		code := m[1]
		if _, dup := seen[code]; dup {
			continue
		}
		name := normalize.Name(m[2])
		if name == "" {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, Result{Symbol: code + suffix, Description: name})
	}
	return out
}
