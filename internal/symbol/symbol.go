package symbol

import (
	"regexp"
	"strings"
)

// DefaultSuffix marks the primary market when the input carries no suffix.
const DefaultSuffix = ".KS"

var codeRe = regexp.MustCompile(`\d{6}`)

// Normalizer canonicalizes user supplied tickers.
type Normalizer struct {
	// Suffix is appended to symbols without an exchange suffix, e.g. ".KS".
	Suffix string
}

func New(suffix string) *Normalizer {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	return &Normalizer{Suffix: strings.ToUpper(suffix)}
}

// Normalize returns the exchange-qualified symbol and the bare 6-digit code.
// An input without a digit run yields an empty code, which callers skip.
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(input string) (symbol, code string) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return "", ""
	}
	code = Code(s)
	if !HasSuffix(s) {
		s += n.Suffix
	}
	return s, code
}

// Code extracts the first run of six digits from s.
func Code(s string) string {
	return codeRe.FindString(s)
}

// HasSuffix reports whether s already ends in an exchange suffix such as
// ".KS" or ".KQ". Any non-empty dotted tail counts.
func HasSuffix(s string) bool {
	i := strings.LastIndexByte(s, '.')
	return i > 0 && i < len(s)-1
}
