package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"quoteproxy/internal/httpx"
	"quoteproxy/internal/normalize"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/extract"
)

// Item is one row of a realtime query.
type Item struct {
	Code string
	Name string
	// Price is the current price (nv).
	Price float64
	// PrevClose is the previous session close (sv).
	PrevClose float64
	// ChangeRate is the upstream supplied change percent (cr), if any.
	ChangeRate *float64
}

// Query fetches current rows for all codes in a single request.
func (c *Client) Query(ctx context.Context, codes []string) ([]Item, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("query", "SERVICE_ITEM:"+strings.Join(codes, ","))

	u := fmt.Sprintf("%s/api/realtime?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", httpx.BrowserUserAgent)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewNetworkError(fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, provider.ClassifyStatus(res.StatusCode)
	}

	body, err := httpx.DecodeBody(io.LimitReader(res.Body, httpx.MaxBodyBytes), httpx.Charset(res.Header.Get("Content-Type"), c.charset))
	if err != nil {
		return nil, provider.NewNetworkError(fmt.Errorf("reading body: %w", err))
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, &provider.FetchError{Kind: provider.ErrorKindValidation, Message: fmt.Sprintf("decoding realtime response: %v", err), Cause: err}
	}

	// {"result":{"areas":[{"name":"SERVICE_ITEM","datas":[{"cd":"005930","nm":"삼성전자","nv":70000,"sv":71000,"cr":-1.41}]}]}}
	areasVal, ok := extract.Lookup(doc, "result", "areas")
	if !ok {
		return nil, nil
	}
	areas, ok := areasVal.([]any)
	if !ok {
		return nil, provider.NewValidationError("unexpected areas type: %T", areasVal)
	}
	var datas []any
	for _, area := range areas {
		m, ok := area.(map[string]any)
		if !ok {
			continue
		}
		if d, ok := m["datas"].([]any); ok {
			datas = append(datas, d...)
		}
	}

	items := make([]Item, 0, len(datas))
	for _, raw := range datas {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := Item{}
		item.Code, _ = row["cd"].(string)
		item.Name, _ = row["nm"].(string)
		item.Price, _ = normalize.Number(row["nv"])
		item.PrevClose, _ = normalize.Number(row["sv"])
		if cr, ok := normalize.Number(row["cr"]); ok {
			item.ChangeRate = &cr
		}
		if item.Code == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Quote converts the row into a normalized record.
func (i Item) Quote(source string) provider.Quote {
	q := provider.Quote{Code: i.Code, Price: i.Price, Name: normalize.Name(i.Name), Source: source}
	if i.Price > 0 {
		pct := normalize.ChangePercent(i.Price, i.PrevClose, i.ChangeRate)
		q.ChangePercent = &pct
	}
	return q
}
