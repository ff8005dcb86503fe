package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quoteproxy/internal/batch"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/search"
	"quoteproxy/internal/service"
)

// maxSymbols caps the list size accepted by the batch endpoints.
const maxSymbols = 1000

// quoteService is the part of service.Service the handlers use.
type quoteService interface {
	Quote(ctx context.Context, symbols []string) ([]batch.Result, error)
	Price(ctx context.Context, code string) provider.Quote
	Prices(ctx context.Context, codes []string) []batch.Result
	Search(ctx context.Context, q string) ([]search.Result, error)
	Profile(ctx context.Context, symbol string) string
}

type quoteEntry struct {
	C    float64 `json:"c"`
	Name string  `json:"name"`
}

type priceRow struct {
	Code    string   `json:"code"`
	Price   float64  `json:"price"`
	DayRate *float64 `json:"day_rate,omitempty"`
}

type serverOptions struct {
	CORSOrigin     string
	Gzip           bool
	RequestTimeout time.Duration
}

func newRouter(svc quoteService, log *logrus.Entry, opts serverOptions) *gin.Engine {
	r := gin.New()
	r.Use(recovery(log), requestLog(log), cors(opts.CORSOrigin))
	if opts.Gzip {
		r.Use(withGzip())
	}
	r.Use(requestTimeout(opts.RequestTimeout))

	h := &handlers{svc: svc, log: log}
	r.GET("/api/quote", h.quote)
	r.GET("/api/price", h.price)
	r.GET("/api/prices", h.prices)
	r.GET("/api/search", h.search)
	r.GET("/api/profile", h.profile)
	r.GET("/api/ping", h.ping)
	r.GET("/health", h.ping)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("not found"))
	})
	return r
}

type handlers struct {
	svc quoteService
	log *logrus.Entry
}

func (h *handlers) quote(c *gin.Context) {
	symbols := splitCSV(c.Query("symbols"))
	if len(symbols) > maxSymbols {
		c.JSON(http.StatusBadRequest, errorBody("too many symbols (max 1000)"))
		return
	}
	out := make(map[string]quoteEntry, len(symbols))
	if len(symbols) == 0 {
		c.JSON(http.StatusOK, out)
		return
	}
	results, err := h.svc.Quote(c.Request.Context(), symbols)
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, r := range results {
		out[r.Symbol] = quoteEntry{C: r.Quote.Price, Name: r.Quote.Name}
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) price(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, errorBody("missing code"))
		return
	}
	q := h.svc.Price(c.Request.Context(), code)
	c.JSON(http.StatusOK, gin.H{"code": code, "price": q.Price})
}

func (h *handlers) prices(c *gin.Context) {
	codes := splitCSV(c.Query("codes"))
	if len(codes) > maxSymbols {
		c.JSON(http.StatusBadRequest, errorBody("too many codes (max 1000)"))
		return
	}
	rows := make([]priceRow, 0, len(codes))
	if len(codes) > 0 {
		for _, r := range h.svc.Prices(c.Request.Context(), codes) {
			row := priceRow{Code: r.Quote.Code, Price: r.Quote.Price}
			if r.Quote.Resolved() {
				row.DayRate = r.Quote.ChangePercent
			}
			rows = append(rows, row)
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *handlers) search(c *gin.Context) {
	res, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if res == nil {
		res = []search.Result{}
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

func (h *handlers) profile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": h.svc.Profile(c.Request.Context(), c.Query("symbol"))})
}

func (h *handlers) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UnixMilli()})
}

// fail reports a request-level failure. Upstream outages map to 502.
func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrUpstreamUnavailable) {
		status = http.StatusBadGateway
	}
	c.JSON(status, errorBody(err.Error()))
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
