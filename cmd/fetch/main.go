package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"quoteproxy/internal/config"
	"quoteproxy/internal/logger"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/service"
)

func main() {
	_ = godotenv.Load()

	var symbolsCSV string
	var configPath string
	var combined bool
	var timeout int

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "005930.KS"), "comma-separated symbols (005930, 005930.KS, ...)")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config file (optional)")
	flag.BoolVar(&combined, "combined", false, "resolve through the single multi-code source instead of the provider chain")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "overall timeout seconds")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "combined" {
			cfg.Batch.Combined = combined
		}
	})

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: "text"})
	if err != nil {
		fatalf("logger: %v", err)
	}
	// stdout carries the JSON result
	log.SetOutput(os.Stderr)

	svc, err := service.Build(cfg, log)
	if err != nil {
		fatalf("service: %v", err)
	}

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		fatalf("no symbols given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	results, err := svc.Quote(ctx, symbols)
	if err != nil {
		fatalf("quote: %v", err)
	}

	out := make(map[string]provider.Quote, len(results))
	resolved := 0
	for _, r := range results {
		out[r.Symbol] = r.Quote
		if r.Quote.Resolved() {
			resolved++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("encode: %v", err)
	}
	if resolved == 0 {
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
