// Command carta-mcp crawls a restaurant website and reports the pages most
// likely to contain its menu.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adriangg08/carta-mcp/internal/config"
	"github.com/Adriangg08/carta-mcp/internal/crawler"
	"github.com/Adriangg08/carta-mcp/internal/fetcher"
	"github.com/Adriangg08/carta-mcp/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "carta-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to crawler configuration file")
	outPath := flag.String("out", "", "Write the JSON result to this file instead of stdout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: carta-mcp [flags] <seed-url>")
		os.Exit(2)
	}
	seed := flag.Arg(0)

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})

	var renderer fetcher.Renderer
	if cfg.Rendering.Enabled {
		browser := fetcher.NewBrowser(fetcher.BrowserOptions{
			UserAgent:       cfg.Fetch.UserAgent,
			DisableHeadless: cfg.Rendering.DisableHeadless,
			SettleDelay:     cfg.Rendering.SettleDelay.Duration,
		})
		defer browser.Close()
		renderer = browser
	}

	client := fetcher.NewClient(httpFetcher, renderer, logger)
	scheduler := crawler.NewScheduler(client, logger)

	result, err := scheduler.Crawl(ctx, cfg.ToRequest(seed))
	if err != nil {
		return err
	}

	if cfg.DB.Driver != "" && cfg.DB.DSN != "" {
		writer, err := storage.NewWriter(cfg.DB)
		if err != nil {
			logger.Error("result sink unavailable", "error", err)
		} else {
			if err := writer.SaveResult(ctx, result); err != nil {
				logger.Error("persist result failed", "error", err)
			}
			_ = writer.Close()
		}
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}
	fmt.Println(string(payload))
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
