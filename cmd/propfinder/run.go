package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/propfinder"
	"github.com/pevans/propfinder/config"
	"github.com/pevans/propfinder/history"
	"github.com/pevans/propfinder/metrics"
	"github.com/pevans/propfinder/notify"
	"github.com/pevans/propfinder/scraper"
	"github.com/pevans/propfinder/sites"
	"github.com/sirupsen/logrus"
)

func handleRun(configPath string, args []string) {
	// Parse flags for run command
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFlag := fs.String("config", configPath, "Path to config file")
	dryRun := fs.Bool("dry-run", false, "Log notifications instead of sending them")
	format := fs.String("format", "text", "Output format: text, json")
	verbose := fs.Bool("verbose", false, "Show per-query errors")
	fs.Parse(args)

	if *format != "text" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Error: invalid format: %s (must be text or json)\n", *format)
		os.Exit(1)
	}

	os.Exit(runCrawl(*configFlag, *dryRun, *format, *verbose, fs.Args()))
}

// runCrawl performs one run and returns the process exit code. Queries
// given on the command line replace the configured ones.
func runCrawl(configPath string, dryRun bool, format string, verbose bool, queries []string) int {
	cfg := mustLoadConfig(configPath)
	queries, err := selectQueries(queries, cfg.Queries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	selectors, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	registry, err := sites.NewRegistry(selectors)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid sites file %s: %v\n", cfg.SitesFile, err)
		return 1
	}

	store, err := history.Open(history.Options{
		Type: cfg.History.Type,
		DSN:  cfg.History.DSN,
		Key:  cfg.History.Key,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history: %v\n", err)
		return 1
	}
	defer store.Close()

	fetcher, closeFetcher, err := newFetcher(cfg.Fetcher, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFetcher()

	notifier, err := newNotifier(cfg, dryRun, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pages := propfinder.NewPageCrawler(fetcher, registry, store, notifier, m, &propfinder.CrawlConfig{
		MinDelay:   cfg.Crawl.MinDelay,
		MaxDelay:   cfg.Crawl.MaxDelay,
		RetryDelay: cfg.Crawl.RetryDelay,
		MaxPages:   cfg.Crawl.MaxPages,
	}, log)
	crawler := propfinder.NewCrawler(pages, notifier, m, log)

	result, runErr := crawler.Run(ctx, queries)

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Error("Failed to write metrics")
		}
	}

	switch format {
	case "json":
		printRunJSON(result)
	default:
		printRunText(result, verbose)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error: run interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", runErr)
		}
		return 1
	}

	// Exit with error code if any queries failed
	if result.QueriesFailed > 0 {
		return 1
	}
	return 0
}

// selectQueries returns the queries given as arguments, or the configured
// ones when there are none.
func selectQueries(args, configured []string) ([]string, error) {
	queries := args
	if len(queries) == 0 {
		queries = configured
	}
	if len(queries) == 0 {
		return nil, errors.New("no queries: list them under queries in the config file or pass them as arguments")
	}
	return queries, nil
}

// newFetcher builds the configured fetcher and the function that releases
// it.
func newFetcher(cfg config.FetcherConfig, log logrus.FieldLogger) (scraper.Fetcher, func() error, error) {
	switch cfg.Type {
	case "headless":
		f, err := scraper.NewHeadlessFetcher(cfg.Timeout, cfg.UserAgent, log)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	default:
		f, err := scraper.NewHTTPFetcher(cfg.Timeout, cfg.UserAgent)
		if err != nil {
			return nil, nil, err
		}
		return f, func() error { return nil }, nil
	}
}

// newNotifier builds the configured notifier. Telegram credentials are
// only read when they are needed.
func newNotifier(cfg *config.FileConfig, dryRun bool, log logrus.FieldLogger) (notify.Notifier, error) {
	if dryRun || cfg.Notifier.Type == "log" {
		return notify.NewLogNotifier(log), nil
	}

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	return notify.NewTelegram(cfg.Notifier.APIURL, creds.BotToken, creds.RoomID, cfg.Fetcher.Timeout), nil
}
