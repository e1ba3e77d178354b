package propfinder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/pevans/propfinder/ads"
	"github.com/pevans/propfinder/history"
	"github.com/pevans/propfinder/metrics"
	"github.com/pevans/propfinder/notify"
	"github.com/pevans/propfinder/scraper"
	"github.com/pevans/propfinder/sites"
	"github.com/sirupsen/logrus"
)

// Reasons a query stopped paginating.
const (
	StopExhausted = "exhausted"  // a page had no unseen ads
	StopPageLimit = "page_limit" // CrawlConfig.MaxPages reached
)

// maxFetchAttempts bounds the fetch retry loop: the first try plus one retry.
const maxFetchAttempts = 2

// CrawlConfig holds pacing and pagination limits.
type CrawlConfig struct {
	// Delay between consecutive pages is drawn uniformly from
	// [MinDelay, MaxDelay]
	MinDelay time.Duration
	MaxDelay time.Duration
	// Wait before retrying a failed fetch
	RetryDelay time.Duration
	// Hard cap on pages crawled per query
	MaxPages int
}

// DefaultCrawlConfig returns the default pacing.
func DefaultCrawlConfig() *CrawlConfig {
	return &CrawlConfig{
		MinDelay:   1 * time.Second,
		MaxDelay:   5 * time.Second,
		RetryDelay: 10 * time.Second,
		MaxPages:   20,
	}
}

// QueryResult summarizes the crawl of one query.
type QueryResult struct {
	Query        string `json:"query"`
	Host         string `json:"host,omitempty"`
	Pages        int    `json:"pages"`
	Seen         int    `json:"seen"`
	Unseen       int    `json:"unseen"`
	NotifyErrors int    `json:"notify_errors"`
	StopReason   string `json:"stop_reason,omitempty"`
	Err          error  `json:"-"`
}

// PageURL returns the URL of page n of a search. Page 0 is the query
// itself; later pages insert "-pagina-n" before the ".html" suffix of the
// path. The query string and fragment are kept as they are.
func PageURL(query string, page int) string {
	if page <= 0 {
		return query
	}
	suffix := fmt.Sprintf("-pagina-%d", page)

	end := len(query)
	if i := strings.IndexAny(query, "?#"); i >= 0 {
		end = i
	}
	base, rest := query[:end], query[end:]

	if u, err := url.Parse(base); err == nil && u.Host != "" && u.Path == "" {
		base += "/"
	}

	if strings.HasSuffix(base, ".html") {
		base = strings.TrimSuffix(base, ".html") + suffix + ".html"
	} else {
		base += suffix
	}

	return base + rest
}

// PageCrawler walks the result pages of one query, notifying about every ad
// not yet in history and recording it afterwards. It keeps going while
// pages keep producing unseen ads.
type PageCrawler struct {
	fetcher   scraper.Fetcher
	registry  *sites.Registry
	extractor *scraper.Extractor
	history   history.Store
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	config    *CrawlConfig
	log       logrus.FieldLogger

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPageCrawler creates a page crawler. A nil config means
// DefaultCrawlConfig; m may be nil.
func NewPageCrawler(
	fetcher scraper.Fetcher,
	registry *sites.Registry,
	store history.Store,
	notifier notify.Notifier,
	m *metrics.Metrics,
	config *CrawlConfig,
	log logrus.FieldLogger,
) *PageCrawler {
	if config == nil {
		config = DefaultCrawlConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &PageCrawler{
		fetcher:   fetcher,
		registry:  registry,
		extractor: scraper.NewExtractor(log),
		history:   store,
		notifier:  notifier,
		metrics:   m,
		config:    config,
		log:       log,
		sleep:     sleepContext,
	}
}

// CrawlQuery crawls query from page 0. The returned QueryResult reflects
// the pages completed even when an error is returned; history is only
// written for pages that were fully processed.
func (pc *PageCrawler) CrawlQuery(ctx context.Context, query string) (QueryResult, error) {
	result := QueryResult{Query: query}

	rule, err := pc.registry.Resolve(query)
	if err != nil {
		return result, err
	}
	result.Host = rule.Host

	log := pc.log.WithFields(logrus.Fields{"query": query, "host": rule.Host})

	for page := 0; ; page++ {
		if page > 0 {
			if err := pc.sleep(ctx, pc.pageDelay()); err != nil {
				return result, err
			}
		}

		pageURL := PageURL(query, page)
		pageLog := log.WithFields(logrus.Fields{"page": page, "url": pageURL})

		body, err := pc.fetch(ctx, pageURL, rule.Host, pageLog)
		if err != nil {
			return result, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}

		found, err := pc.extractor.ExtractRule(body, rule)
		if err != nil {
			return result, fmt.Errorf("failed to extract ads from page %d: %w", page, err)
		}

		seenIDs, err := pc.history.Load()
		if err != nil {
			return result, fmt.Errorf("failed to load history: %w", err)
		}

		seen, unseen := ads.Split(found, seenIDs)
		unseen = ads.Unique(unseen)

		result.Pages++
		result.Seen += len(seen)
		result.Unseen += len(unseen)
		pc.metrics.RecordSplit(rule.Host, len(seen), len(unseen))

		pageLog.WithFields(logrus.Fields{
			"found":  len(found),
			"seen":   len(seen),
			"unseen": len(unseen),
		}).Info("Processed page")

		for _, ad := range unseen {
			if err := pc.notifier.Notify(ctx, ad.URL); err != nil {
				result.NotifyErrors++
				pc.metrics.NotifyFailed()
				pageLog.WithError(err).WithField("ad_url", ad.URL).Error("Failed to send notification")
			}
		}

		// A cancelled run has not delivered everything; leave these ads
		// unrecorded so the next run sends them again
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if len(unseen) > 0 {
			if err := pc.history.Append(ads.IDs(unseen)); err != nil {
				return result, fmt.Errorf("failed to record seen ads: %w", err)
			}
		}

		if len(unseen) == 0 {
			result.StopReason = StopExhausted
			return result, nil
		}
		if page+1 >= pc.config.MaxPages {
			result.StopReason = StopPageLimit
			log.WithField("max_pages", pc.config.MaxPages).Warn("Stopped at page limit with unseen ads remaining")
			return result, nil
		}
	}
}

// fetch downloads pageURL, retrying once after RetryDelay unless the error
// is permanent.
func (pc *PageCrawler) fetch(ctx context.Context, pageURL, host string, log logrus.FieldLogger) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		start := time.Now()
		body, err := pc.fetcher.Fetch(ctx, pageURL)
		pc.metrics.RecordFetch(host, time.Since(start), err)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if scraper.IsPermanent(err) || ctx.Err() != nil || attempt == maxFetchAttempts {
			break
		}

		log.WithError(err).WithField("retry_in", pc.config.RetryDelay).Warn("Fetch failed, retrying")
		if err := pc.sleep(ctx, pc.config.RetryDelay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

// pageDelay picks the pause before the next page.
func (pc *PageCrawler) pageDelay() time.Duration {
	span := pc.config.MaxDelay - pc.config.MinDelay
	if span <= 0 {
		return pc.config.MinDelay
	}
	return pc.config.MinDelay + rand.N(span+1)
}

// sleepContext waits for d, returning early with ctx's error if it is
// cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
