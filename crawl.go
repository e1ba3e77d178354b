// Package propfinder crawls real-estate search results and notifies about
// ads that have not been seen before.
//
// A run takes a list of search URLs (queries). For each query the
// PageCrawler walks the result pages, extracting ad links with the selector
// of the query's site, splitting them against the persisted history and
// sending one notification per unseen ad. The Crawler runs every query and
// sends a closing summary.
package propfinder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/propfinder/metrics"
	"github.com/pevans/propfinder/notify"
	"github.com/sirupsen/logrus"
)

// RunResult summarizes one run over all queries.
type RunResult struct {
	RunID         uuid.UUID     `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Queries       []QueryResult `json:"queries"`
	Unseen        int           `json:"unseen"`
	QueriesFailed int           `json:"queries_failed"`
	Errors        []error       `json:"-"`
}

// Crawler runs every configured query once.
type Crawler struct {
	pages    *PageCrawler
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewCrawler creates a crawler that sends its summary through notifier.
func NewCrawler(pages *PageCrawler, notifier notify.Notifier, m *metrics.Metrics, log logrus.FieldLogger) *Crawler {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Crawler{
		pages:    pages,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Run crawls each distinct query in order. A failing query is recorded in
// the result and the run moves on; only cancellation of ctx stops it early,
// in which case the partial result is returned with ctx's error and no
// summary is sent.
func (c *Crawler) Run(ctx context.Context, queries []string) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New(),
		StartedAt: c.now(),
	}
	log := c.log.WithField("run_id", result.RunID.String())

	distinct := uniqueQueries(queries)
	log.WithField("queries", len(distinct)).Info("Run starting")

	for _, query := range distinct {
		if err := ctx.Err(); err != nil {
			return c.finish(result), err
		}

		qr, err := c.pages.CrawlQuery(ctx, query)
		result.Unseen += qr.Unseen

		if err != nil {
			qr.Err = err
			result.Queries = append(result.Queries, qr)

			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				log.WithField("query", query).Warn("Run cancelled")
				return c.finish(result), ctxErr
			}

			result.QueriesFailed++
			result.Errors = append(result.Errors, fmt.Errorf("query %s: %w", query, err))
			c.metrics.QueryFailed()
			log.WithError(err).WithField("query", query).Error("Query failed")
			continue
		}

		result.Queries = append(result.Queries, qr)
		log.WithFields(logrus.Fields{
			"query":       query,
			"pages":       qr.Pages,
			"unseen":      qr.Unseen,
			"stop_reason": qr.StopReason,
		}).Info("Query finished")
	}

	c.finish(result)

	if err := c.notifier.Notify(ctx, Summary(result.Unseen, result.QueriesFailed)); err != nil {
		c.metrics.NotifyFailed()
		log.WithError(err).Error("Failed to send summary")
	}

	log.WithFields(logrus.Fields{
		"unseen":         result.Unseen,
		"queries_failed": result.QueriesFailed,
		"duration":       result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	}).Info("Run finished")

	return result, nil
}

func (c *Crawler) finish(result *RunResult) *RunResult {
	result.FinishedAt = c.now()
	c.metrics.RunFinished(result.FinishedAt)
	return result
}

// Summary is the closing message of a run.
func Summary(unseen, failed int) string {
	msg := fmt.Sprintf("Process completed. Found %d unseen ads.", unseen)
	if failed > 0 {
		msg += fmt.Sprintf(" %d queries failed.", failed)
	}
	return msg
}

// uniqueQueries drops repeated queries, keeping the first occurrence.
func uniqueQueries(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	distinct := make([]string, 0, len(queries))
	for _, q := range queries {
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		distinct = append(distinct, q)
	}
	return distinct
}
