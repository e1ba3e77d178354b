package propfinder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pevans/propfinder/ads"
	"github.com/pevans/propfinder/history"
	"github.com/pevans/propfinder/scraper"
	"github.com/pevans/propfinder/sites"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSite  = "https://www.zonaprop.com.ar"
	testQuery = "https://www.zonaprop.com.ar/departamentos-venta-palermo.html"
)

// fakeFetcher serves canned pages by URL. Queued errors for a URL are
// returned, one per call, before its page is served; unknown URLs are 404s.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string][]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]string),
		errs:  make(map[string][]error),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if errs := f.errs[url]; len(errs) > 0 {
		f.errs[url] = errs[1:]
		return "", errs[0]
	}
	body, ok := f.pages[url]
	if !ok {
		return "", &scraper.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("404 Not Found")}
	}
	return body, nil
}

// fakeNotifier records messages. onNotify, when set, runs before each
// message is recorded.
type fakeNotifier struct {
	messages []string
	err      error
	onNotify func()
}

func (n *fakeNotifier) Notify(ctx context.Context, text string) error {
	if n.onNotify != nil {
		n.onNotify()
	}
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, text)
	return nil
}

// listing renders a results page with one ad anchor per href.
func listing(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"postings\">")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="card"><a class="ad" href="%s">ad</a></div>`, h)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

// testRig bundles a page crawler with its fakes.
type testRig struct {
	crawler  *PageCrawler
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	store    history.Store
	sleeps   []time.Duration
	hook     *test.Hook
}

// Test helper: a page crawler over fakes and a file history in a temp dir
func createTestRig(t *testing.T, config *CrawlConfig) *testRig {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	registry, err := sites.NewRegistry(map[string]string{
		testSite: "div.card a.ad",
	})
	require.NoError(t, err)

	rig := &testRig{
		fetcher:  newFakeFetcher(),
		notifier: &fakeNotifier{},
		store:    history.NewFileStore(filepath.Join(t.TempDir(), "seen.txt"), log),
		hook:     hook,
	}
	rig.crawler = NewPageCrawler(rig.fetcher, registry, rig.store, rig.notifier, nil, config, log)
	rig.crawler.sleep = func(ctx context.Context, d time.Duration) error {
		rig.sleeps = append(rig.sleeps, d)
		return ctx.Err()
	}

	return rig
}

// TestCrawlQuery_EndToEnd verifies unseen ads are notified, recorded and
// followed by the next page
func TestCrawlQuery_EndToEnd(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.fetcher.pages[testQuery] = listing("/p/1.html", "/p/2.html", "/p/3.html")
	rig.fetcher.pages[PageURL(testQuery, 1)] = listing()

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, []string{
		testSite + "/p/1.html",
		testSite + "/p/2.html",
		testSite + "/p/3.html",
	}, rig.notifier.messages)

	recorded, err := rig.store.Load()
	require.NoError(t, err)
	assert.Len(t, recorded, 3)
	for _, href := range []string{"/p/1.html", "/p/2.html", "/p/3.html"} {
		assert.True(t, recorded.Contains(ads.DeriveID(href)), href)
	}

	assert.Equal(t, []string{testQuery, PageURL(testQuery, 1)}, rig.fetcher.calls)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 3, result.Unseen)
	assert.Equal(t, 0, result.Seen)
	assert.Equal(t, "www.zonaprop.com.ar", result.Host)
	assert.Equal(t, StopExhausted, result.StopReason)

	// One pause between page 0 and page 1, within the default bounds
	require.Len(t, rig.sleeps, 1)
	assert.GreaterOrEqual(t, rig.sleeps[0], time.Second)
	assert.LessOrEqual(t, rig.sleeps[0], 5*time.Second)
}

// TestCrawlQuery_Idempotent verifies a second crawl over the same pages
// finds nothing new
func TestCrawlQuery_Idempotent(t *testing.T) {
	rig := createTestRig(t, nil)
	page := listing("/p/1.html", "/p/2.html")
	rig.fetcher.pages[testQuery] = page
	rig.fetcher.pages[PageURL(testQuery, 1)] = page

	first, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Unseen)
	assert.Equal(t, 2, first.Seen) // page 1 repeats page 0

	rig.fetcher.calls = nil
	second, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Unseen)
	assert.Equal(t, 2, second.Seen)
	assert.Equal(t, 1, second.Pages)
	assert.Equal(t, []string{testQuery}, rig.fetcher.calls)
	assert.Len(t, rig.notifier.messages, 2)
}

// TestCrawlQuery_PageLimit verifies the hard cap on pages
func TestCrawlQuery_PageLimit(t *testing.T) {
	config := DefaultCrawlConfig()
	config.MaxPages = 2
	rig := createTestRig(t, config)
	for page := 0; page < 4; page++ {
		rig.fetcher.pages[PageURL(testQuery, page)] = listing(fmt.Sprintf("/p/%d.html", page))
	}

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, StopPageLimit, result.StopReason)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Unseen)
	assert.Len(t, rig.fetcher.calls, 2)
}

// TestCrawlQuery_RetriesTransientFailure verifies one retry after RetryDelay
func TestCrawlQuery_RetriesTransientFailure(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.fetcher.pages[testQuery] = listing()
	rig.fetcher.errs[testQuery] = []error{
		&scraper.FetchError{URL: testQuery, StatusCode: http.StatusServiceUnavailable, Err: errors.New("503")},
	}

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, []string{testQuery, testQuery}, rig.fetcher.calls)
	assert.Equal(t, []time.Duration{10 * time.Second}, rig.sleeps)
	assert.Equal(t, StopExhausted, result.StopReason)
}

// TestCrawlQuery_GivesUpAfterRetry verifies a second transient failure is
// returned
func TestCrawlQuery_GivesUpAfterRetry(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.fetcher.pages[testQuery] = listing("/p/1.html")
	transient := &scraper.FetchError{URL: testQuery, StatusCode: http.StatusServiceUnavailable, Err: errors.New("503")}
	rig.fetcher.errs[testQuery] = []error{transient, transient}

	_, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.Error(t, err)

	var fetchErr *scraper.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Len(t, rig.fetcher.calls, 2)
	assert.Empty(t, rig.notifier.messages)
}

// TestCrawlQuery_PermanentFailureNotRetried verifies a 404 fails at once
// and leaves history untouched
func TestCrawlQuery_PermanentFailureNotRetried(t *testing.T) {
	rig := createTestRig(t, nil)

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.Error(t, err)

	assert.True(t, scraper.IsPermanent(err))
	assert.Len(t, rig.fetcher.calls, 1)
	assert.Empty(t, rig.sleeps)
	assert.Equal(t, 0, result.Pages)

	recorded, err := rig.store.Load()
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

// TestCrawlQuery_NoMatchingRule verifies unknown sites fail before fetching
func TestCrawlQuery_NoMatchingRule(t *testing.T) {
	rig := createTestRig(t, nil)

	_, err := rig.crawler.CrawlQuery(context.Background(), "https://www.argenprop.com/departamentos.html")
	require.Error(t, err)

	assert.ErrorIs(t, err, sites.ErrNoMatchingRule)
	assert.Empty(t, rig.fetcher.calls)
}

// TestCrawlQuery_NotifyFailureStillRecords verifies delivery errors are
// counted but do not stop the crawl
func TestCrawlQuery_NotifyFailureStillRecords(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.notifier.err = errors.New("telegram down")
	rig.fetcher.pages[testQuery] = listing("/p/1.html", "/p/2.html")
	rig.fetcher.pages[PageURL(testQuery, 1)] = listing()

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, 2, result.NotifyErrors)
	recorded, err := rig.store.Load()
	require.NoError(t, err)
	assert.Len(t, recorded, 2)

	errorEntries := 0
	for _, e := range rig.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			errorEntries++
		}
	}
	assert.Equal(t, 2, errorEntries)
}

// TestCrawlQuery_DuplicateLinksNotifiedOnce verifies an ad linked twice on
// one page produces a single notification
func TestCrawlQuery_DuplicateLinksNotifiedOnce(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.fetcher.pages[testQuery] = listing("/p/1.html", "/p/1.html")
	rig.fetcher.pages[PageURL(testQuery, 1)] = listing()

	result, err := rig.crawler.CrawlQuery(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unseen)
	assert.Equal(t, []string{testSite + "/p/1.html"}, rig.notifier.messages)
}

// TestCrawlQuery_CancelledDuringNotify verifies ads are not recorded when
// the run is cancelled before they were all delivered
func TestCrawlQuery_CancelledDuringNotify(t *testing.T) {
	rig := createTestRig(t, nil)
	rig.fetcher.pages[testQuery] = listing("/p/1.html", "/p/2.html")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig.notifier.onNotify = cancel

	_, err := rig.crawler.CrawlQuery(ctx, testQuery)
	require.ErrorIs(t, err, context.Canceled)

	recorded, err := rig.store.Load()
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

// TestPageURL covers the pagination URL scheme
func TestPageURL(t *testing.T) {
	tests := []struct {
		name  string
		query string
		page  int
		want  string
	}{
		{"first page unchanged", "https://x/y.html", 0, "https://x/y.html"},
		{"second page", "https://x/y.html", 1, "https://x/y-pagina-1.html"},
		{"later page", testQuery, 12, "https://www.zonaprop.com.ar/departamentos-venta-palermo-pagina-12.html"},
		{"query string kept", "https://x/y.html?orden=precio", 2, "https://x/y-pagina-2.html?orden=precio"},
		{"fragment kept", "https://x/y.html#lista", 3, "https://x/y-pagina-3.html#lista"},
		{"no html suffix", "https://x/venta/palermo", 1, "https://x/venta/palermo-pagina-1"},
		{"bare host", "https://x", 1, "https://x/-pagina-1"},
		{"negative page", "https://x/y.html", -1, "https://x/y.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageURL(tt.query, tt.page))
		})
	}
}

// TestPageDelay verifies the jittered delay stays within its bounds
func TestPageDelay(t *testing.T) {
	pc := &PageCrawler{config: &CrawlConfig{MinDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}}
	for i := 0; i < 100; i++ {
		d := pc.pageDelay()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}

	pc.config = &CrawlConfig{MinDelay: time.Second, MaxDelay: time.Second}
	assert.Equal(t, time.Second, pc.pageDelay())
}

// TestSleepContext verifies cancellation interrupts a pause
func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
