package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/propfinder/ads"
	"github.com/pevans/propfinder/sites"
	"github.com/sirupsen/logrus"
)

// Extractor pulls ad links out of listing pages.
type Extractor struct {
	log logrus.FieldLogger
}

// NewExtractor creates an extractor that reports stale selectors on log.
func NewExtractor(log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{log: log}
}

// Extract parses page and returns one Ad per element matching selector, in
// document order. Relative hrefs are resolved against baseURL. When selector
// is sites.FeedSelector the page is read as an RSS or Atom feed instead.
//
// A selector that yields no ads is not an error: a single warning is logged
// and an empty slice returned. The error is only for pages that cannot be
// parsed at all.
func (e *Extractor) Extract(page, selector, baseURL string) ([]ads.Ad, error) {
	return e.ExtractRule(page, sites.Rule{Site: baseURL, Selector: selector})
}

// ExtractRule is Extract driven by a site rule.
func (e *Extractor) ExtractRule(page string, rule sites.Rule) ([]ads.Ad, error) {
	if rule.IsFeed() {
		return e.extractFeed(page, rule.Site)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return e.ExtractDocument(doc, rule.Selector, rule.Site), nil
}

// ExtractDocument is Extract for an already parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document, selector, baseURL string) []ads.Ad {
	found := []ads.Ad{}

	selection := doc.Find(selector)
	if selection.Length() == 0 {
		e.warnNoMatches(baseURL, selector)
		return found
	}

	selection.Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			// One malformed card should not cost the whole page
			e.log.WithFields(logrus.Fields{
				"site":     baseURL,
				"selector": selector,
				"index":    i,
			}).Debug("Skipping matched element without href")
			return
		}

		found = append(found, ads.New(baseURL, href))
	})

	if len(found) == 0 {
		e.warnNoMatches(baseURL, selector)
	}

	return found
}

// extractFeed reads page as an RSS or Atom feed and uses each item's link
// as the ad href.
func (e *Extractor) extractFeed(page, baseURL string) ([]ads.Ad, error) {
	feed, err := gofeed.NewParser().ParseString(page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	found := []ads.Ad{}
	for i, item := range feed.Items {
		href := item.Link
		if strings.TrimSpace(href) == "" && len(item.Links) > 0 {
			href = item.Links[0]
		}
		if strings.TrimSpace(href) == "" {
			e.log.WithFields(logrus.Fields{
				"site":  baseURL,
				"index": i,
			}).Debug("Skipping feed item without link")
			continue
		}

		found = append(found, ads.New(baseURL, href))
	}

	if len(found) == 0 {
		e.warnNoMatches(baseURL, sites.FeedSelector)
	}

	return found, nil
}

func (e *Extractor) warnNoMatches(baseURL, selector string) {
	e.log.WithFields(logrus.Fields{
		"site":     baseURL,
		"selector": selector,
	}).Warn("No ads extracted; the selector may be stale or the page layout changed")
}
