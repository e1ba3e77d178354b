// Package sites maps the hostname of a search URL to the rule used to pull
// ad links out of that site's listing pages.
package sites

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
)

// ErrNoMatchingRule matches every *NoMatchingRuleError.
var ErrNoMatchingRule = errors.New("no matching site rule")

// FeedSelector marks a site whose listing pages are RSS or Atom feeds rather
// than HTML.
const FeedSelector = "@feed"

// Rule binds a site to the selector of its ad links. Site is the configured
// base URL that relative hrefs are resolved against; Host is its normalized
// hostname.
type Rule struct {
	Site     string
	Host     string
	Selector string
}

// IsFeed reports whether the rule's pages are parsed as feeds.
func (r Rule) IsFeed() bool {
	return r.Selector == FeedSelector
}

// NoMatchingRuleError is returned by Resolve when no rule, or more than one,
// matches a hostname.
type NoMatchingRuleError struct {
	Host       string
	Candidates []string // hosts of the rules that matched, when ambiguous
}

func (e *NoMatchingRuleError) Error() string {
	if len(e.Candidates) > 1 {
		return fmt.Sprintf("ambiguous site rule for %s: %s", e.Host, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("no site rule for %s", e.Host)
}

func (e *NoMatchingRuleError) Is(target error) bool {
	return target == ErrNoMatchingRule
}

// Registry holds site rules keyed by normalized hostname. It is built once
// and read-only afterwards.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry builds a registry from a site base URL to selector mapping.
func NewRegistry(selectors map[string]string) (*Registry, error) {
	reg := &Registry{rules: make(map[string]Rule, len(selectors))}

	for site, selector := range selectors {
		u, err := url.Parse(site)
		if err != nil {
			return nil, fmt.Errorf("invalid site %q: %w", site, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return nil, fmt.Errorf("invalid site %q: must be an absolute http(s) URL", site)
		}

		host := NormalizeHost(u.Host)
		if existing, ok := reg.rules[host]; ok {
			return nil, fmt.Errorf("sites %q and %q share host %s", existing.Site, site, host)
		}

		selector = strings.TrimSpace(selector)
		if err := ValidateSelector(selector); err != nil {
			return nil, fmt.Errorf("site %q: %w", site, err)
		}

		reg.rules[host] = Rule{
			Site:     site,
			Host:     host,
			Selector: selector,
		}
	}

	return reg, nil
}

// Resolve returns the rule for the hostname of rawURL. An exact hostname
// match wins; otherwise the single rule whose host is contained in the
// hostname is used, so a rule for zonaprop.com.ar serves
// www.zonaprop.com.ar.
func (r *Registry) Resolve(rawURL string) (Rule, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	host := NormalizeHost(u.Host)
	if host == "" {
		return Rule{}, &NoMatchingRuleError{Host: rawURL}
	}

	if rule, ok := r.rules[host]; ok {
		return rule, nil
	}

	var matches []Rule
	for pattern, rule := range r.rules {
		if strings.Contains(host, pattern) {
			matches = append(matches, rule)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Rule{}, &NoMatchingRuleError{Host: host}
	default:
		candidates := make([]string, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, m.Host)
		}
		sort.Strings(candidates)
		return Rule{}, &NoMatchingRuleError{Host: host, Candidates: candidates}
	}
}

// Rules returns every rule sorted by host.
func (r *Registry) Rules() []Rule {
	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Host < rules[j].Host
	})
	return rules
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// ValidateSelector checks that selector is FeedSelector or a CSS selector
// that compiles. Invalid selectors would otherwise match nothing and look
// like an empty listing.
func ValidateSelector(selector string) error {
	if selector == "" {
		return errors.New("empty selector")
	}
	if selector == FeedSelector {
		return nil
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

// NormalizeHost lowercases a host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
