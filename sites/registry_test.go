package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: a registry with the sites used across these tests
func createTestRegistry(t *testing.T) *Registry {
	reg, err := NewRegistry(map[string]string{
		"https://www.zonaprop.com.ar": "a.postingCardTitle",
		"https://argenprop.com":       "div.listing__item > a",
		"https://feeds.example.com":   FeedSelector,
	})
	require.NoError(t, err)
	return reg
}

// TestResolve_ExactMatch verifies exact hostname lookup
func TestResolve_ExactMatch(t *testing.T) {
	reg := createTestRegistry(t)

	rule, err := reg.Resolve("https://www.zonaprop.com.ar/departamentos-venta.html")
	require.NoError(t, err)
	assert.Equal(t, "https://www.zonaprop.com.ar", rule.Site)
	assert.Equal(t, "www.zonaprop.com.ar", rule.Host)
	assert.Equal(t, "a.postingCardTitle", rule.Selector)
	assert.False(t, rule.IsFeed())
}

// TestResolve_CaseAndPortInsensitive verifies normalization of the query host
func TestResolve_CaseAndPortInsensitive(t *testing.T) {
	reg := createTestRegistry(t)

	rule, err := reg.Resolve("https://WWW.ZonaProp.com.ar:443/x.html")
	require.NoError(t, err)
	assert.Equal(t, "www.zonaprop.com.ar", rule.Host)
}

// TestResolve_SubstringMatch verifies a bare domain rule serves subdomains
func TestResolve_SubstringMatch(t *testing.T) {
	reg := createTestRegistry(t)

	rule, err := reg.Resolve("https://www.argenprop.com/departamentos/venta")
	require.NoError(t, err)
	assert.Equal(t, "argenprop.com", rule.Host)
}

// TestResolve_NoMatch verifies unconfigured hosts fail
func TestResolve_NoMatch(t *testing.T) {
	reg := createTestRegistry(t)

	_, err := reg.Resolve("https://www.mercadolibre.com.ar/inmuebles")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingRule)

	var noMatch *NoMatchingRuleError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, "www.mercadolibre.com.ar", noMatch.Host)
	assert.Empty(t, noMatch.Candidates)
}

// TestResolve_Ambiguous verifies multiple substring matches are rejected
func TestResolve_Ambiguous(t *testing.T) {
	reg, err := NewRegistry(map[string]string{
		"https://example.com":     "a.one",
		"https://ads.example.com": "a.two",
	})
	require.NoError(t, err)

	_, err = reg.Resolve("https://www.ads.example.com/list.html")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingRule)

	var noMatch *NoMatchingRuleError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, []string{"ads.example.com", "example.com"}, noMatch.Candidates)
	assert.Contains(t, err.Error(), "ambiguous")

	// The exact host still wins over the broader rule
	rule, err := reg.Resolve("https://ads.example.com/list.html")
	require.NoError(t, err)
	assert.Equal(t, "a.two", rule.Selector)
}

// TestResolve_NoHost verifies relative URLs cannot be resolved
func TestResolve_NoHost(t *testing.T) {
	reg := createTestRegistry(t)

	_, err := reg.Resolve("/departamentos.html")
	assert.ErrorIs(t, err, ErrNoMatchingRule)
}

// TestNewRegistry_InvalidSite verifies site keys must be absolute URLs
func TestNewRegistry_InvalidSite(t *testing.T) {
	_, err := NewRegistry(map[string]string{"www.zonaprop.com.ar": "a"})
	assert.Error(t, err)

	_, err = NewRegistry(map[string]string{"ftp://example.com": "a"})
	assert.Error(t, err)
}

// TestNewRegistry_DuplicateHost verifies two sites cannot share a host
func TestNewRegistry_DuplicateHost(t *testing.T) {
	_, err := NewRegistry(map[string]string{
		"https://example.com":  "a.one",
		"http://EXAMPLE.com/x": "a.two",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share host example.com")
}

// TestRules_Sorted verifies the listing order
func TestRules_Sorted(t *testing.T) {
	reg := createTestRegistry(t)

	rules := reg.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, "argenprop.com", rules[0].Host)
	assert.Equal(t, "feeds.example.com", rules[1].Host)
	assert.True(t, rules[1].IsFeed())
	assert.Equal(t, "www.zonaprop.com.ar", rules[2].Host)
}

// TestNormalizeHost covers the normalization rules
func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeHost("Example.COM"))
	assert.Equal(t, "example.com", NormalizeHost("example.com:8080"))
	assert.Equal(t, "example.com", NormalizeHost("example.com."))
	assert.Equal(t, "", NormalizeHost(""))
}

// TestNewRegistry_InvalidSelector verifies broken selectors are rejected at
// load time
func TestNewRegistry_InvalidSelector(t *testing.T) {
	_, err := NewRegistry(map[string]string{
		"https://www.zonaprop.com.ar": "div[class=",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selector")

	_, err = NewRegistry(map[string]string{
		"https://www.zonaprop.com.ar": "   ",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty selector")
}

// TestValidateSelector covers the accepted selector forms
func TestValidateSelector(t *testing.T) {
	assert.NoError(t, ValidateSelector("a.postingCardTitle"))
	assert.NoError(t, ValidateSelector("div.listing__item > a, a.card"))
	assert.NoError(t, ValidateSelector(FeedSelector))
	assert.Error(t, ValidateSelector(""))
	assert.Error(t, ValidateSelector("a[href"))
}
