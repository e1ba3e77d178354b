package ads

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

// Ad is a single classified listing found on a results page. ID is derived
// from the raw href only, so the same link path maps to the same ID even if
// the site's base URL changes.
type Ad struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DeriveID returns the hex encoded SHA-1 of href. It is a pure function of
// href and always returns 40 characters.
func DeriveID(href string) string {
	sum := sha1.Sum([]byte(href))
	return hex.EncodeToString(sum[:])
}

// New builds an Ad from a raw href found on a page of the given site. The
// ID hashes href exactly as found; only the URL ignores surrounding
// whitespace.
func New(baseURL, href string) Ad {
	return Ad{
		ID:  DeriveID(href),
		URL: ResolveURL(baseURL, strings.TrimSpace(href)),
	}
}

// ResolveURL turns href into an absolute URL using baseURL. Absolute hrefs
// are returned unchanged. If either value cannot be parsed, the two strings
// are concatenated.
func ResolveURL(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return joinURL(baseURL, href)
	}
	if ref.IsAbs() {
		return href
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return joinURL(baseURL, href)
	}

	return base.ResolveReference(ref).String()
}

// joinURL concatenates base and href with exactly one slash between them.
func joinURL(base, href string) string {
	if href == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}
