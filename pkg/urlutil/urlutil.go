// Package urlutil provides URL checks and resolution that preserve the
// original encoding of extracted attributes.
package urlutil

import (
	"net/url"
	"strings"
)

// HasSourcePrefix reports whether rawURL is an acceptable source page URL:
// it must start with prefix verbatim. Matching is case-sensitive, so
// "HTTPS://YANDEX.RU/..." is rejected for the default prefix.
func HasSourcePrefix(rawURL, prefix string) bool {
	if rawURL == "" || prefix == "" {
		return false
	}
	return strings.HasPrefix(rawURL, prefix)
}

// ResolveIframeSrc turns an iframe src attribute into an absolute URL.
// Protocol-relative sources ("//host/path") take the https scheme. Other
// relative forms are resolved against pageURL.
// Uses string manipulation to keep the original encoding: url.ResolveReference
// re-escapes characters that embed hosts put in player query strings.
func ResolveIframeSrc(src, pageURL string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return ResolveURL(src, pageURL)
}

// ResolveURL resolves a potentially relative URL against a base URL.
func ResolveURL(urlStr string, baseURL string) string {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}

	base := GetBaseDirectory(baseURL)

	if strings.HasPrefix(urlStr, "/") {
		host := GetSchemeHost(baseURL)
		if host == "" {
			return base + strings.TrimPrefix(urlStr, "/")
		}
		return host + urlStr
	}

	if strings.HasPrefix(urlStr, "../") {
		root := len(GetSchemeHost(baseURL))
		result := base
		remaining := urlStr
		for strings.HasPrefix(remaining, "../") {
			remaining = remaining[3:]
			// Never climb above the host.
			trimmed := strings.TrimSuffix(result, "/")
			if lastSlash := strings.LastIndex(trimmed, "/"); lastSlash >= root {
				result = trimmed[:lastSlash+1]
			}
		}
		return result + remaining
	}

	return base + strings.TrimPrefix(urlStr, "./")
}

// GetBaseDirectory returns the directory portion of a URL (without the
// last path segment or query string).
func GetBaseDirectory(urlStr string) string {
	if idx := strings.IndexAny(urlStr, "?#"); idx > 0 {
		urlStr = urlStr[:idx]
	}
	// A bare host ("https://host") has no path; its directory is the root.
	if host := GetSchemeHost(urlStr); host != "" && (urlStr == host) {
		return host + "/"
	}
	if lastSlash := strings.LastIndex(urlStr, "/"); lastSlash > 0 {
		return urlStr[:lastSlash+1]
	}
	return urlStr
}

// GetSchemeHost extracts scheme://host from a URL.
func GetSchemeHost(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
