// Package bypass recognizes bot-protection challenge pages: responses
// that succeeded at the transport level but carry a Cloudflare, Akamai,
// DataDome or PerimeterX block instead of the real content. The crawl
// loop classifies such fetches as internal errors rather than storing the
// challenge page as the crawled result.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the slice of a fetch response the detectors inspect.
type Page struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Detector examines a fetched page to determine if a bot protection
// mechanism blocked or challenged the request.
type Detector func(p Page) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the page through all provided detectors and returns the
// first detection, if any.
func Analyze(p Page, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(p); detected {
			return true, source
		}
	}
	return false, ""
}

func getHeader(headers http.Header, key string) string {
	if vals, ok := headers[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	// Case-insensitive fallback
	lowerKey := strings.ToLower(key)
	for k, vals := range headers {
		if strings.ToLower(k) == lowerKey && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(p Page) (bool, string) {
	// Status codes 403 or 503 are common for CF challenges
	if p.StatusCode == http.StatusForbidden || p.StatusCode == http.StatusServiceUnavailable {
		// Check headers
		server := strings.ToLower(getHeader(p.Headers, "Server"))
		if strings.Contains(server, "cloudflare") {
			return true, "Cloudflare"
		}

		// Check body signatures
		if bytes.Contains(p.Body, []byte("cf-browser-verification")) ||
			bytes.Contains(p.Body, []byte("cloudflare-nginx")) ||
			bytes.Contains(p.Body, []byte("cf-turnstile")) ||
			bytes.Contains(p.Body, []byte("Attention Required! | Cloudflare")) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(p Page) (bool, string) {
	if p.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(p.Headers, "Server"))
		if strings.Contains(server, "akamai") {
			return true, "Akamai"
		}

		// Akamai often returns a generic "Reference #" block page
		if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
			return true, "Akamai"
		}
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(p Page) (bool, string) {
	// DataDome often returns 403
	if p.StatusCode == http.StatusForbidden {
		server := strings.ToLower(getHeader(p.Headers, "Server"))
		if strings.Contains(server, "datadome") {
			return true, "DataDome"
		}

		// Look for DataDome specific headers
		if getHeader(p.Headers, "X-DataDome") != "" || getHeader(p.Headers, "X-DataDome-Response") != "" {
			return true, "DataDome"
		}

		// Body signatures
		if bytes.Contains(p.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(p.Body, []byte("datadome")) {
			return true, "DataDome"
		}
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(p Page) (bool, string) {
	if p.StatusCode == http.StatusForbidden {
		// Look for PX specific cookies or headers
		if getHeader(p.Headers, "X-Px-Captcha") != "" {
			return true, "PerimeterX"
		}

		// Body signatures
		if bytes.Contains(p.Body, []byte("client.perimeterx.net")) ||
			bytes.Contains(p.Body, []byte("px-captcha")) ||
			bytes.Contains(p.Body, []byte("_pxBlock")) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}
