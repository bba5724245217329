package bypass

import (
	"net/http"
	"testing"
)

func TestDetectCloudflare(t *testing.T) {
	// Not blocked
	p := Page{
		StatusCode: 200,
		Headers:    http.Header{"Server": {"nginx"}},
		Body:       []byte("OK"),
	}
	if detected, _ := detectCloudflare(p); detected {
		t.Errorf("expected not detected")
	}

	// CF Server Header
	p = Page{
		StatusCode: 403,
		Headers:    http.Header{"Server": {"cloudflare"}},
		Body:       []byte("Access Denied"),
	}
	if detected, src := detectCloudflare(p); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by header")
	}

	// CF Body signature
	p = Page{
		StatusCode: 503,
		Headers:    http.Header{},
		Body:       []byte("<html>... cf-turnstile ...</html>"),
	}
	if detected, src := detectCloudflare(p); !detected || src != "Cloudflare" {
		t.Errorf("expected Cloudflare detection by body")
	}
}

func TestDetectAkamai(t *testing.T) {
	p := Page{
		StatusCode: 403,
		Headers:    http.Header{"Server": {"AkamaiGHost"}},
		Body:       []byte(""),
	}
	if detected, src := detectAkamai(p); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by header")
	}

	p = Page{
		StatusCode: 403,
		Headers:    http.Header{},
		Body:       []byte("Access Denied... Reference #123.456"),
	}
	if detected, src := detectAkamai(p); !detected || src != "Akamai" {
		t.Errorf("expected Akamai detection by body")
	}
}

func TestDetectDataDome(t *testing.T) {
	p := Page{
		StatusCode: 403,
		Headers:    http.Header{"X-DataDome": {"1"}},
		Body:       []byte(""),
	}
	if detected, src := detectDataDome(p); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by header")
	}

	p = Page{
		StatusCode: 403,
		Headers:    http.Header{},
		Body:       []byte("script src='https://geo.captcha-delivery.com/...'"),
	}
	if detected, src := detectDataDome(p); !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection by body")
	}
}

func TestDetectPerimeterX(t *testing.T) {
	p := Page{
		StatusCode: 403,
		Headers:    http.Header{"X-Px-Captcha": {"required"}},
		Body:       []byte(""),
	}
	if detected, src := detectPerimeterX(p); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by header")
	}

	p = Page{
		StatusCode: 403,
		Headers:    http.Header{},
		Body:       []byte("window._pxBlock = true;"),
	}
	if detected, src := detectPerimeterX(p); !detected || src != "PerimeterX" {
		t.Errorf("expected PerimeterX detection by body")
	}
}

func TestAnalyze(t *testing.T) {
	detectors := DefaultDetectors()

	detected, src := Analyze(Page{
		StatusCode: 403,
		Headers:    http.Header{"X-DataDome": {"1"}},
		Body:       []byte(""),
	}, detectors)
	if !detected || src != "DataDome" {
		t.Errorf("expected DataDome detection, got %v %q", detected, src)
	}

	detectedSafe, srcSafe := Analyze(Page{
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte("hello"),
	}, detectors)
	if detectedSafe || srcSafe != "" {
		t.Errorf("expected safe result, got %v %q", detectedSafe, srcSafe)
	}
}
