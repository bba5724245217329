package budget

import (
	"testing"

	"github.com/FranksOps/atra/internal/atraurl"
)

func urlWithDepth(t *testing.T, d atraurl.Depth) atraurl.URL {
	t.Helper()
	u, err := atraurl.New("https://example.com/a", d)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestSeedOnlyRejectsCrossOrigin(t *testing.T) {
	s := Setting{Kind: SeedOnly, DepthOnWebsite: 10}
	u := urlWithDepth(t, atraurl.Depth{DistanceToSeed: 1})
	if s.IsInBudget(u) {
		t.Fatalf("expected cross-origin url to be out of budget for SeedOnly")
	}
}

func TestSeedOnlyZeroDepthIsUnbounded(t *testing.T) {
	s := Setting{Kind: SeedOnly, DepthOnWebsite: 0}
	u := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 999})
	if !s.IsInBudget(u) {
		t.Fatalf("expected depth_on_website=0 to mean unbounded")
	}
}

func TestSeedOnlyRespectsDepthOnWebsite(t *testing.T) {
	s := Setting{Kind: SeedOnly, DepthOnWebsite: 3}
	in := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 2})
	out := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 3})
	if !s.IsInBudget(in) {
		t.Fatalf("expected depth 2 to be within budget of 3")
	}
	if s.IsInBudget(out) {
		t.Fatalf("expected depth 3 to be outside budget of 3 (strict less-than)")
	}
}

func TestNormalChecksBothDimensions(t *testing.T) {
	s := Setting{Kind: Normal, DepthOnWebsite: 5, Depth: 2}
	within := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 4, DistanceToSeed: 2})
	tooDeepOnSite := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 5, DistanceToSeed: 1})
	tooFarFromSeed := urlWithDepth(t, atraurl.Depth{DepthOnWebsite: 0, DistanceToSeed: 3})

	if !s.IsInBudget(within) {
		t.Fatalf("expected url within both limits to be in budget")
	}
	if s.IsInBudget(tooDeepOnSite) {
		t.Fatalf("expected url at depth_on_website limit to be out of budget")
	}
	if s.IsInBudget(tooFarFromSeed) {
		t.Fatalf("expected url beyond distance_to_seed limit to be out of budget")
	}
}

func TestAbsoluteChecksTotalDistance(t *testing.T) {
	s := Setting{Kind: Absolute, Depth: 3}
	within := urlWithDepth(t, atraurl.Depth{TotalDistanceToSeed: 2})
	out := urlWithDepth(t, atraurl.Depth{TotalDistanceToSeed: 3})

	if !s.IsInBudget(within) {
		t.Fatalf("expected total distance 2 within budget of 3")
	}
	if s.IsInBudget(out) {
		t.Fatalf("expected total distance 3 to be outside budget of 3")
	}
}

func TestAbsoluteZeroIsUnbounded(t *testing.T) {
	s := Setting{Kind: Absolute, Depth: 0}
	u := urlWithDepth(t, atraurl.Depth{TotalDistanceToSeed: 1_000_000})
	if !s.IsInBudget(u) {
		t.Fatalf("expected depth=0 to mean unbounded for Absolute")
	}
}

func TestCrawlPerHostOverride(t *testing.T) {
	c := NewCrawl(Setting{Kind: Absolute, Depth: 1})
	origin := atraurl.Origin("https://example.com")
	c.PerHost[origin] = Setting{Kind: Absolute, Depth: 100}

	u := urlWithDepth(t, atraurl.Depth{TotalDistanceToSeed: 50})
	if !c.IsInBudget(u) {
		t.Fatalf("expected per-host override to widen the budget")
	}
}
