package originguard

import (
	"errors"
	"testing"

	"github.com/FranksOps/atra/internal/atraurl"
)

func TestReserveThenReleaseAllowsReReserve(t *testing.T) {
	m := New()
	origin := atraurl.Origin("https://example.com")

	g, err := m.Reserve(origin, atraurl.Depth{})
	if err != nil {
		t.Fatal(err)
	}
	g.Release()

	if _, err := m.Reserve(origin, atraurl.Depth{}); err != nil {
		t.Fatalf("expected re-reservation to succeed, got %v", err)
	}
}

func TestReserveTwiceFails(t *testing.T) {
	m := New()
	origin := atraurl.Origin("https://example.com")

	g, err := m.Reserve(origin, atraurl.Depth{})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Release()

	if _, err := m.Reserve(origin, atraurl.Depth{}); !errors.Is(err, ErrAlreadyReserved) {
		t.Fatalf("got %v want ErrAlreadyReserved", err)
	}
}

func TestPoisonBlocksFutureReservations(t *testing.T) {
	m := New()
	origin := atraurl.Origin("https://example.com")

	g, err := m.Reserve(origin, atraurl.Depth{})
	if err != nil {
		t.Fatal(err)
	}
	m.Poison(origin)

	if err := g.CheckForPoison(); !errors.Is(err, ErrPoisoned) {
		t.Fatalf("got %v want ErrPoisoned", err)
	}
	g.Release()

	if _, err := m.Reserve(origin, atraurl.Depth{}); !errors.Is(err, ErrPoisoned) {
		t.Fatalf("got %v want ErrPoisoned after release", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := New()
	origin := atraurl.Origin("https://example.com")

	g, err := m.Reserve(origin, atraurl.Depth{})
	if err != nil {
		t.Fatal(err)
	}
	g.Release()
	g.Release()

	if _, err := m.Reserve(origin, atraurl.Depth{}); err != nil {
		t.Fatalf("unexpected error after double release: %v", err)
	}
}

func TestGuardTracksSmallestDepth(t *testing.T) {
	m := New()
	origin := atraurl.Origin("https://example.com")

	g1, err := m.Reserve(origin, atraurl.Depth{TotalDistanceToSeed: 5})
	if err != nil {
		t.Fatal(err)
	}
	g1.Release()

	g2, err := m.Reserve(origin, atraurl.Depth{TotalDistanceToSeed: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := g2.Depth().TotalDistanceToSeed, uint64(1); got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestIsPoisonedOnUnknownOrigin(t *testing.T) {
	m := New()
	if m.IsPoisoned(atraurl.Origin("https://never-reserved.example")) {
		t.Fatalf("expected unknown origin to not be poisoned")
	}
}
