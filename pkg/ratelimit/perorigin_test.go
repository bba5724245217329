package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPerOrigin_DelaysSameOrigin(t *testing.T) {
	p := NewPerOrigin(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if err := p.Wait(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("second wait returned after %v, want >= 50ms", elapsed)
	}
}

func TestPerOrigin_DifferentOriginsDoNotBlock(t *testing.T) {
	p := NewPerOrigin(500 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := p.Wait(ctx, "https://one.example"); err != nil {
		t.Fatal(err)
	}
	if err := p.Wait(ctx, "https://two.example"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("independent origins blocked each other: %v", elapsed)
	}
}

func TestPerOrigin_DisabledWithZeroDelay(t *testing.T) {
	p := NewPerOrigin(0)
	for i := 0; i < 10; i++ {
		if err := p.Wait(context.Background(), "https://example.com"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPerOrigin_ContextCancellation(t *testing.T) {
	p := NewPerOrigin(time.Hour)
	ctx := context.Background()
	if err := p.Wait(ctx, "https://example.com"); err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(cancelled, "https://example.com"); err == nil {
		t.Fatal("expected context error on hour-long wait")
	}
}
