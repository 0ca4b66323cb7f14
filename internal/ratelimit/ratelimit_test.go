package ratelimit

import (
	"errors"
	"testing"
)

func TestAllow_Burst(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := l.Allow("alice"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

func TestAllow_PerClientIsolation(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 1})

	if err := l.Allow("alice"); err != nil {
		t.Fatalf("alice rejected: %v", err)
	}
	if err := l.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("alice should be limited, got %v", err)
	}
	// Bob has an independent bucket.
	if err := l.Allow("bob"); err != nil {
		t.Errorf("bob rejected: %v", err)
	}
}

func TestAllow_Unlimited(t *testing.T) {
	l := New(Config{})
	for i := 0; i < 100; i++ {
		if err := l.Allow("anyone"); err != nil {
			t.Fatalf("unlimited limiter rejected request %d: %v", i, err)
		}
	}
}

func TestAllow_BurstDefaultsToRate(t *testing.T) {
	l := New(Config{RequestsPerMinute: 2})

	if err := l.Allow("c"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("c"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("c"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}
