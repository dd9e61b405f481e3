package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestDomainLimiter_AllowWithinBurst(t *testing.T) {
	dl := NewDomainLimiter(1.0, 2)

	if !dl.Allow("https://example.com/a") {
		t.Error("first request should be allowed")
	}
	if !dl.Allow("https://example.com/b") {
		t.Error("second request within burst should be allowed")
	}
	if dl.Allow("https://example.com/c") {
		t.Error("third request should exceed the burst")
	}
}

func TestDomainLimiter_IndependentHosts(t *testing.T) {
	dl := NewDomainLimiter(1.0, 1)

	if !dl.Allow("https://one.example.com/") {
		t.Error("first host should be allowed")
	}
	if !dl.Allow("https://two.example.com/") {
		t.Error("second host has its own bucket")
	}
}

func TestDomainLimiter_WaitHonorsContext(t *testing.T) {
	dl := NewDomainLimiter(0.1, 1)
	dl.Allow("https://example.com/") // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := dl.Wait(ctx, "https://example.com/"); err == nil {
		t.Error("expected context deadline error while throttled")
	}
}

func TestDomainLimiter_InvalidURLPasses(t *testing.T) {
	dl := NewDomainLimiter(1.0, 1)
	if !dl.Allow("::not-a-url") {
		t.Error("unparseable URLs should pass through to fail at fetch time")
	}
}
