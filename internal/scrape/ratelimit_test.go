package scrape

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDomainLimiterSpacing(t *testing.T) {
	limiter := NewDomainLimiter(10.0, 3) // 100ms interval
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(ctx, "example.com"); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		limiter.Release("example.com")
	}
	elapsed := time.Since(start)

	// Three acquisitions at 10 rps must span at least two intervals.
	if elapsed < 190*time.Millisecond {
		t.Errorf("3 sequential acquires took %v, want >= ~200ms", elapsed)
	}
}

func TestDomainLimiterIndependentDomains(t *testing.T) {
	limiter := NewDomainLimiter(10.0, 3)
	ctx := context.Background()

	start := time.Now()
	for _, domain := range []string{"a.example", "b.example", "c.example"} {
		if err := limiter.Acquire(ctx, domain); err != nil {
			t.Fatalf("Acquire(%q) error = %v", domain, err)
		}
		limiter.Release(domain)
	}
	elapsed := time.Since(start)

	if elapsed >= 200*time.Millisecond {
		t.Errorf("3 different domains serialized (%v elapsed)", elapsed)
	}
}

func TestDomainLimiterConcurrencyCap(t *testing.T) {
	limiter := NewDomainLimiter(1000.0, 2)
	ctx := context.Background()

	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(ctx, "example.com"); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			limiter.Release("example.com")
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > 2 {
		t.Errorf("observed %d simultaneous holders, cap is 2", p)
	}
}

func TestDomainLimiterAcquireCancelled(t *testing.T) {
	limiter := NewDomainLimiter(0.5, 1) // 2s interval
	ctx := context.Background()

	if err := limiter.Acquire(ctx, "example.com"); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	limiter.Release("example.com")

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if err := limiter.Acquire(cancelCtx, "example.com"); err == nil {
		t.Error("Acquire() with expired context succeeded, want error")
		limiter.Release("example.com")
	}
}
