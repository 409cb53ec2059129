package scrape

import (
	"context"
	"sync"
	"time"
)

// DomainLimiter paces requests per domain and caps how many callers may
// hold a domain's slot at once. Per-domain state is created lazily and
// lives for the lifetime of the limiter.
//
// Acquire blocks until a concurrency slot is free and at least
// 1/ratePerSecond seconds have passed since the last grant for that
// domain. Grant times are reserved under a single lock, so two callers
// racing on the same domain always receive distinct, spaced grants.
// Different domains never wait on each other.
type DomainLimiter struct {
	interval      time.Duration
	maxConcurrent int

	mu     sync.Mutex
	grants map[string]time.Time     // next allowed grant per domain
	slots  map[string]chan struct{} // concurrency slots per domain
}

// NewDomainLimiter builds a limiter granting ratePerSecond requests per
// domain with at most maxConcurrent in-flight requests per domain.
func NewDomainLimiter(ratePerSecond float64, maxConcurrent int) *DomainLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 2.0
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	return &DomainLimiter{
		interval:      time.Duration(float64(time.Second) / ratePerSecond),
		maxConcurrent: maxConcurrent,
		grants:        make(map[string]time.Time),
		slots:         make(map[string]chan struct{}),
	}
}

// Acquire blocks until the caller may issue a request to domain. Every
// successful Acquire must be paired with a Release.
func (l *DomainLimiter) Acquire(ctx context.Context, domain string) error {
	slot := l.slot(domain)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Reserve the next grant time atomically, then wait it out without
	// holding the lock.
	l.mu.Lock()
	now := time.Now()
	grant := l.grants[domain]
	if grant.Before(now) {
		grant = now
	}
	l.grants[domain] = grant.Add(l.interval)
	l.mu.Unlock()

	if wait := time.Until(grant); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			<-slot
			return ctx.Err()
		}
	}

	return nil
}

// Release frees one concurrency slot for domain.
func (l *DomainLimiter) Release(domain string) {
	l.mu.Lock()
	slot, ok := l.slots[domain]
	l.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-slot:
	default:
	}
}

func (l *DomainLimiter) slot(domain string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[domain]
	if !ok {
		slot = make(chan struct{}, l.maxConcurrent)
		l.slots[domain] = slot
	}
	return slot
}
