package market

import (
	"context"
	"sync"
	"time"

	"krx-scalper/internal/models"
)

// RateLimiter implements a token bucket rate limiter for quote lookups.
type RateLimiter struct {
	rate       float64 // tokens per second
	burst      int     // max tokens
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// Allow checks if a request is allowed under the rate limit.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * r.rate
	if r.tokens > float64(r.burst) {
		r.tokens = float64(r.burst)
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Wait waits until a request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * 10):
			// Try again
		}
	}
}

// Fetcher fans quote lookups out across a bounded worker set. Fetches are
// read-only; the caller applies any resulting mutations on its own
// goroutine.
type Fetcher struct {
	provider QuoteProvider
	workers  int
	limiter  *RateLimiter
}

// NewFetcher creates a fetcher with the given parallelism. limiter may be
// nil for unthrottled lookups.
func NewFetcher(provider QuoteProvider, workers int, limiter *RateLimiter) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{provider: provider, workers: workers, limiter: limiter}
}

// Prices fetches current prices for all codes and returns the ones that
// resolved. Unavailable quotes are simply absent from the result; the
// caller treats them as skip-this-tick.
func (f *Fetcher) Prices(ctx context.Context, codes []string) map[string]float64 {
	if len(codes) == 0 {
		return map[string]float64{}
	}

	jobs := make(chan string)
	results := make(chan models.Quote, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				if f.limiter != nil {
					if err := f.limiter.Wait(ctx); err != nil {
						return
					}
				}
				q, err := f.provider.Quote(ctx, code)
				if err != nil || q.Price <= 0 {
					continue
				}
				results <- q
			}
		}()
	}

	for _, code := range codes {
		select {
		case jobs <- code:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	prices := make(map[string]float64, len(codes))
	for q := range results {
		prices[q.Code] = q.Price
	}
	return prices
}
