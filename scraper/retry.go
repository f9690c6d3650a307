package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-whisky/config"
)

// retryManager re-issues failed requests with capped exponential backoff.
// The retry callback re-sends the failed request, so the crawl state and
// site carried on its context survive the retry.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	attempts     map[string]int
	timers       map[string]*time.Timer
	idle         *sync.Cond
	scheduled    int
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	rm := &retryManager{
		cfg:      cfg,
		metrics:  metrics,
		ctx:      context.Background(),
		attempts: make(map[string]int),
		timers:   make(map[string]*time.Timer),
	}
	rm.idle = sync.NewCond(&rm.mu)
	return rm
}

// Schedule arranges for retry to run after the backoff for key's next
// attempt. It reports false once key has used up its retries, after Stop,
// or once the context is done.
func (rm *retryManager) Schedule(key string, retry func() error) bool {
	if rm.cfg.MaxRetries == 0 {
		return false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped || rm.ctx.Err() != nil {
		return false
	}

	attempt := rm.attempts[key]
	if attempt >= rm.cfg.MaxRetries {
		return false
	}
	attempt++
	rm.attempts[key] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	if timer, ok := rm.timers[key]; ok && timer.Stop() {
		rm.doneLocked()
	}

	delay := rm.backoff(attempt)
	slog.Debug("retry scheduled",
		slog.String("url", key),
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay),
	)
	rm.scheduled++
	rm.timers[key] = time.AfterFunc(delay, func() {
		rm.fire(key, retry)
	})
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base << (attempt - 1)
	if limit := rm.cfg.RetryBackoffMax; limit > 0 && (delay > limit || delay <= 0) {
		delay = limit
	}
	return delay
}

func (rm *retryManager) fire(key string, retry func() error) {
	rm.mu.Lock()
	delete(rm.timers, key)
	stopped := rm.stopped || rm.ctx.Err() != nil
	rm.mu.Unlock()

	if !stopped {
		if err := retry(); err != nil {
			slog.Debug("retry request failed", slog.String("url", key), slog.Any("error", err))
		}
	}

	rm.mu.Lock()
	rm.doneLocked()
	rm.mu.Unlock()
}

func (rm *retryManager) doneLocked() {
	rm.scheduled--
	if rm.scheduled == 0 {
		rm.idle.Broadcast()
	}
}

// Wait blocks until every scheduled retry has been re-issued or cancelled.
// It reports whether there was anything to wait for.
func (rm *retryManager) Wait() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.scheduled == 0 {
		return false
	}
	for rm.scheduled > 0 {
		rm.idle.Wait()
	}
	return true
}

// Stop cancels every pending retry and refuses new ones.
func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}
	rm.stopped = true
	for key, timer := range rm.timers {
		if timer.Stop() {
			rm.doneLocked()
		}
		delete(rm.timers, key)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	rm.ctx = ctx
}
