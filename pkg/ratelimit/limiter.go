package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"moltscraper/pkg/config"
	"moltscraper/pkg/logger"
)

// ErrThrottleCeiling is returned once the remote API has rejected too many
// consecutive requests with 429. It bounds pathological retry storms; the
// caller should abort the current stage rather than keep waiting.
var ErrThrottleCeiling = errors.New("rate limit ceiling reached: too many consecutive throttle responses")

// Limiter gates outgoing API requests
type Limiter interface {
	// Admit blocks until issuing one more request stays under the proactive
	// threshold and any active cooldown has elapsed. It records the request
	// timestamp when the permit is granted.
	Admit(ctx context.Context) error

	// ReportThrottled records a 429-equivalent response from the API. It
	// schedules an escalating cooldown and returns ErrThrottleCeiling after
	// the configured number of consecutive throttle signals.
	ReportThrottled() error

	// ReportSuccess resets the consecutive-throttle counter.
	ReportSuccess()
}

// SlidingWindow implements Limiter with a time-bounded count of recent
// requests plus an escalating cooldown driven by throttle signals.
type SlidingWindow struct {
	window         time.Duration
	threshold      int
	cooldownBase   time.Duration
	cooldownCap    time.Duration
	maxConsecutive int

	mu                   sync.Mutex
	requests             []time.Time
	consecutiveThrottles int
	cooldownUntil        time.Time

	// Injectable for tests; default to the real clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	logger logger.Logger
}

// NewSlidingWindow creates a limiter from rate limit configuration
func NewSlidingWindow(cfg config.RateLimitConfig, log logger.Logger) *SlidingWindow {
	if log == nil {
		log = logger.GetLogger()
	}

	return &SlidingWindow{
		window:         cfg.Window,
		threshold:      cfg.Threshold,
		cooldownBase:   cfg.CooldownBase,
		cooldownCap:    cfg.CooldownCap,
		maxConsecutive: cfg.MaxConsecutiveThrottle,
		requests:       make([]time.Time, 0, cfg.Threshold),
		now:            time.Now,
		sleep:          sleepContext,
		logger:         log,
	}
}

// Admit blocks until a request permit is available
func (sw *SlidingWindow) Admit(ctx context.Context) error {
	for {
		sw.mu.Lock()

		if sw.consecutiveThrottles >= sw.maxConsecutive {
			sw.mu.Unlock()
			return ErrThrottleCeiling
		}

		now := sw.now()

		// Respect any active cooldown first
		if wait := sw.cooldownUntil.Sub(now); wait > 0 {
			throttles := sw.consecutiveThrottles
			sw.mu.Unlock()
			sw.logger.WarnWithFields("rate limit cooldown active", map[string]interface{}{
				"wait":                  wait,
				"consecutive_throttles": throttles,
			})
			if err := sw.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		sw.trim(now)

		if len(sw.requests) < sw.threshold {
			sw.requests = append(sw.requests, now)
			sw.mu.Unlock()
			return nil
		}

		// Window is full; wait for the oldest request to fall out
		oldest := sw.requests[0]
		wait := oldest.Add(sw.window).Sub(now) + 100*time.Millisecond
		inWindow := len(sw.requests)
		sw.mu.Unlock()

		sw.logger.WarnWithFields("sliding window throttle", map[string]interface{}{
			"requests_in_window": inWindow,
			"threshold":          sw.threshold,
			"wait":               wait,
		})

		if err := sw.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// ReportThrottled records a quota rejection from the remote API
func (sw *SlidingWindow) ReportThrottled() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.consecutiveThrottles++

	if sw.consecutiveThrottles >= sw.maxConsecutive {
		sw.logger.ErrorWithFields("throttle ceiling reached", map[string]interface{}{
			"consecutive_throttles": sw.consecutiveThrottles,
		})
		return ErrThrottleCeiling
	}

	// Escalate: base * 2^(n-1), capped
	cooldown := sw.cooldownBase
	for i := 1; i < sw.consecutiveThrottles; i++ {
		cooldown *= 2
		if cooldown >= sw.cooldownCap {
			cooldown = sw.cooldownCap
			break
		}
	}
	sw.cooldownUntil = sw.now().Add(cooldown)

	sw.logger.WarnWithFields("entering rate limit cooldown", map[string]interface{}{
		"cooldown":              cooldown,
		"consecutive_throttles": sw.consecutiveThrottles,
	})

	return nil
}

// ReportSuccess resets the consecutive-throttle counter
func (sw *SlidingWindow) ReportSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.consecutiveThrottles = 0
}

// CooldownUntil returns the end of the current cooldown, zero when none is active
func (sw *SlidingWindow) CooldownUntil() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	return sw.cooldownUntil
}

// trim removes requests outside the sliding window. Callers hold sw.mu.
func (sw *SlidingWindow) trim(now time.Time) {
	cutoff := now.Add(-sw.window)

	i := 0
	for i < len(sw.requests) && sw.requests[i].Before(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// sleepContext waits for the duration or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
