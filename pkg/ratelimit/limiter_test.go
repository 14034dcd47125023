package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"moltscraper/pkg/config"
)

// fakeClock drives the limiter deterministically in tests. Sleeps advance
// the clock instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (fc *fakeClock) Now() time.Time {
	return fc.now
}

func (fc *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	fc.sleeps = append(fc.sleeps, d)
	fc.now = fc.now.Add(d)
	return nil
}

func newTestLimiter(threshold, maxConsecutive int) (*SlidingWindow, *fakeClock) {
	cfg := config.RateLimitConfig{
		Window:                 time.Minute,
		MaxRequests:            threshold + 10,
		Threshold:              threshold,
		CooldownBase:           30 * time.Second,
		CooldownCap:            5 * time.Minute,
		MaxConsecutiveThrottle: maxConsecutive,
	}
	sw := NewSlidingWindow(cfg, nil)

	fc := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	sw.now = fc.Now
	sw.sleep = fc.Sleep

	return sw, fc
}

func TestAdmitUnderThresholdNeverBlocks(t *testing.T) {
	sw, fc := newTestLimiter(5, 10)

	for i := 0; i < 5; i++ {
		if err := sw.Admit(context.Background()); err != nil {
			t.Fatalf("Admit %d returned error: %v", i+1, err)
		}
	}

	if len(fc.sleeps) != 0 {
		t.Errorf("Expected no sleeps under threshold, got %v", fc.sleeps)
	}
}

func TestAdmitBlocksAtThreshold(t *testing.T) {
	sw, fc := newTestLimiter(3, 10)

	for i := 0; i < 3; i++ {
		if err := sw.Admit(context.Background()); err != nil {
			t.Fatalf("Admit %d returned error: %v", i+1, err)
		}
	}

	// The 4th request must wait for the window to admit it
	if err := sw.Admit(context.Background()); err != nil {
		t.Fatalf("Admit at threshold returned error: %v", err)
	}

	if len(fc.sleeps) == 0 {
		t.Fatal("Expected the request over threshold to block")
	}
	if fc.sleeps[0] <= 0 || fc.sleeps[0] > time.Minute+time.Second {
		t.Errorf("Unexpected wait duration: %v", fc.sleeps[0])
	}
}

func TestAdmitAfterWindowSlides(t *testing.T) {
	sw, fc := newTestLimiter(2, 10)

	if err := sw.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sw.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Advance past the window; the next request should not block
	fc.now = fc.now.Add(61 * time.Second)
	if err := sw.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fc.sleeps) != 0 {
		t.Errorf("Expected no sleeps after window slid, got %v", fc.sleeps)
	}
}

func TestCooldownEscalation(t *testing.T) {
	sw, fc := newTestLimiter(90, 10)

	var waits []time.Duration
	for i := 0; i < 3; i++ {
		if err := sw.ReportThrottled(); err != nil {
			t.Fatalf("ReportThrottled %d returned error: %v", i+1, err)
		}
		waits = append(waits, sw.CooldownUntil().Sub(fc.now))
		// Let the cooldown elapse before the next signal
		fc.now = sw.CooldownUntil()
	}

	if !(waits[0] < waits[1] && waits[1] < waits[2]) {
		t.Errorf("Expected strictly increasing cooldowns, got %v", waits)
	}
	if waits[0] != 30*time.Second {
		t.Errorf("Expected base cooldown 30s, got %v", waits[0])
	}
}

func TestCooldownCapped(t *testing.T) {
	sw, fc := newTestLimiter(90, 20)

	for i := 0; i < 8; i++ {
		if err := sw.ReportThrottled(); err != nil {
			t.Fatal(err)
		}
	}

	if got := sw.CooldownUntil().Sub(fc.now); got != 5*time.Minute {
		t.Errorf("Expected cooldown capped at 5m, got %v", got)
	}
}

func TestSuccessResetsEscalation(t *testing.T) {
	sw, fc := newTestLimiter(90, 10)

	if err := sw.ReportThrottled(); err != nil {
		t.Fatal(err)
	}
	if err := sw.ReportThrottled(); err != nil {
		t.Fatal(err)
	}
	sw.ReportSuccess()

	fc.now = sw.CooldownUntil().Add(time.Second)
	if err := sw.ReportThrottled(); err != nil {
		t.Fatal(err)
	}

	if got := sw.CooldownUntil().Sub(fc.now); got != 30*time.Second {
		t.Errorf("Expected cooldown back at base after success, got %v", got)
	}
}

func TestThrottleCeiling(t *testing.T) {
	sw, _ := newTestLimiter(90, 3)

	if err := sw.ReportThrottled(); err != nil {
		t.Fatal(err)
	}
	if err := sw.ReportThrottled(); err != nil {
		t.Fatal(err)
	}

	if err := sw.ReportThrottled(); !errors.Is(err, ErrThrottleCeiling) {
		t.Errorf("Expected ErrThrottleCeiling on third signal, got %v", err)
	}

	// Admit must refuse as well once the ceiling is reached
	if err := sw.Admit(context.Background()); !errors.Is(err, ErrThrottleCeiling) {
		t.Errorf("Expected Admit to surface the ceiling, got %v", err)
	}
}

func TestAdmitHonoursCancellation(t *testing.T) {
	sw, _ := newTestLimiter(1, 10)
	sw.sleep = sleepContext // real sleep so cancellation applies

	if err := sw.Admit(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sw.Admit(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
