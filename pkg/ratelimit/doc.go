// Package ratelimit gates requests against the Moltbook API quota.
//
// The platform permits a fixed number of requests per rolling minute. The
// limiter throttles proactively before that quota is hit, and reacts to 429
// responses with an escalating cooldown.
//
// Behaviour:
//
// Sliding window:
//   - Request timestamps are tracked within a moving time window
//   - Admit blocks once the proactive threshold (90 of 100 by default)
//     is reached, until the oldest request falls out of the window
//
// Cooldown escalation:
//   - Each consecutive throttle signal doubles the cooldown, starting at
//     30s and capped at 5 minutes
//   - A successful request resets the escalation
//   - After ten consecutive throttle signals the limiter gives up and
//     surfaces ErrThrottleCeiling instead of looping forever
//
// Usage:
//
//	limiter := ratelimit.NewSlidingWindow(cfg.RateLimit, log)
//
//	if err := limiter.Admit(ctx); err != nil {
//	    return err // cancelled or ceiling reached
//	}
//	resp, err := doRequest()
//	if resp.StatusCode == http.StatusTooManyRequests {
//	    if err := limiter.ReportThrottled(); err != nil {
//	        return err
//	    }
//	} else {
//	    limiter.ReportSuccess()
//	}
//
// State is process-local; multiple scraper processes do not coordinate.
package ratelimit
