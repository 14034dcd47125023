package moltbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"moltscraper/pkg/config"
	errs "moltscraper/pkg/errors"
	"moltscraper/pkg/logger"
	"moltscraper/pkg/ratelimit"
	"moltscraper/pkg/retry"
)

// Client is a rate-aware Moltbook API client. Every request passes through
// the limiter before it is issued; transient failures are retried with
// exponential backoff; non-retryable client errors surface immediately.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    ratelimit.Limiter
	retryCfg   config.RetryConfig
	logger     logger.Logger
}

// NewClient creates a new Moltbook API client
func NewClient(cfg *config.Config, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
		baseURL:  cfg.API.BaseURL,
		apiKey:   cfg.API.APIKey,
		limiter:  limiter,
		retryCfg: cfg.Retry,
		logger:   log,
	}
}

// BaseURL returns the configured API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON fetches the URL and decodes the JSON response into target,
// retrying transient failures. Retries are transparent to the caller; only
// the terminal error is returned.
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	cfg := &retry.Config{
		MaxAttempts: c.retryCfg.MaxAttempts,
		Backoff:     retry.BackoffFromConfig(c.retryCfg),
		RetryIf:     c.retryIf,
		Context:     ctx,
		Logger:      c.logger,
	}

	return retry.Do(func() error {
		return c.fetchOnce(ctx, url, target)
	}, cfg)
}

// retryIf stops retrying once the limiter's throttle ceiling is reached
func (c *Client) retryIf(err error) bool {
	if errors.Is(err, ratelimit.ErrThrottleCeiling) {
		return false
	}
	return retry.DefaultRetryIf(err)
}

// fetchOnce performs a single attempt: admission, request, classification
func (c *Client) fetchOnce(ctx context.Context, url string, target interface{}) error {
	if err := c.limiter.Admit(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    url,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": duration,
		})
		return errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      url,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.classifyStatus(resp.StatusCode, url); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	c.limiter.ReportSuccess()
	return nil
}

// classifyStatus maps an HTTP response status to a typed error. Throttle
// responses feed the limiter so the next admission waits out the cooldown.
func (c *Client) classifyStatus(statusCode int, url string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": statusCode,
			"url":    url,
		})
		if err := c.limiter.ReportThrottled(); err != nil {
			return err
		}
		return errs.New(errs.ErrorTypeRateLimit, statusCode, "rate limit exceeded")
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": statusCode,
			"url":    url,
		})
		return errs.New(errs.ErrorTypeAuth, statusCode, "authentication failed; check MOLTBOOK_API_KEY")
	case statusCode == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, statusCode, "resource not found")
	case statusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": statusCode,
			"url":    url,
		})
		return errs.New(errs.ErrorTypeServerError, statusCode, "server returned status %d", statusCode)
	default:
		return errs.New(errs.ErrorTypeUnknown, statusCode, "unexpected status code: %d", statusCode)
	}
}

// isNotFound reports whether the error is a 404-classified API error
func isNotFound(err error) bool {
	var apiErr *errs.Error
	return errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound
}

// FetchSubmolts fetches one page of the submolt listing
func (c *Client) FetchSubmolts(ctx context.Context, offset int) ([]Submolt, error) {
	var response submoltsResponse
	if err := c.getJSON(ctx, SubmoltsURL(c.baseURL, offset), &response); err != nil {
		return nil, fmt.Errorf("failed to fetch submolts at offset %d: %w", offset, err)
	}
	return response.Submolts, nil
}

// FetchPosts fetches one page of the post listing
func (c *Client) FetchPosts(ctx context.Context, offset, limit int) ([]Post, error) {
	var response postsResponse
	if err := c.getJSON(ctx, PostsURL(c.baseURL, offset, limit), &response); err != nil {
		return nil, fmt.Errorf("failed to fetch posts at offset %d: %w", offset, err)
	}
	return response.Posts, nil
}

// FetchPostWithComments fetches a post and its comments. Returns nil when
// the post no longer exists.
func (c *Client) FetchPostWithComments(ctx context.Context, postID string) (*PostDetail, error) {
	var response postDetailResponse
	if err := c.getJSON(ctx, PostURL(c.baseURL, postID), &response); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch post %s: %w", postID, err)
	}
	if !response.Success {
		return nil, nil
	}

	// The API omits post_id on nested comments
	for i := range response.Comments {
		if response.Comments[i].PostID == "" {
			response.Comments[i].PostID = postID
		}
	}

	return &PostDetail{
		Post:     response.Post,
		Comments: response.Comments,
	}, nil
}

// FetchAgentProfile fetches an agent's profile by name. Returns nil when
// the agent is not found.
func (c *Client) FetchAgentProfile(ctx context.Context, name string) (*Agent, error) {
	var response agentProfileResponse
	if err := c.getJSON(ctx, AgentProfileURL(c.baseURL, name), &response); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch agent profile %s: %w", name, err)
	}
	if !response.Success {
		return nil, nil
	}
	return response.Agent, nil
}

// FetchSubmoltModerators fetches the moderators of a submolt. A missing
// submolt yields an empty list, not an error.
func (c *Client) FetchSubmoltModerators(ctx context.Context, submoltName string) ([]Moderator, error) {
	var response moderatorsResponse
	if err := c.getJSON(ctx, ModeratorsURL(c.baseURL, submoltName), &response); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch moderators for %s: %w", submoltName, err)
	}

	for i := range response.Moderators {
		response.Moderators[i].Submolt = submoltName
	}
	return response.Moderators, nil
}

// maxStatsAttempts bounds the non-zero retry loop on the stats endpoint
const maxStatsAttempts = 10

// FetchPlatformStats fetches platform-wide aggregate counts. The endpoint
// intermittently returns zeroes, so it is refetched until every value is
// non-zero, with a best-effort result after the attempt budget.
func (c *Client) FetchPlatformStats(ctx context.Context) (*PlatformStats, error) {
	var stats PlatformStats

	for attempt := 0; attempt < maxStatsAttempts; attempt++ {
		if err := c.getJSON(ctx, StatsURL(c.baseURL), &stats); err != nil {
			return nil, fmt.Errorf("failed to fetch platform stats: %w", err)
		}
		if stats.Complete() {
			return &stats, nil
		}

		c.logger.DebugWithFields("platform stats incomplete, refetching", map[string]interface{}{
			"attempt": attempt + 1,
		})
		if err := retry.Wait(ctx, c.retryCfg.BaseDelay*time.Duration(attempt+1)); err != nil {
			return nil, err
		}
	}

	c.logger.WarnWithFields("platform stats still incomplete after retries", map[string]interface{}{
		"agents":   stats.Agents,
		"submolts": stats.Submolts,
		"posts":    stats.Posts,
		"comments": stats.Comments,
	})
	return &stats, nil
}
