// Package moltbook provides the HTTP client for the Moltbook API.
//
// The client owns every network-flakiness concern so callers see either a
// parsed payload or a terminal error:
//
//   - every attempt is admitted by the rate limiter first
//   - 429 responses feed the limiter's cooldown escalation and are retried
//   - transient network and 5xx errors are retried with exponential backoff
//   - other 4xx errors surface immediately as typed fatal errors
//
// Listing endpoints paginate with offset/limit semantics at a page size of
// 100. Deleted resources (404) are reported as nil results rather than
// errors, matching how the platform serves them.
package moltbook
