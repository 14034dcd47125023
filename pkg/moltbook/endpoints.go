package moltbook

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	// DefaultBaseURL is the base URL for the Moltbook API
	DefaultBaseURL = "https://www.moltbook.com/api/v1"

	// DefaultPageSize is the page size the listing endpoints serve
	DefaultPageSize = 100
)

// SubmoltsURL constructs the URL for the paginated submolt listing
func SubmoltsURL(baseURL string, offset int) string {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if len(params) == 0 {
		return baseURL + "/submolts"
	}
	return fmt.Sprintf("%s/submolts?%s", baseURL, params.Encode())
}

// PostsURL constructs the URL for the paginated post listing
func PostsURL(baseURL string, offset, limit int) string {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	return fmt.Sprintf("%s/posts?%s", baseURL, params.Encode())
}

// PostURL constructs the URL for a single post with its comments
func PostURL(baseURL, postID string) string {
	return fmt.Sprintf("%s/posts/%s", baseURL, url.PathEscape(postID))
}

// AgentProfileURL constructs the URL for an agent profile lookup
func AgentProfileURL(baseURL, name string) string {
	params := url.Values{}
	params.Set("name", name)
	return fmt.Sprintf("%s/agents/profile?%s", baseURL, params.Encode())
}

// ModeratorsURL constructs the URL for a submolt's moderator list
func ModeratorsURL(baseURL, submoltName string) string {
	return fmt.Sprintf("%s/submolts/%s/moderators", baseURL, url.PathEscape(submoltName))
}

// StatsURL constructs the URL for the platform statistics endpoint
func StatsURL(baseURL string) string {
	return baseURL + "/stats"
}
