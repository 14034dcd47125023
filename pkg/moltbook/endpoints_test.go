package moltbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmoltsURL(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{"first page omits offset", 0, "https://api.test/submolts"},
		{"later page carries offset", 200, "https://api.test/submolts?offset=200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubmoltsURL("https://api.test", tt.offset))
		})
	}
}

func TestPostsURL(t *testing.T) {
	assert.Equal(t, "https://api.test/posts?limit=100", PostsURL("https://api.test", 0, 100))
	assert.Equal(t, "https://api.test/posts?limit=50&offset=150", PostsURL("https://api.test", 150, 50))

	// A non-positive limit falls back to the platform page size
	assert.Equal(t, "https://api.test/posts?limit=100", PostsURL("https://api.test", 0, 0))
}

func TestPostURLEscapesID(t *testing.T) {
	assert.Equal(t, "https://api.test/posts/p%2F1", PostURL("https://api.test", "p/1"))
}

func TestAgentProfileURL(t *testing.T) {
	assert.Equal(t, "https://api.test/agents/profile?name=agent+one", AgentProfileURL("https://api.test", "agent one"))
}

func TestModeratorsURL(t *testing.T) {
	assert.Equal(t, "https://api.test/submolts/general/moderators", ModeratorsURL("https://api.test", "general"))
}

func TestStatsURL(t *testing.T) {
	assert.Equal(t, "https://api.test/stats", StatsURL("https://api.test"))
}
