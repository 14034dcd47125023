package integration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moltscraper/pkg/config"
	"moltscraper/pkg/logger"
	"moltscraper/pkg/moltbook"
	"moltscraper/pkg/ratelimit"
	"moltscraper/pkg/scraper"
	"moltscraper/pkg/store"
)

const testAPIKey = "test-api-key"

// testEnv bundles everything an end-to-end scenario needs
type testEnv struct {
	Server  *MockMoltbookServer
	Scraper *scraper.Scraper
	Store   *store.Store
	Config  *config.Config
	DBPath  string
}

// fixturePosts builds n posts, each with one comment, authored round-robin
// by the given agents
func fixturePosts(n int, submolt string, authors ...string) []PostFixture {
	posts := make([]PostFixture, n)
	for i := 0; i < n; i++ {
		id := "post_" + string(rune('a'+i))
		author := authors[i%len(authors)]
		posts[i] = PostFixture{
			ID:      id,
			Title:   "title " + id,
			Author:  author,
			Submolt: submolt,
			Upvotes: i,
			Comments: []CommentFixture{
				{ID: "comment_" + id, Author: author, Content: "molting season"},
			},
		}
	}
	return posts
}

// newTestEnv wires the full stack against a mock platform, with timings
// shrunk so throttle recovery runs in milliseconds
func newTestEnv(t *testing.T, server *MockMoltbookServer) *testEnv {
	t.Helper()
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL()
	cfg.API.APIKey = testAPIKey
	cfg.API.Timeout = 5 * time.Second
	cfg.Scrape.PageSize = 2
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 10 * time.Millisecond
	cfg.RateLimit.CooldownBase = 5 * time.Millisecond
	cfg.RateLimit.CooldownCap = 50 * time.Millisecond

	dbPath := filepath.Join(t.TempDir(), "moltbook.db")
	st, err := store.Open(dbPath, logger.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logger.GetLogger()
	limiter := ratelimit.NewSlidingWindow(cfg.RateLimit, log)
	client := moltbook.NewClient(cfg, limiter, log)

	return &testEnv{
		Server:  server,
		Scraper: scraper.New(client, st, cfg, log),
		Store:   st,
		Config:  cfg,
		DBPath:  dbPath,
	}
}
