package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moltscraper/pkg/config"
	"moltscraper/pkg/logger"
	"moltscraper/pkg/moltbook"
	"moltscraper/pkg/store"
)

// nopLimiter admits everything; limiter behaviour has its own tests
type nopLimiter struct{}

func (nopLimiter) Admit(context.Context) error { return nil }
func (nopLimiter) ReportThrottled() error      { return nil }
func (nopLimiter) ReportSuccess()              {}

// mockAPI serves a small fixed platform: one submolt, five posts each with
// one comment, all authored by the same agent
type mockAPI struct {
	mu           sync.Mutex
	postIDs      []string
	detailCalls  map[string]int
	failSubmolts bool
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		postIDs:     []string{"p1", "p2", "p3", "p4", "p5"},
		detailCalls: make(map[string]int),
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (m *mockAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/submolts", func(w http.ResponseWriter, r *http.Request) {
		if m.failSubmolts {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		submolts := []map[string]interface{}{}
		if offset == 0 {
			submolts = append(submolts, map[string]interface{}{
				"name":             "general",
				"display_name":     "General",
				"subscriber_count": 42,
			})
		}
		writeJSON(w, map[string]interface{}{"submolts": submolts})
	})

	mux.HandleFunc("/submolts/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/moderators") {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]interface{}{
			"moderators": []map[string]interface{}{
				{"name": "crab", "role": "owner"},
			},
		})
	})

	mux.HandleFunc("/posts", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		posts := []map[string]interface{}{}
		for i := offset; i < len(m.postIDs) && i < offset+limit; i++ {
			posts = append(posts, map[string]interface{}{
				"id":      m.postIDs[i],
				"title":   "post " + m.postIDs[i],
				"author":  "crab",
				"submolt": "general",
				"upvotes": i,
			})
		}
		writeJSON(w, map[string]interface{}{"posts": posts})
	})

	mux.HandleFunc("/posts/", func(w http.ResponseWriter, r *http.Request) {
		postID := strings.TrimPrefix(r.URL.Path, "/posts/")
		m.mu.Lock()
		m.detailCalls[postID]++
		m.mu.Unlock()

		writeJSON(w, map[string]interface{}{
			"success": true,
			"post": map[string]interface{}{
				"id":            postID,
				"title":         "post " + postID,
				"author":        "crab",
				"submolt":       "general",
				"comment_count": 1,
			},
			"comments": []map[string]interface{}{
				{"id": "c-" + postID, "author": "crab", "content": "nice molt"},
			},
		})
	})

	mux.HandleFunc("/agents/profile", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		writeJSON(w, map[string]interface{}{
			"success": true,
			"agent": map[string]interface{}{
				"name":  name,
				"karma": 100,
			},
		})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"agents":   1,
			"submolts": 1,
			"posts":    len(m.postIDs),
			"comments": len(m.postIDs),
		})
	})

	return mux
}

func (m *mockAPI) detailCallCount(postID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailCalls[postID]
}

func newTestScraper(t *testing.T, api *mockAPI) (*Scraper, *store.Store) {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.APIKey = "test-key"
	cfg.Scrape.PageSize = 2
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.BaseDelay = time.Millisecond

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), logger.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	client := moltbook.NewClient(cfg, nopLimiter{}, logger.GetLogger())
	return New(client, st, cfg, logger.GetLogger()), st
}

func TestFullRunIngestsAllStages(t *testing.T) {
	api := newMockAPI()
	s, st := newTestScraper(t, api)

	require.NoError(t, s.FullRun(context.Background()))

	counts, err := st.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Submolts)
	assert.Equal(t, int64(5), counts.Posts)
	assert.Equal(t, int64(5), counts.Comments)
	assert.Equal(t, int64(1), counts.Moderators)
	assert.Equal(t, int64(1), counts.Agents)

	run, err := st.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, store.RunStatusCompleted, run.Status)
	assert.Equal(t, int64(5), run.PostsScraped)
	assert.Equal(t, int64(5), run.CommentsScraped)
	assert.Equal(t, int64(1), run.SubmoltsScraped)

	snaps, err := st.SnapshotCounts(run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snaps.Posts)
	assert.Equal(t, int64(5), snaps.Comments)
}

func TestFullRunIsIdempotent(t *testing.T) {
	api := newMockAPI()
	s, st := newTestScraper(t, api)

	require.NoError(t, s.FullRun(context.Background()))
	require.NoError(t, s.FullRun(context.Background()))

	counts, err := st.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts.Posts)
	assert.Equal(t, int64(5), counts.Comments)
}

func TestIncrementalRunStopsAtKnownPost(t *testing.T) {
	api := newMockAPI()
	// Newest first: p7 and p6 are new, p5 onwards already stored
	api.postIDs = []string{"p7", "p6", "p5", "p4", "p3"}
	s, st := newTestScraper(t, api)

	for _, id := range []string{"p5", "p4", "p3"} {
		require.NoError(t, st.UpsertPost(&moltbook.Post{ID: id}))
		require.NoError(t, st.UpsertComment(&moltbook.Comment{ID: "c-" + id, PostID: id}))
	}

	require.NoError(t, s.IncrementalRun(context.Background()))

	run, err := st.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusCompleted, run.Status)
	assert.Equal(t, int64(2), run.PostsScraped)

	counts, err := st.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts.Posts)

	// Comments only fetched for the posts that had none stored
	assert.Equal(t, 1, api.detailCallCount("p7"))
	assert.Equal(t, 1, api.detailCallCount("p6"))
	assert.Zero(t, api.detailCallCount("p5"))
}

func TestScrapeCommentsOnlyMissingSkipsCoveredPosts(t *testing.T) {
	api := newMockAPI()
	api.postIDs = []string{"p1", "p2"}
	s, st := newTestScraper(t, api)

	require.NoError(t, st.UpsertPost(&moltbook.Post{ID: "p1"}))
	require.NoError(t, st.UpsertPost(&moltbook.Post{ID: "p2"}))
	require.NoError(t, st.UpsertComment(&moltbook.Comment{ID: "c-p1", PostID: "p1"}))

	require.NoError(t, s.ScrapeComments(context.Background(), true))

	assert.Zero(t, api.detailCallCount("p1"))
	assert.Equal(t, 1, api.detailCallCount("p2"))
}

func TestRunMarkedFailedOnStageError(t *testing.T) {
	api := newMockAPI()
	api.failSubmolts = true
	s, st := newTestScraper(t, api)

	err := s.FullRun(context.Background())
	require.Error(t, err)

	run, lerr := st.LatestRun()
	require.NoError(t, lerr)
	require.NotNil(t, run)
	assert.Equal(t, store.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "submolts stage failed")
}

func TestRunMarkedInterruptedOnCancellation(t *testing.T) {
	api := newMockAPI()
	s, st := newTestScraper(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.FullRun(ctx)
	require.ErrorIs(t, err, context.Canceled)

	run, lerr := st.LatestRun()
	require.NoError(t, lerr)
	require.NotNil(t, run)
	assert.Equal(t, store.RunStatusInterrupted, run.Status)
}

func TestValidateWithinTolerance(t *testing.T) {
	api := newMockAPI()
	s, _ := newTestScraper(t, api)

	require.NoError(t, s.FullRun(context.Background()))

	checks, err := s.Validate(context.Background())
	require.NoError(t, err)
	require.Len(t, checks, 4)
	for _, c := range checks {
		assert.True(t, c.Within, "%s: stored %d reported %d", c.Entity, c.Stored, c.Reported)
	}
}

func TestCompareToleranceBoundary(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scrape.ValidationTolerance = 0.2
	s := &Scraper{cfg: cfg, logger: logger.GetLogger()}

	tests := []struct {
		stored int64
		within bool
	}{
		{100, true},
		{80, true},  // exactly -20%
		{79, false}, // just beyond
		{120, true}, // excess counts the same way
		{121, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("stored_%d", tt.stored), func(t *testing.T) {
			checks := s.compare(&store.EntityCounts{Posts: tt.stored}, 0, 0, 100, 0)
			for _, c := range checks {
				if c.Entity == "posts" {
					assert.Equal(t, tt.within, c.Within)
				}
			}
		})
	}
}
