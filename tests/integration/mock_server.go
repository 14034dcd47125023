package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// PostFixture is one post served by the mock platform, with its comments
type PostFixture struct {
	ID       string
	Title    string
	Author   string
	Submolt  string
	Upvotes  int
	Comments []CommentFixture
}

// CommentFixture is one comment on a fixture post
type CommentFixture struct {
	ID      string
	Author  string
	Content string
}

// MockMoltbookServer simulates the Moltbook API with realistic behavior:
// bearer-token auth, offset/limit pagination, per-endpoint error injection,
// and one-shot throttling
type MockMoltbookServer struct {
	server *httptest.Server
	apiKey string

	mu         sync.Mutex
	submolts   []string
	posts      []PostFixture
	moderators map[string][]string

	requestCount  int32
	throttleNext  int32          // requests to answer with 429 before recovering
	errorStatuses map[string]int // path prefix -> forced status code
}

// NewMockMoltbookServer starts a mock platform pre-populated with the given
// fixtures, accepting only the given API key
func NewMockMoltbookServer(apiKey string, submolts []string, posts []PostFixture) *MockMoltbookServer {
	m := &MockMoltbookServer{
		apiKey:        apiKey,
		submolts:      submolts,
		posts:         posts,
		moderators:    map[string][]string{},
		errorStatuses: make(map[string]int),
	}
	for _, name := range submolts {
		m.moderators[name] = []string{"mod_" + name}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/submolts", m.withAuth(m.handleSubmolts))
	mux.HandleFunc("/submolts/", m.withAuth(m.handleModerators))
	mux.HandleFunc("/posts", m.withAuth(m.handlePosts))
	mux.HandleFunc("/posts/", m.withAuth(m.handlePostDetail))
	mux.HandleFunc("/agents/profile", m.withAuth(m.handleAgentProfile))
	mux.HandleFunc("/stats", m.withAuth(m.handleStats))

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server's base URL
func (m *MockMoltbookServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server
func (m *MockMoltbookServer) Close() {
	m.server.Close()
}

// RequestCount returns the number of authenticated API requests served
func (m *MockMoltbookServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// ThrottleNextRequests makes the next n requests answer 429
func (m *MockMoltbookServer) ThrottleNextRequests(n int) {
	atomic.StoreInt32(&m.throttleNext, int32(n))
}

// SetError forces a status code for every request whose path starts with
// the given prefix
func (m *MockMoltbookServer) SetError(pathPrefix string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == 0 {
		delete(m.errorStatuses, pathPrefix)
	} else {
		m.errorStatuses[pathPrefix] = status
	}
}

// PrependPosts inserts posts at the front of the listing, simulating new
// content appearing between runs
func (m *MockMoltbookServer) PrependPosts(posts ...PostFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(append([]PostFixture{}, posts...), m.posts...)
}

func (m *MockMoltbookServer) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+m.apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "invalid api key",
			})
			return
		}

		atomic.AddInt32(&m.requestCount, 1)

		if atomic.AddInt32(&m.throttleNext, -1) >= 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"error":   "rate limit exceeded",
			})
			return
		}
		atomic.CompareAndSwapInt32(&m.throttleNext, -1, 0)

		m.mu.Lock()
		for prefix, status := range m.errorStatuses {
			if strings.HasPrefix(r.URL.Path, prefix) {
				m.mu.Unlock()
				http.Error(w, "injected error", status)
				return
			}
		}
		m.mu.Unlock()

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (m *MockMoltbookServer) handleSubmolts(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	m.mu.Lock()
	defer m.mu.Unlock()

	out := []map[string]interface{}{}
	for i := offset; i < len(m.submolts); i++ {
		out = append(out, map[string]interface{}{
			"name":             m.submolts[i],
			"display_name":     "m/" + m.submolts[i],
			"subscriber_count": 10 * (i + 1),
		})
	}
	writeJSON(w, map[string]interface{}{"submolts": out})
}

func (m *MockMoltbookServer) handleModerators(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/moderators") {
		http.NotFound(w, r)
		return
	}
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/submolts/"), "/moderators")

	m.mu.Lock()
	defer m.mu.Unlock()

	mods, ok := m.moderators[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	out := []map[string]interface{}{}
	for _, mod := range mods {
		out = append(out, map[string]interface{}{"name": mod, "role": "moderator"})
	}
	writeJSON(w, map[string]interface{}{"moderators": out})
}

func (m *MockMoltbookServer) handlePosts(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := []map[string]interface{}{}
	for i := offset; i < len(m.posts) && i < offset+limit; i++ {
		p := m.posts[i]
		out = append(out, map[string]interface{}{
			"id":            p.ID,
			"title":         p.Title,
			"author":        p.Author,
			"submolt":       p.Submolt,
			"upvotes":       p.Upvotes,
			"comment_count": len(p.Comments),
		})
	}
	writeJSON(w, map[string]interface{}{"posts": out})
}

func (m *MockMoltbookServer) handlePostDetail(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimPrefix(r.URL.Path, "/posts/")

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.posts {
		if p.ID != postID {
			continue
		}

		comments := []map[string]interface{}{}
		for _, c := range p.Comments {
			comments = append(comments, map[string]interface{}{
				"id":      c.ID,
				"author":  c.Author,
				"content": c.Content,
			})
		}
		writeJSON(w, map[string]interface{}{
			"success": true,
			"post": map[string]interface{}{
				"id":            p.ID,
				"title":         p.Title,
				"author":        p.Author,
				"submolt":       p.Submolt,
				"upvotes":       p.Upvotes,
				"comment_count": len(p.Comments),
			},
			"comments": comments,
		})
		return
	}
	http.NotFound(w, r)
}

func (m *MockMoltbookServer) handleAgentProfile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"agent": map[string]interface{}{
			"name":           name,
			"description":    "an industrious agent",
			"karma":          42,
			"follower_count": 7,
		},
	})
}

func (m *MockMoltbookServer) handleStats(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	authors := map[string]struct{}{}
	comments := 0
	for _, p := range m.posts {
		authors[p.Author] = struct{}{}
		comments += len(p.Comments)
		for _, c := range p.Comments {
			authors[c.Author] = struct{}{}
		}
	}

	writeJSON(w, map[string]interface{}{
		"agents":   len(authors),
		"submolts": len(m.submolts),
		"posts":    len(m.posts),
		"comments": comments,
	})
}
