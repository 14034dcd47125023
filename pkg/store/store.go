package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"moltscraper/pkg/logger"
	"moltscraper/pkg/moltbook"
)

// Store owns all persisted scraper state: the live entity tables, the
// run-tracking table, and the append-only snapshot tables. Every upsert is
// idempotent, so an interrupted scrape can simply be re-run.
type Store struct {
	db     *sql.DB
	logger logger.Logger

	// Injectable for tests
	now func() time.Time
}

// Open opens (creating if necessary) the SQLite database at path
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(createSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.DebugWithFields("database opened", map[string]interface{}{
		"path": path,
	})

	return &Store{
		db:     db,
		logger: log,
		now:    time.Now,
	}, nil
}

// Close closes the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// timestamp formats the current time the way all tables store it
func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// nullString converts an optional field for binding; nil maps to SQL NULL
// so the COALESCE in the upserts preserves the previously stored value.
func nullString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func rawJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// UpsertAgent inserts or merge-updates an agent keyed by name
func (s *Store) UpsertAgent(agent *moltbook.Agent) error {
	if agent == nil || agent.Name == "" {
		return fmt.Errorf("agent name is required")
	}

	now := s.timestamp()
	_, err := s.db.Exec(`
		INSERT INTO agents (name, description, karma, follower_count, created_at, raw_json, first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description     = COALESCE(excluded.description, description),
			karma           = COALESCE(excluded.karma, karma),
			follower_count  = COALESCE(excluded.follower_count, follower_count),
			created_at      = COALESCE(excluded.created_at, created_at),
			raw_json        = COALESCE(excluded.raw_json, raw_json),
			last_updated_at = excluded.last_updated_at
	`, agent.Name, nullString(agent.Description), nullInt64(agent.Karma),
		nullInt64(agent.FollowerCount), nullString(agent.CreatedAt), rawJSON(agent.Raw),
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert agent %s: %w", agent.Name, err)
	}
	return nil
}

// UpsertSubmolt inserts or merge-updates a submolt keyed by name
func (s *Store) UpsertSubmolt(submolt *moltbook.Submolt) error {
	if submolt == nil || submolt.Name == "" {
		return fmt.Errorf("submolt name is required")
	}

	now := s.timestamp()
	_, err := s.db.Exec(`
		INSERT INTO submolts (name, display_name, description, subscriber_count, created_at, raw_json, first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name     = COALESCE(excluded.display_name, display_name),
			description      = COALESCE(excluded.description, description),
			subscriber_count = COALESCE(excluded.subscriber_count, subscriber_count),
			created_at       = COALESCE(excluded.created_at, created_at),
			raw_json         = COALESCE(excluded.raw_json, raw_json),
			last_updated_at  = excluded.last_updated_at
	`, submolt.Name, nullString(submolt.DisplayName), nullString(submolt.Description),
		nullInt64(submolt.SubscriberCount), nullString(submolt.CreatedAt), rawJSON(submolt.Raw),
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert submolt %s: %w", submolt.Name, err)
	}
	return nil
}

// UpsertPost inserts or merge-updates a post keyed by id
func (s *Store) UpsertPost(post *moltbook.Post) error {
	if post == nil || post.ID == "" {
		return fmt.Errorf("post id is required")
	}

	now := s.timestamp()
	_, err := s.db.Exec(`
		INSERT INTO posts (id, submolt, author, title, content, upvote_count, comment_count, created_at, raw_json, first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			submolt         = COALESCE(excluded.submolt, submolt),
			author          = COALESCE(excluded.author, author),
			title           = COALESCE(excluded.title, title),
			content         = COALESCE(excluded.content, content),
			upvote_count    = COALESCE(excluded.upvote_count, upvote_count),
			comment_count   = COALESCE(excluded.comment_count, comment_count),
			created_at      = COALESCE(excluded.created_at, created_at),
			raw_json        = COALESCE(excluded.raw_json, raw_json),
			last_updated_at = excluded.last_updated_at
	`, post.ID, nullString(post.Submolt), nullString(post.Author), nullString(post.Title),
		nullString(post.Content), nullInt64(post.UpvoteCount), nullInt64(post.CommentCount),
		nullString(post.CreatedAt), rawJSON(post.Raw), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.ID, err)
	}
	return nil
}

// UpsertComment inserts or merge-updates a comment keyed by id
func (s *Store) UpsertComment(comment *moltbook.Comment) error {
	if comment == nil || comment.ID == "" {
		return fmt.Errorf("comment id is required")
	}
	if comment.PostID == "" {
		return fmt.Errorf("comment %s has no post id", comment.ID)
	}

	now := s.timestamp()
	_, err := s.db.Exec(`
		INSERT INTO comments (id, post_id, author, content, parent_id, upvote_count, created_at, raw_json, first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			post_id         = excluded.post_id,
			author          = COALESCE(excluded.author, author),
			content         = COALESCE(excluded.content, content),
			parent_id       = COALESCE(excluded.parent_id, parent_id),
			upvote_count    = COALESCE(excluded.upvote_count, upvote_count),
			created_at      = COALESCE(excluded.created_at, created_at),
			raw_json        = COALESCE(excluded.raw_json, raw_json),
			last_updated_at = excluded.last_updated_at
	`, comment.ID, comment.PostID, nullString(comment.Author), nullString(comment.Content),
		nullString(comment.ParentID), nullInt64(comment.UpvoteCount), nullString(comment.CreatedAt),
		rawJSON(comment.Raw), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert comment %s: %w", comment.ID, err)
	}
	return nil
}

// UpsertModerator inserts or merge-updates a moderator assignment keyed by
// (submolt, agent_name)
func (s *Store) UpsertModerator(mod *moltbook.Moderator) error {
	if mod == nil || mod.Submolt == "" || mod.AgentName == "" {
		return fmt.Errorf("moderator submolt and agent name are required")
	}

	now := s.timestamp()
	_, err := s.db.Exec(`
		INSERT INTO moderators (submolt, agent_name, role, raw_json, first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(submolt, agent_name) DO UPDATE SET
			role            = COALESCE(excluded.role, role),
			raw_json        = COALESCE(excluded.raw_json, raw_json),
			last_updated_at = excluded.last_updated_at
	`, mod.Submolt, mod.AgentName, nullString(mod.Role), rawJSON(mod.Raw), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert moderator %s/%s: %w", mod.Submolt, mod.AgentName, err)
	}
	return nil
}

// KnownPost reports whether a post id is already stored. Used by the
// incremental posts stage to stop at the first already-seen record.
func (s *Store) KnownPost(postID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check post %s: %w", postID, err)
	}
	return true, nil
}

// HasCommentsForPost reports whether any comments are stored for a post.
// Used by the comments stage in only-missing mode to skip whole posts.
func (s *Store) HasCommentsForPost(postID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM comments WHERE post_id = ? LIMIT 1`, postID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check comments for post %s: %w", postID, err)
	}
	return true, nil
}

// PostIDs returns all stored post ids in insertion-friendly order
func (s *Store) PostIDs() ([]string, error) {
	return s.stringColumn(`SELECT id FROM posts ORDER BY first_seen_at`)
}

// SubmoltNames returns all stored submolt names
func (s *Store) SubmoltNames() ([]string, error) {
	return s.stringColumn(`SELECT name FROM submolts ORDER BY name`)
}

// AuthorNames returns the distinct author names referenced by stored posts
// and comments. Drives the profile enrichment stage.
func (s *Store) AuthorNames() ([]string, error) {
	return s.stringColumn(`
		SELECT DISTINCT author FROM posts WHERE author IS NOT NULL
		UNION
		SELECT DISTINCT author FROM comments WHERE author IS NOT NULL
		ORDER BY 1`)
}

func (s *Store) stringColumn(query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// EntityCounts holds live-table row counts keyed by entity
type EntityCounts struct {
	Agents     int64
	Submolts   int64
	Posts      int64
	Comments   int64
	Moderators int64
}

// Counts returns the current live-table row counts
func (s *Store) Counts() (*EntityCounts, error) {
	var counts EntityCounts
	for _, q := range []struct {
		table string
		dest  *int64
	}{
		{"agents", &counts.Agents},
		{"submolts", &counts.Submolts},
		{"posts", &counts.Posts},
		{"comments", &counts.Comments},
		{"moderators", &counts.Moderators},
	} {
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + q.table).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return &counts, nil
}
