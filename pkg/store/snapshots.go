package store

import "fmt"

// snapshotCopies maps each snapshot table to the INSERT..SELECT that copies
// the corresponding live table into it. Column lists are explicit so a
// schema change breaks the copy loudly instead of silently misaligning.
var snapshotCopies = []struct {
	table string
	query string
}{
	{"submolt_snapshots", `
		INSERT INTO submolt_snapshots
			(name, display_name, description, subscriber_count, created_at,
			 raw_json, first_seen_at, last_updated_at, run_id, scraped_at)
		SELECT name, display_name, description, subscriber_count, created_at,
		       raw_json, first_seen_at, last_updated_at, ?, ?
		FROM submolts`},
	{"post_snapshots", `
		INSERT INTO post_snapshots
			(id, submolt, author, title, content, upvote_count, comment_count,
			 created_at, raw_json, first_seen_at, last_updated_at, run_id, scraped_at)
		SELECT id, submolt, author, title, content, upvote_count, comment_count,
		       created_at, raw_json, first_seen_at, last_updated_at, ?, ?
		FROM posts`},
	{"comment_snapshots", `
		INSERT INTO comment_snapshots
			(id, post_id, author, content, parent_id, upvote_count, created_at,
			 raw_json, first_seen_at, last_updated_at, run_id, scraped_at)
		SELECT id, post_id, author, content, parent_id, upvote_count, created_at,
		       raw_json, first_seen_at, last_updated_at, ?, ?
		FROM comments`},
	{"agent_snapshots", `
		INSERT INTO agent_snapshots
			(name, description, karma, follower_count, created_at, raw_json,
			 first_seen_at, last_updated_at, run_id, scraped_at)
		SELECT name, description, karma, follower_count, created_at, raw_json,
		       first_seen_at, last_updated_at, ?, ?
		FROM agents`},
	{"moderator_snapshots", `
		INSERT INTO moderator_snapshots
			(submolt, agent_name, role, raw_json, first_seen_at, last_updated_at,
			 run_id, scraped_at)
		SELECT submolt, agent_name, role, raw_json, first_seen_at, last_updated_at, ?, ?
		FROM moderators`},
}

// Snapshot copies every live table into its snapshot table, tagging rows
// with the given run id and a single capture timestamp. The whole capture
// runs in one transaction so a crash can never leave a partial snapshot.
func (s *Store) Snapshot(runID int64) error {
	scrapedAt := s.timestamp()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	total := int64(0)
	for _, sc := range snapshotCopies {
		res, err := tx.Exec(sc.query, runID, scrapedAt)
		if err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", sc.table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	s.logger.InfoWithFields("snapshot captured", map[string]interface{}{
		"run_id":     runID,
		"rows":       total,
		"scraped_at": scrapedAt,
	})
	return nil
}

// SnapshotCounts returns per-table snapshot row counts for a run
func (s *Store) SnapshotCounts(runID int64) (*EntityCounts, error) {
	var counts EntityCounts
	for _, q := range []struct {
		table string
		dest  *int64
	}{
		{"agent_snapshots", &counts.Agents},
		{"submolt_snapshots", &counts.Submolts},
		{"post_snapshots", &counts.Posts},
		{"comment_snapshots", &counts.Comments},
		{"moderator_snapshots", &counts.Moderators},
	} {
		err := s.db.QueryRow(`SELECT COUNT(*) FROM `+q.table+` WHERE run_id = ?`, runID).Scan(q.dest)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return &counts, nil
}
