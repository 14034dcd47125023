package store

import (
	"database/sql"
	"fmt"
)

// RunStatus is the lifecycle state of a scrape run
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// Run is one recorded scrape run
type Run struct {
	ID                int64
	StartedAt         string
	CompletedAt       *string
	Status            RunStatus
	SubmoltsScraped   int64
	PostsScraped      int64
	CommentsScraped   int64
	AgentsScraped     int64
	ModeratorsScraped int64
	Error             *string
}

// RunCounts carries per-entity increments reported as a run progresses
type RunCounts struct {
	Submolts   int64
	Posts      int64
	Comments   int64
	Agents     int64
	Moderators int64
}

// StartRun records a new run in the running state and returns its id
func (s *Store) StartRun() (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO scrape_runs (started_at, status) VALUES (?, ?)
	`, s.timestamp(), RunStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	s.logger.InfoWithFields("scrape run started", map[string]interface{}{
		"run_id": id,
	})
	return id, nil
}

// AddRunCounts adds the given per-entity increments to a run's tallies
func (s *Store) AddRunCounts(runID int64, counts RunCounts) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET
			submolts_scraped   = submolts_scraped + ?,
			posts_scraped      = posts_scraped + ?,
			comments_scraped   = comments_scraped + ?,
			agents_scraped     = agents_scraped + ?,
			moderators_scraped = moderators_scraped + ?
		WHERE run_id = ?
	`, counts.Submolts, counts.Posts, counts.Comments, counts.Agents, counts.Moderators, runID)
	if err != nil {
		return fmt.Errorf("failed to update run %d counts: %w", runID, err)
	}
	return nil
}

// FinishRun transitions a run from running to the given terminal status.
// A run already in a terminal state is left untouched, so a late or
// duplicate finish can never rewrite history.
func (s *Store) FinishRun(runID int64, status RunStatus, runErr error) error {
	if status == RunStatusRunning {
		return fmt.Errorf("cannot finish run %d with non-terminal status %s", runID, status)
	}

	var errText interface{}
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.db.Exec(`
		UPDATE scrape_runs SET completed_at = ?, status = ?, error = ?
		WHERE run_id = ? AND status = ?
	`, s.timestamp(), status, errText, runID, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		s.logger.WarnWithFields("run already finished, not updating", map[string]interface{}{
			"run_id": runID,
			"status": string(status),
		})
		return nil
	}

	s.logger.InfoWithFields("scrape run finished", map[string]interface{}{
		"run_id": runID,
		"status": string(status),
	})
	return nil
}

// GetRun returns a run by id, or nil if it does not exist
func (s *Store) GetRun(runID int64) (*Run, error) {
	return s.scanRun(s.db.QueryRow(`
		SELECT run_id, started_at, completed_at, status,
		       submolts_scraped, posts_scraped, comments_scraped,
		       agents_scraped, moderators_scraped, error
		FROM scrape_runs WHERE run_id = ?
	`, runID))
}

// LatestRun returns the most recently started run, or nil when no run has
// ever been recorded
func (s *Store) LatestRun() (*Run, error) {
	return s.scanRun(s.db.QueryRow(`
		SELECT run_id, started_at, completed_at, status,
		       submolts_scraped, posts_scraped, comments_scraped,
		       agents_scraped, moderators_scraped, error
		FROM scrape_runs ORDER BY run_id DESC LIMIT 1
	`))
}

func (s *Store) scanRun(row *sql.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &run.Status,
		&run.SubmoltsScraped, &run.PostsScraped, &run.CommentsScraped,
		&run.AgentsScraped, &run.ModeratorsScraped, &run.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return &run, nil
}
