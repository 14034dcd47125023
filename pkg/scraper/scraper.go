package scraper

import (
	"context"
	"errors"
	"fmt"

	"moltscraper/pkg/config"
	"moltscraper/pkg/logger"
	"moltscraper/pkg/moltbook"
	"moltscraper/pkg/paginate"
	"moltscraper/pkg/store"
)

// Scraper orchestrates the ingestion stages: it drives the API client page
// by page and feeds every record into the store's merge-upserts, tracking
// progress in a scrape run.
type Scraper struct {
	client *moltbook.Client
	store  *store.Store
	cfg    *config.Config
	logger logger.Logger
}

// New creates a scraper with the given client and store
func New(client *moltbook.Client, st *store.Store, cfg *config.Config, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		client: client,
		store:  st,
		cfg:    cfg,
		logger: log,
	}
}

// withRun opens a scrape run, executes fn against it, and finalizes the run
// status exactly once: completed on success, interrupted on context
// cancellation, failed on anything else.
func (s *Scraper) withRun(ctx context.Context, fn func(ctx context.Context, runID int64) error) error {
	runID, err := s.store.StartRun()
	if err != nil {
		return fmt.Errorf("failed to start scrape run: %w", err)
	}

	err = fn(ctx, runID)

	var status store.RunStatus
	switch {
	case err == nil:
		status = store.RunStatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = store.RunStatusInterrupted
	default:
		status = store.RunStatusFailed
	}

	if finishErr := s.store.FinishRun(runID, status, err); finishErr != nil {
		s.logger.WithError(finishErr).Error("failed to finalize scrape run")
	}
	return err
}

// ScrapeSubmolts ingests the full submolt listing in its own run
func (s *Scraper) ScrapeSubmolts(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		_, err := s.scrapeSubmolts(ctx, runID)
		return err
	})
}

// ScrapePosts ingests the full post listing in its own run
func (s *Scraper) ScrapePosts(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		_, err := s.scrapePosts(ctx, runID, false)
		return err
	})
}

// ScrapeComments fetches per-post detail for every stored post in its own
// run. With onlyMissing set, posts that already have stored comments are
// skipped.
func (s *Scraper) ScrapeComments(ctx context.Context, onlyMissing bool) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		_, err := s.scrapeComments(ctx, runID, onlyMissing)
		return err
	})
}

// ScrapeModerators ingests moderator rosters for every stored submolt in
// its own run
func (s *Scraper) ScrapeModerators(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		_, err := s.scrapeModerators(ctx, runID)
		return err
	})
}

// EnrichAgents fetches full profiles for every distinct author seen in
// stored posts and comments, in its own run
func (s *Scraper) EnrichAgents(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		_, err := s.enrichAgents(ctx, runID)
		return err
	})
}

// CreateSnapshots captures the current live tables as an immutable
// snapshot, in its own run
func (s *Scraper) CreateSnapshots(ctx context.Context) error {
	return s.withRun(ctx, func(_ context.Context, runID int64) error {
		return s.store.Snapshot(runID)
	})
}

// FullRun executes every stage in order under a single run, then captures a
// snapshot and validates counts against the platform stats
func (s *Scraper) FullRun(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		stages := []struct {
			name string
			run  func() (int, error)
		}{
			{"submolts", func() (int, error) { return s.scrapeSubmolts(ctx, runID) }},
			{"posts", func() (int, error) { return s.scrapePosts(ctx, runID, false) }},
			{"comments", func() (int, error) { return s.scrapeComments(ctx, runID, false) }},
			{"moderators", func() (int, error) { return s.scrapeModerators(ctx, runID) }},
			{"agents", func() (int, error) { return s.enrichAgents(ctx, runID) }},
		}

		for _, stage := range stages {
			n, err := stage.run()
			if err != nil {
				return fmt.Errorf("%s stage failed: %w", stage.name, err)
			}
			s.logger.InfoWithFields("stage complete", map[string]interface{}{
				"stage":   stage.name,
				"records": n,
				"run_id":  runID,
			})
		}

		if err := s.store.Snapshot(runID); err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}

		s.validateAndWarn(ctx)
		return nil
	})
}

// IncrementalRun ingests only posts newer than the stored set (stopping at
// the first already-known id), fetches comments for posts that have none,
// then captures a snapshot. It relies on the listing serving newest posts
// first, which holds in practice but is not guaranteed by the API.
func (s *Scraper) IncrementalRun(ctx context.Context) error {
	return s.withRun(ctx, func(ctx context.Context, runID int64) error {
		n, err := s.scrapePosts(ctx, runID, true)
		if err != nil {
			return fmt.Errorf("posts stage failed: %w", err)
		}
		s.logger.InfoWithFields("incremental posts complete", map[string]interface{}{
			"new_posts": n,
			"run_id":    runID,
		})

		if _, err := s.scrapeComments(ctx, runID, true); err != nil {
			return fmt.Errorf("comments stage failed: %w", err)
		}

		if err := s.store.Snapshot(runID); err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		return nil
	})
}

func (s *Scraper) scrapeSubmolts(ctx context.Context, runID int64) (int, error) {
	// The submolt listing ignores a limit parameter and always serves
	// platform-sized pages
	p := &paginate.Paginator[moltbook.Submolt]{
		FetchPage: func(ctx context.Context, offset, _ int) ([]moltbook.Submolt, error) {
			return s.client.FetchSubmolts(ctx, offset)
		},
		Key:      func(sub moltbook.Submolt) string { return sub.Name },
		PageSize: moltbook.DefaultPageSize,
		Logger:   s.logger,
	}

	n, err := p.Stream(ctx, func(sub moltbook.Submolt) error {
		if upErr := s.store.UpsertSubmolt(&sub); upErr != nil {
			s.logger.WithError(upErr).WarnWithFields("skipping submolt", map[string]interface{}{
				"submolt": sub.Name,
			})
		}
		return nil
	})
	s.addCounts(runID, store.RunCounts{Submolts: int64(n)})
	return n, err
}

func (s *Scraper) scrapePosts(ctx context.Context, runID int64, incremental bool) (int, error) {
	p := &paginate.Paginator[moltbook.Post]{
		FetchPage: s.client.FetchPosts,
		Key:       func(post moltbook.Post) string { return post.ID },
		PageSize:  s.cfg.Scrape.PageSize,
		Logger:    s.logger,
	}
	if incremental {
		p.StopWhenKnown = func(_ context.Context, post moltbook.Post) (bool, error) {
			return s.store.KnownPost(post.ID)
		}
	}

	n, err := p.Stream(ctx, func(post moltbook.Post) error {
		if upErr := s.store.UpsertPost(&post); upErr != nil {
			s.logger.WithError(upErr).WarnWithFields("skipping post", map[string]interface{}{
				"post_id": post.ID,
			})
		}
		return nil
	})
	s.addCounts(runID, store.RunCounts{Posts: int64(n)})
	return n, err
}

func (s *Scraper) scrapeComments(ctx context.Context, runID int64, onlyMissing bool) (int, error) {
	postIDs, err := s.store.PostIDs()
	if err != nil {
		return 0, err
	}

	total := 0
	skipped := 0
	for _, postID := range postIDs {
		if err := ctx.Err(); err != nil {
			s.addCounts(runID, store.RunCounts{Comments: int64(total)})
			return total, err
		}

		if onlyMissing {
			has, err := s.store.HasCommentsForPost(postID)
			if err != nil {
				return total, err
			}
			if has {
				skipped++
				continue
			}
		}

		detail, err := s.client.FetchPostWithComments(ctx, postID)
		if err != nil {
			s.addCounts(runID, store.RunCounts{Comments: int64(total)})
			return total, err
		}
		if detail == nil {
			s.logger.WarnWithFields("post no longer available", map[string]interface{}{
				"post_id": postID,
			})
			continue
		}

		// The detail view carries fresher vote and comment counts than
		// the listing did
		if detail.Post != nil {
			if upErr := s.store.UpsertPost(detail.Post); upErr != nil {
				s.logger.WithError(upErr).WarnWithFields("failed to refresh post", map[string]interface{}{
					"post_id": postID,
				})
			}
		}

		for i := range detail.Comments {
			if upErr := s.store.UpsertComment(&detail.Comments[i]); upErr != nil {
				s.logger.WithError(upErr).WarnWithFields("skipping comment", map[string]interface{}{
					"comment_id": detail.Comments[i].ID,
					"post_id":    postID,
				})
				continue
			}
			total++
		}
	}

	s.logger.InfoWithFields("comments stage finished", map[string]interface{}{
		"comments":      total,
		"posts":         len(postIDs),
		"posts_skipped": skipped,
	})
	s.addCounts(runID, store.RunCounts{Comments: int64(total)})
	return total, nil
}

func (s *Scraper) scrapeModerators(ctx context.Context, runID int64) (int, error) {
	names, err := s.store.SubmoltNames()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			s.addCounts(runID, store.RunCounts{Moderators: int64(total)})
			return total, err
		}

		mods, err := s.client.FetchSubmoltModerators(ctx, name)
		if err != nil {
			s.addCounts(runID, store.RunCounts{Moderators: int64(total)})
			return total, err
		}

		for i := range mods {
			if upErr := s.store.UpsertModerator(&mods[i]); upErr != nil {
				s.logger.WithError(upErr).WarnWithFields("skipping moderator", map[string]interface{}{
					"submolt": name,
					"agent":   mods[i].AgentName,
				})
				continue
			}
			total++
		}
	}

	s.addCounts(runID, store.RunCounts{Moderators: int64(total)})
	return total, nil
}

func (s *Scraper) enrichAgents(ctx context.Context, runID int64) (int, error) {
	authors, err := s.store.AuthorNames()
	if err != nil {
		return 0, err
	}

	total := 0
	for _, name := range authors {
		if err := ctx.Err(); err != nil {
			s.addCounts(runID, store.RunCounts{Agents: int64(total)})
			return total, err
		}

		agent, err := s.client.FetchAgentProfile(ctx, name)
		if err != nil {
			s.addCounts(runID, store.RunCounts{Agents: int64(total)})
			return total, err
		}
		if agent == nil {
			s.logger.DebugWithFields("agent profile unavailable", map[string]interface{}{
				"agent": name,
			})
			continue
		}

		if upErr := s.store.UpsertAgent(agent); upErr != nil {
			s.logger.WithError(upErr).WarnWithFields("skipping agent", map[string]interface{}{
				"agent": name,
			})
			continue
		}
		total++
	}

	s.addCounts(runID, store.RunCounts{Agents: int64(total)})
	return total, nil
}

// addCounts best-effort bumps a run's tallies; a bookkeeping failure never
// aborts a stage
func (s *Scraper) addCounts(runID int64, counts store.RunCounts) {
	if err := s.store.AddRunCounts(runID, counts); err != nil {
		s.logger.WithError(err).Warn("failed to update run counters")
	}
}
