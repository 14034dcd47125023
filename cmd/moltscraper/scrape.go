package main

import (
	"context"

	"github.com/spf13/cobra"

	"moltscraper/pkg/scraper"
)

var onlyMissing bool

var submoltsCmd = &cobra.Command{
	Use:   "submolts",
	Short: "Scrape the full submolt listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.ScrapeSubmolts(ctx)
		})
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Scrape the full post listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.ScrapePosts(ctx)
		})
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Fetch comments for every stored post",
	Long: `Fetch the detail view of every stored post, which carries its comments
and fresher vote counts. With --only-missing, posts that already have
stored comments are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.ScrapeComments(ctx, onlyMissing)
		})
	},
}

var moderatorsCmd = &cobra.Command{
	Use:   "moderators",
	Short: "Scrape moderator rosters for every stored submolt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.ScrapeModerators(ctx)
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch full profiles for every author seen in posts and comments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.EnrichAgents(ctx)
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Freeze the current data as a run-tagged snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.CreateSnapshots(ctx)
		})
	},
}

var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run every stage, snapshot, and validate",
	Long: `Run the complete ingestion pipeline in one scrape run:
submolts, posts, comments, moderators, agent profiles, then capture a
snapshot and validate the stored counts against the platform stats.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.FullRun(ctx)
		})
	},
}

var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Ingest only posts newer than the stored set",
	Long: `Scrape the post listing newest-first and stop at the first already-known
post, fetch comments for posts that have none, then snapshot. Much cheaper
than a full run for keeping an archive current.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(func(ctx context.Context, s *scraper.Scraper) error {
			return s.IncrementalRun(ctx)
		})
	},
}

func init() {
	commentsCmd.Flags().BoolVar(&onlyMissing, "only-missing", false, "skip posts that already have stored comments")

	rootCmd.AddCommand(submoltsCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(moderatorsCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(fullCmd)
	rootCmd.AddCommand(incrementalCmd)
}
