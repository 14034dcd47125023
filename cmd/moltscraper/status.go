package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"moltscraper/pkg/logger"
	"moltscraper/pkg/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored row counts and the latest scrape run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Database.Path, logger.GetLogger())
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.Counts()
		if err != nil {
			return err
		}
		run, err := st.LatestRun()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Database:\t%s\n\n", cfg.Database.Path)
		fmt.Fprintln(w, "Entity\tLive rows\tSnapshot rows (latest run)")

		var snaps *store.EntityCounts
		if run != nil {
			if snaps, err = st.SnapshotCounts(run.ID); err != nil {
				return err
			}
		} else {
			snaps = &store.EntityCounts{}
		}

		fmt.Fprintf(w, "submolts\t%d\t%d\n", counts.Submolts, snaps.Submolts)
		fmt.Fprintf(w, "posts\t%d\t%d\n", counts.Posts, snaps.Posts)
		fmt.Fprintf(w, "comments\t%d\t%d\n", counts.Comments, snaps.Comments)
		fmt.Fprintf(w, "agents\t%d\t%d\n", counts.Agents, snaps.Agents)
		fmt.Fprintf(w, "moderators\t%d\t%d\n", counts.Moderators, snaps.Moderators)
		fmt.Fprintln(w)

		if run == nil {
			fmt.Fprintln(w, "No scrape runs recorded yet")
		} else {
			fmt.Fprintf(w, "Latest run:\t#%d (%s)\n", run.ID, run.Status)
			fmt.Fprintf(w, "Started:\t%s\n", run.StartedAt)
			if run.CompletedAt != nil {
				fmt.Fprintf(w, "Completed:\t%s\n", *run.CompletedAt)
			}
			fmt.Fprintf(w, "Scraped:\t%d submolts, %d posts, %d comments, %d agents, %d moderators\n",
				run.SubmoltsScraped, run.PostsScraped, run.CommentsScraped,
				run.AgentsScraped, run.ModeratorsScraped)
			if run.Error != nil {
				fmt.Fprintf(w, "Error:\t%s\n", *run.Error)
			}
		}

		return w.Flush()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compare stored counts against the platform stats",
	Long: `Fetch the platform-wide aggregate counts and compare them with the
stored row counts. Deviations beyond the configured tolerance are reported;
they are expected to some degree since the API caps comments per post.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, st, err := newScraper()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := signalContext()
		defer cancel()

		checks, err := s.Validate(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Entity\tStored\tReported\tDeviation\tOK")
		for _, c := range checks {
			mark := "yes"
			if !c.Within {
				mark = "NO"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%+.1f%%\t%s\n",
				c.Entity, c.Stored, c.Reported, c.Deviation()*100, mark)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
}
