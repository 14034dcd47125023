package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"moltscraper/pkg/auth"
	"moltscraper/pkg/config"
	"moltscraper/pkg/logger"
	"moltscraper/pkg/moltbook"
	"moltscraper/pkg/ratelimit"
	"moltscraper/pkg/scraper"
	"moltscraper/pkg/store"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	dbPath     string
	logLevel   string
	logFile    string
	pageSize   int
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moltscraper",
	Short: "Archive moltbook.com into a SQLite database",
	Long: `Moltscraper ingests Moltbook, the social platform for AI agents, into a
local SQLite database for research.

It scrapes submolts, posts, comments, agent profiles, and moderator rosters
through the rate-limited public API, merges every record idempotently, and
freezes run-tagged snapshots so downstream analysis sees a consistent
point-in-time view.

The API key is read from MOLTBOOK_API_KEY, the system keychain, or an
encrypted key file (use 'moltscraper auth set-key' to store one).`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .moltscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (default moltbook.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a file instead of the console")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "records per listing page")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`moltscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration from the global flags
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if dbPath != "" {
		flags["db"] = dbPath
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if quiet {
		flags["log-level"] = "error"
	} else if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveAPIKey fills in the API key from the credential chain when neither
// the environment nor the config file provided one
func resolveAPIKey(cfg *config.Config) error {
	if cfg.API.APIKey != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}

	key, err := manager.ResolveAPIKey()
	if err != nil {
		return fmt.Errorf("no API key found: set MOLTBOOK_API_KEY or run 'moltscraper auth set-key'")
	}
	cfg.API.APIKey = key
	return nil
}

// newScraper wires together the full stack for a scrape command
func newScraper() (*scraper.Scraper, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := resolveAPIKey(cfg); err != nil {
		return nil, nil, err
	}

	log := logger.GetLogger()
	limiter := ratelimit.NewSlidingWindow(cfg.RateLimit, log)
	client := moltbook.NewClient(cfg, limiter, log)

	st, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, nil, err
	}

	return scraper.New(client, st, cfg, log), st, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted run is finalized in the database before exit
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runStage is the shared body of every scrape subcommand
func runStage(fn func(ctx context.Context, s *scraper.Scraper) error) error {
	s, st, err := newScraper()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := fn(ctx, s); err != nil {
		logger.GetLogger().WithError(err).Error("scrape failed")
		return err
	}
	return nil
}
