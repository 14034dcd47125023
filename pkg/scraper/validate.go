package scraper

import (
	"context"
	"fmt"

	"moltscraper/pkg/store"
)

// ValidationCheck compares one stored entity count against the platform's
// reported aggregate
type ValidationCheck struct {
	Entity   string
	Stored   int64
	Reported int64
	Within   bool
}

// Deviation returns the relative shortfall or excess of the stored count
// against the reported aggregate
func (c ValidationCheck) Deviation() float64 {
	if c.Reported == 0 {
		return 0
	}
	return float64(c.Stored-c.Reported) / float64(c.Reported)
}

// Validate fetches the platform-wide stats and compares them against the
// live-table counts within the configured tolerance. Deviations are
// expected (the API caps comments per post, and entities churn between
// stages), so mismatches are reported, never treated as failures.
func (s *Scraper) Validate(ctx context.Context) ([]ValidationCheck, error) {
	stats, err := s.client.FetchPlatformStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch platform stats: %w", err)
	}

	counts, err := s.store.Counts()
	if err != nil {
		return nil, err
	}

	return s.compare(counts, stats.Agents, stats.Submolts, stats.Posts, stats.Comments), nil
}

func (s *Scraper) compare(counts *store.EntityCounts, agents, submolts, posts, comments int64) []ValidationCheck {
	tolerance := s.cfg.Scrape.ValidationTolerance

	checks := []ValidationCheck{
		{Entity: "agents", Stored: counts.Agents, Reported: agents},
		{Entity: "submolts", Stored: counts.Submolts, Reported: submolts},
		{Entity: "posts", Stored: counts.Posts, Reported: posts},
		{Entity: "comments", Stored: counts.Comments, Reported: comments},
	}

	for i := range checks {
		c := &checks[i]
		dev := c.Deviation()
		c.Within = dev >= -tolerance && dev <= tolerance
		if !c.Within {
			s.logger.WarnWithFields("stored count deviates from platform stats", map[string]interface{}{
				"entity":    c.Entity,
				"stored":    c.Stored,
				"reported":  c.Reported,
				"deviation": fmt.Sprintf("%+.1f%%", dev*100),
			})
		}
	}
	return checks
}

// validateAndWarn runs validation at the end of a full run. Any failure to
// even obtain the stats is itself only a warning.
func (s *Scraper) validateAndWarn(ctx context.Context) {
	if _, err := s.Validate(ctx); err != nil {
		s.logger.WithError(err).Warn("count validation skipped")
	}
}
