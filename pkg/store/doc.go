// Package store persists scraped Moltbook entities in SQLite.
//
// Each entity has a live table holding the current merged view, keyed by
// its natural identity. Upserts merge rather than clobber: attributes the
// API omitted arrive as NULL and COALESCE keeps the previously stored
// value, while first_seen_at is written once and never updated. Re-running
// a scrape is therefore always safe.
//
// Scrape runs are tracked in scrape_runs, and Snapshot copies the live
// tables into append-only snapshot tables tagged with the run id, giving
// downstream analysis a stable per-run view of the data.
package store
