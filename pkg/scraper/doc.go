// Package scraper coordinates the ingestion stages against the Moltbook
// API: listing submolts and posts, expanding posts into comments, collecting
// moderator rosters, and enriching agent profiles. Every stage runs inside a
// tracked scrape run and writes through the store's idempotent upserts, so
// any stage can be interrupted and re-run without losing or duplicating
// data.
package scraper
