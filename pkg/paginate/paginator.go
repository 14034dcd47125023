// Package paginate drives repeated page fetches against offset/limit list
// endpoints and assembles a deduplicated record stream. The API may return
// overlapping or reordered pages, so every record's identity is checked
// against a per-session seen-set before it is emitted.
package paginate

import (
	"context"
	"fmt"

	"moltscraper/pkg/logger"
)

// FetchPageFunc fetches one page of records starting at offset. The
// requested limit matches the Paginator's PageSize; termination compares
// the returned page length against that same value.
type FetchPageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Paginator streams records from a paginated listing, deduplicating by
// identity. A fresh seen-set is created per Stream call, so a Paginator
// may be reused for independent sessions.
type Paginator[T any] struct {
	// FetchPage fetches the page at the given offset
	FetchPage FetchPageFunc[T]

	// Key extracts the stable identity of a record
	Key func(T) string

	// PageSize is the number of records requested per page. A page with
	// fewer records than PageSize ends the stream; a full page always
	// triggers at least one more fetch.
	PageSize int

	// StopWhenKnown, when set, enables incremental mode: the stream halts
	// as soon as a record already known to the store is encountered. This
	// relies on the API serving newest records first (append-biased
	// insertion order), which is a heuristic, not a guarantee.
	StopWhenKnown func(ctx context.Context, record T) (bool, error)

	// Logger for per-page progress; defaults to the global logger
	Logger logger.Logger
}

// Stream fetches pages until the termination condition and passes each
// first-seen record to emit, in first-seen order. It returns the number of
// records emitted. An emit error stops the stream; deciding whether a
// record-level failure is fatal is the caller's policy.
func (p *Paginator[T]) Stream(ctx context.Context, emit func(T) error) (int, error) {
	log := p.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if p.PageSize <= 0 {
		return 0, fmt.Errorf("page size must be positive, got %d", p.PageSize)
	}

	seen := make(map[string]struct{})
	emitted := 0
	offset := 0
	page := 0

	for {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}

		records, err := p.FetchPage(ctx, offset, p.PageSize)
		if err != nil {
			return emitted, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
		}
		page++

		duplicates := 0
		for _, record := range records {
			key := p.Key(record)
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}

			if p.StopWhenKnown != nil {
				known, err := p.StopWhenKnown(ctx, record)
				if err != nil {
					return emitted, fmt.Errorf("failed to check known record %s: %w", key, err)
				}
				if known {
					log.InfoWithFields("reached known record, stopping stream", map[string]interface{}{
						"key":     key,
						"page":    page,
						"emitted": emitted,
					})
					return emitted, nil
				}
			}

			if err := emit(record); err != nil {
				return emitted, err
			}
			emitted++
		}

		log.DebugWithFields("page processed", map[string]interface{}{
			"page":       page,
			"offset":     offset,
			"records":    len(records),
			"duplicates": duplicates,
			"emitted":    emitted,
		})

		// A short page means the listing is exhausted. The comparison is
		// against the requested page size; anything else risks premature
		// or infinite termination.
		if len(records) < p.PageSize {
			return emitted, nil
		}

		offset += len(records)
	}
}
