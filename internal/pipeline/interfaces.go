package pipeline

import (
	"context"

	"bookdigest/internal/core"
	"bookdigest/internal/summarize"
)

// BookmarkLoader reads an export file into bookmarks. The int return is the
// count of malformed entries skipped during parsing.
type BookmarkLoader interface {
	Load(path string) ([]core.Bookmark, int, error)
}

// DedupCache is the persisted set of already-processed bookmark IDs plus
// per-ID failure accounting.
type DedupCache interface {
	// Acquire takes the single-writer lock for this run.
	Acquire() error

	// Release drops the lock if held.
	Release()

	// FilterNew returns only records not yet processed, preserving order.
	FilterNew(records []core.Bookmark) []core.Bookmark

	// RecordFailure counts a summarization failure and reports whether the
	// ID has exhausted its retry budget across runs.
	RecordFailure(id string) bool

	// Commit persists the given IDs as processed.
	Commit(ids []string) error
}

// Enricher attaches best-effort web context to bookmarks.
type Enricher interface {
	EnrichAll(ctx context.Context, bookmarks []core.Bookmark) []core.EnrichedBookmark
}

// Summarizer turns enriched bookmarks into categorized summaries.
type Summarizer interface {
	SummarizeAll(ctx context.Context, records []core.EnrichedBookmark) (summarize.Result, error)
}

// Notifier delivers the digest and reports run failures.
type Notifier interface {
	SendDigest(ctx context.Context, digest core.Digest) error
	SendError(ctx context.Context, runErr error, stats core.RunStats) error
}

// Archiver persists generated digests for later inspection. Optional.
type Archiver interface {
	SaveDigest(digest core.Digest) error
	MarkDelivered(digestID string) error
}
