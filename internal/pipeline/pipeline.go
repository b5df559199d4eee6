// Package pipeline orchestrates the end-to-end digest run: load the export
// file, filter already-processed bookmarks, enrich, summarize, assemble,
// deliver, and only then commit the dedup cache.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookdigest/internal/core"
	"bookdigest/internal/digest"
	"bookdigest/internal/enrich"
	"bookdigest/internal/logger"
)

// Pipeline wires the run stages together.
type Pipeline struct {
	loader     BookmarkLoader
	cache      DedupCache
	enricher   Enricher
	summarizer Summarizer
	notifier   Notifier
	archiver   Archiver // optional

	now func() time.Time
}

// New creates a pipeline. archiver may be nil.
func New(loader BookmarkLoader, cache DedupCache, enricher Enricher, summarizer Summarizer, notifier Notifier, archiver Archiver) *Pipeline {
	return &Pipeline{
		loader:     loader,
		cache:      cache,
		enricher:   enricher,
		summarizer: summarizer,
		notifier:   notifier,
		archiver:   archiver,
		now:        time.Now,
	}
}

// Options configures a single run.
type Options struct {
	InputFile  string
	DryRun     bool // render instead of deliver, no cache commit
	NoCache    bool // process everything, commit nothing
	MaxItems   int  // cap on new records per run, 0 means no cap
	SkipEnrich bool // mark all records enrichment-skipped
}

// Result is what a completed run produced.
type Result struct {
	Digest core.Digest
	Stats  core.RunStats
}

// Run executes the full pipeline. The dedup cache is committed only after
// delivery succeeds, so a failed run reprocesses the same records next time.
// On failure after the load stage a best-effort error notification goes out.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	var stats core.RunStats

	runID := uuid.New().String()
	logger.Info("Starting digest run", "run_id", runID, "input", opts.InputFile, "dry_run", opts.DryRun)

	res, err := p.run(ctx, opts, &stats)
	if err != nil && p.notifier != nil && !opts.DryRun {
		if notifyErr := p.notifier.SendError(ctx, err, stats); notifyErr != nil {
			logger.Warn("Failed to send error notification", "error", notifyErr.Error())
		}
	}
	if res == nil {
		// Callers report counts even when the run fails partway through.
		res = &Result{Stats: stats}
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, opts Options, stats *core.RunStats) (*Result, error) {
	if err := p.cache.Acquire(); err != nil {
		return nil, err
	}
	defer p.cache.Release()

	// Load
	bookmarks, skipped, err := p.loader.Load(opts.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	stats.Loaded = len(bookmarks)
	stats.SkippedMalformed = skipped
	logger.Info("Loaded bookmarks", "count", stats.Loaded, "skipped", skipped)

	// Dedup
	fresh := bookmarks
	if !opts.NoCache {
		fresh = p.cache.FilterNew(bookmarks)
	}
	stats.AlreadyProcessed = stats.Loaded - len(fresh)
	if opts.MaxItems > 0 && len(fresh) > opts.MaxItems {
		fresh = fresh[:opts.MaxItems]
	}
	stats.New = len(fresh)
	logger.Info("Filtered bookmarks", "new", stats.New, "already_processed", stats.AlreadyProcessed)

	if len(fresh) == 0 {
		logger.Info("No new bookmarks, nothing to do")
		return &Result{Stats: *stats}, nil
	}

	// Enrich
	var enriched []core.EnrichedBookmark
	if opts.SkipEnrich || p.enricher == nil {
		enriched = enrich.SkipAll(fresh)
	} else {
		enriched = p.enricher.EnrichAll(ctx, fresh)
	}
	for _, e := range enriched {
		if e.Status == core.EnrichmentOK {
			stats.Enriched++
		}
	}

	// Summarize
	sumResult, err := p.summarizer.SummarizeAll(ctx, enriched)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}
	stats.Summarized = len(sumResult.Records)
	stats.Dropped = len(sumResult.Dropped)

	// Dropped records stay out of the commit so they retry next run, until
	// their failure budget is spent and they are written off as processed.
	var writtenOff []string
	for _, id := range sumResult.Dropped {
		if p.cache.RecordFailure(id) {
			logger.Warn("Writing off record after repeated failures", "id", id)
			writtenOff = append(writtenOff, id)
		}
	}

	d := digest.Assemble(sumResult.Records, sumResult.Dropped, sumResult.Usage, sumResult.Models, p.now())

	if d.TotalCount == 0 && len(writtenOff) == 0 {
		return nil, fmt.Errorf("all %d records failed summarization", len(fresh))
	}

	if opts.DryRun {
		logger.Info("Dry run, skipping delivery and cache commit", "bookmarks", d.TotalCount)
		return &Result{Digest: d, Stats: *stats}, nil
	}

	if p.archiver != nil && d.TotalCount > 0 {
		if err := p.archiver.SaveDigest(d); err != nil {
			logger.Warn("Failed to archive digest", "error", err.Error())
		}
	}

	// Deliver before commit: a failed send leaves the cache untouched so the
	// digest regenerates next run.
	if d.TotalCount > 0 {
		if err := p.notifier.SendDigest(ctx, d); err != nil {
			return nil, fmt.Errorf("delivery failed: %w", err)
		}
		stats.Delivered = true
		if p.archiver != nil {
			if err := p.archiver.MarkDelivered(d.ID); err != nil {
				logger.Warn("Failed to mark digest delivered", "error", err.Error())
			}
		}
	}

	// Commit
	if !opts.NoCache {
		commitIDs := make([]string, 0, len(sumResult.Records)+len(writtenOff))
		for _, rec := range sumResult.Records {
			commitIDs = append(commitIDs, rec.ID)
		}
		commitIDs = append(commitIDs, writtenOff...)
		if err := p.cache.Commit(commitIDs); err != nil {
			return nil, fmt.Errorf("cache commit failed: %w", err)
		}
	}

	logger.Info("Run complete",
		"delivered", stats.Delivered,
		"summarized", stats.Summarized,
		"dropped", stats.Dropped)
	return &Result{Digest: d, Stats: *stats}, nil
}
