// Package digest assembles summarized bookmarks into a categorized digest.
package digest

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"bookdigest/internal/core"
)

// Assemble groups summarized bookmarks into category sections. Sections
// appear in the fixed category priority order; empty categories are
// omitted. Within a section, bookmarks sort by like count descending,
// preserving input order on ties.
func Assemble(records []core.SummarizedBookmark, dropped []string, usage core.TokenUsage, models []string, now time.Time) core.Digest {
	byCategory := make(map[string][]core.SummarizedBookmark)
	for _, rec := range records {
		cat := core.NormalizeCategory(rec.Category)
		rec.Category = cat
		byCategory[cat] = append(byCategory[cat], rec)
	}

	var sections []core.DigestSection
	for _, cat := range core.Categories() {
		bookmarks, ok := byCategory[cat]
		if !ok {
			continue
		}
		sort.SliceStable(bookmarks, func(i, j int) bool {
			return bookmarks[i].LikeCount > bookmarks[j].LikeCount
		})
		sections = append(sections, core.DigestSection{
			Category:  cat,
			Bookmarks: bookmarks,
		})
	}

	return core.Digest{
		ID:           uuid.New().String(),
		Date:         now,
		TotalCount:   len(records),
		DroppedCount: len(dropped),
		Sections:     sections,
		Usage:        usage,
		ModelsUsed:   models,
	}
}
