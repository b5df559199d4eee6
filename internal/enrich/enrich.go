package enrich

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"bookdigest/internal/core"
	"bookdigest/internal/logger"
	"bookdigest/internal/search"
)

// Enricher attaches best-effort web context to new bookmarks. Any failure
// degrades the single record to EnrichmentFailed and never aborts the batch.
type Enricher struct {
	provider    search.Provider
	maxResults  int
	maxKeywords int
	timeout     time.Duration
	rateLimit   time.Duration
}

// Options configures an Enricher.
type Options struct {
	MaxResults  int           // Related links attached per record; 0 means 3
	MaxKeywords int           // Keywords derived per record; 0 means 3
	Timeout     time.Duration // Per-record timeout; 0 means 15s
	RateLimit   time.Duration // Gap between provider calls
}

// New creates an Enricher backed by the given search provider.
func New(provider search.Provider, opts Options) *Enricher {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Enricher{
		provider:    provider,
		maxResults:  opts.MaxResults,
		maxKeywords: opts.MaxKeywords,
		timeout:     opts.Timeout,
		rateLimit:   opts.RateLimit,
	}
}

// EnrichAll enriches every bookmark in order. Records whose text yields no
// keywords are skipped, failed searches are degraded, and the run continues.
func (e *Enricher) EnrichAll(ctx context.Context, bookmarks []core.Bookmark) []core.EnrichedBookmark {
	out := make([]core.EnrichedBookmark, 0, len(bookmarks))
	for i, bm := range bookmarks {
		logger.Debug("Enriching bookmark", "id", bm.ID, "progress", i+1, "total", len(bookmarks))
		out = append(out, e.enrichOne(ctx, bm))
	}
	return out
}

// SkipAll marks every bookmark as enrichment-skipped without any network
// calls, for --skip-enrich runs.
func SkipAll(bookmarks []core.Bookmark) []core.EnrichedBookmark {
	out := make([]core.EnrichedBookmark, 0, len(bookmarks))
	for _, bm := range bookmarks {
		out = append(out, core.EnrichedBookmark{Bookmark: bm, Status: core.EnrichmentSkipped})
	}
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, bm core.Bookmark) core.EnrichedBookmark {
	enriched := core.EnrichedBookmark{Bookmark: bm, Status: core.EnrichmentOK}

	keywords := ExtractKeywords(bm.Text, e.maxKeywords)
	enriched.Keywords = keywords
	if len(keywords) == 0 {
		enriched.Status = core.EnrichmentSkipped
		return enriched
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results, err := e.provider.Search(searchCtx, strings.Join(keywords, " "), search.Config{
		MaxResults: e.maxResults,
		RateLimit:  e.rateLimit,
	})
	if err != nil {
		logger.Warn("Enrichment search failed", "id", bm.ID, "error", err.Error())
		enriched.Status = core.EnrichmentFailed
		return enriched
	}

	for _, r := range results {
		enriched.RelatedLinks = append(enriched.RelatedLinks, core.RelatedLink{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}
	return enriched
}

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
)

// Common words excluded from keyword candidates.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "have": true, "just": true, "your": true,
	"about": true, "what": true, "when": true, "will": true, "would": true,
	"could": true, "should": true, "here": true, "there": true, "their": true,
	"been": true, "more": true, "some": true, "into": true, "over": true,
	"them": true, "then": true, "than": true, "they": true, "very": true,
	"much": true, "only": true, "also": true, "like": true, "today": true,
}

// ExtractKeywords heuristically derives up to max search keywords from post
// text. Hashtags rank first, then capitalized terms, then long plain tokens.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		max = 3
	}
	text = urlPattern.ReplaceAllString(text, " ")

	seen := make(map[string]bool)
	var keywords []string
	add := func(word string) {
		word = strings.Trim(word, ".,!?:;\"'()[]{}")
		if len(word) < 3 || stopWords[strings.ToLower(word)] {
			return
		}
		lower := strings.ToLower(word)
		if seen[lower] {
			return
		}
		seen[lower] = true
		keywords = append(keywords, word)
	}

	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	text = hashtagPattern.ReplaceAllString(text, " ")
	text = mentionPattern.ReplaceAllString(text, " ")

	fields := strings.Fields(text)
	// Capitalized terms first: proper nouns, product names, acronyms.
	for _, f := range fields {
		if len(keywords) >= max {
			return keywords[:max]
		}
		runes := []rune(strings.Trim(f, ".,!?:;\"'()[]{}"))
		if len(runes) > 0 && unicode.IsUpper(runes[0]) {
			add(f)
		}
	}
	for _, f := range fields {
		if len(keywords) >= max {
			break
		}
		if len([]rune(f)) >= 6 {
			add(f)
		}
	}

	if len(keywords) > max {
		keywords = keywords[:max]
	}
	return keywords
}
