package core

import "time"

// Bookmark represents a single bookmarked post from an export file.
// Identity is the ID: two records with the same ID are the same bookmark
// regardless of drift in other fields.
type Bookmark struct {
	ID           string    `json:"id"`            // Stable unique identifier
	Text         string    `json:"text"`          // Post text content
	AuthorName   string    `json:"author_name"`   // Display name of the author
	AuthorHandle string    `json:"author_handle"` // Canonical handle, no leading "@"
	URL          string    `json:"url"`           // Source URL of the post
	CreatedAt    time.Time `json:"created_at"`    // When the post was created (zero if unknown)
	LikeCount    int       `json:"like_count"`    // Like count at export time
	RetweetCount int       `json:"retweet_count"` // Repost count at export time
	ReplyCount   int       `json:"reply_count"`   // Reply count at export time
}

// RelatedLink is a single web search result attached during enrichment.
type RelatedLink struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// EnrichmentStatus describes the outcome of the enrichment step for a record.
type EnrichmentStatus string

const (
	EnrichmentOK      EnrichmentStatus = "ok"
	EnrichmentSkipped EnrichmentStatus = "skipped"
	EnrichmentFailed  EnrichmentStatus = "failed"
)

// EnrichedBookmark is a Bookmark augmented with best-effort web context.
type EnrichedBookmark struct {
	Bookmark
	Keywords     []string         `json:"keywords"`      // Search keywords derived from the text
	RelatedLinks []RelatedLink    `json:"related_links"` // Up to N related search results, possibly empty
	Status       EnrichmentStatus `json:"status"`        // Outcome of the enrichment step
}

// SummarizedBookmark is an EnrichedBookmark with model output attached.
// Category is never empty: anything the model cannot place lands in
// CategoryUncategorized.
type SummarizedBookmark struct {
	EnrichedBookmark
	Category   string `json:"category"`   // One of the fixed category vocabulary
	Summary    string `json:"summary"`    // One-to-two sentence summary
	Commentary string `json:"commentary"` // Optional extra remark from the model
	ModelUsed  string `json:"model_used"` // Model that produced this entry
}

// Category vocabulary for summarized bookmarks. Assembler section order
// follows this list.
const (
	CategoryTech          = "Tech & AI"
	CategoryBusiness      = "Business"
	CategoryMarketing     = "Marketing"
	CategoryScience       = "Science & Health"
	CategoryLearning      = "Learning"
	CategoryNews          = "News & Society"
	CategoryCulture       = "Culture"
	CategoryUncategorized = "Uncategorized"
)

// Categories returns the fixed category vocabulary in priority order.
func Categories() []string {
	return []string{
		CategoryTech,
		CategoryBusiness,
		CategoryMarketing,
		CategoryScience,
		CategoryLearning,
		CategoryNews,
		CategoryCulture,
		CategoryUncategorized,
	}
}

// NormalizeCategory coerces model output to a known category label.
func NormalizeCategory(label string) string {
	for _, c := range Categories() {
		if label == c {
			return c
		}
	}
	return CategoryUncategorized
}

// TokenUsage accumulates model token consumption across calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// DigestSection groups summarized bookmarks under one category.
type DigestSection struct {
	Category  string               `json:"category"`
	Bookmarks []SummarizedBookmark `json:"bookmarks"`
}

// Digest is the aggregated, categorized result of one pipeline run.
type Digest struct {
	ID           string          `json:"id"`            // Unique identifier for the digest
	Date         time.Time       `json:"date"`          // Run date
	TotalCount   int             `json:"total_count"`   // Number of bookmarks included
	DroppedCount int             `json:"dropped_count"` // Records that failed summarization permanently
	Sections     []DigestSection `json:"sections"`      // Category sections in priority order
	Usage        TokenUsage      `json:"usage"`         // Total token consumption for the run
	ModelsUsed   []string        `json:"models_used"`   // Distinct models used, sorted
}

// Flatten returns all summarized bookmarks across sections in section order.
func (d Digest) Flatten() []SummarizedBookmark {
	var out []SummarizedBookmark
	for _, s := range d.Sections {
		out = append(out, s.Bookmarks...)
	}
	return out
}

// RunStats is the operator-facing end-of-run accounting, reported on both
// success and failure paths.
type RunStats struct {
	Loaded           int  `json:"loaded"`            // Records parsed from the export file
	SkippedMalformed int  `json:"skipped_malformed"` // Malformed export entries skipped
	AlreadyProcessed int  `json:"already_processed"` // Records filtered by the dedup cache
	New              int  `json:"new"`               // Records entering the pipeline
	Enriched         int  `json:"enriched"`          // Records with enrichment status "ok"
	Summarized       int  `json:"summarized"`        // Records that made it into the digest
	Dropped          int  `json:"dropped"`           // Records dropped after summarization failures
	Delivered        bool `json:"delivered"`         // Whether the notification was delivered
}
