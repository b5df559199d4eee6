package summarize

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"bookdigest/internal/core"
)

// maxTextLen bounds how much of a post's text is sent to the model per record.
const maxTextLen = 300

// ResponseSchema constrains the model to one category+summary+commentary
// entry per input ID.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id": {
					Type:        genai.TypeString,
					Description: "The bookmark ID exactly as given in the input",
				},
				"category": {
					Type:        genai.TypeString,
					Description: "One of the allowed category labels",
					Enum:        core.Categories(),
				},
				"summary": {
					Type:        genai.TypeString,
					Description: "Faithful one-to-two sentence summary of the post",
				},
				"commentary": {
					Type:        genai.TypeString,
					Description: "Optional short remark on why the post matters; empty if nothing to add",
				},
			},
			Required: []string{"id", "category", "summary"},
		},
	}
}

// BuildBatchPrompt renders one batch of bookmarks into the summarization
// prompt. Related links found during enrichment are included as context.
func BuildBatchPrompt(records []core.EnrichedBookmark) string {
	var b strings.Builder

	b.WriteString("Analyze the following bookmarked posts.\n\n")
	b.WriteString("For each post:\n")
	fmt.Fprintf(&b, "1. Assign exactly one category from: %s\n", strings.Join(core.Categories(), ", "))
	b.WriteString("2. Write a faithful one-to-two sentence summary of the post content\n")
	b.WriteString("3. Optionally add one short remark with useful context; leave commentary empty otherwise\n\n")
	b.WriteString("Return one entry per post ID. Do not skip any ID.\n\n")
	b.WriteString("Posts:\n")

	for _, rec := range records {
		fmt.Fprintf(&b, "\n[ID:%s]\n@%s (%s)\n%s\n", rec.ID, rec.AuthorHandle, rec.AuthorName, truncate(rec.Text, maxTextLen))
		if len(rec.RelatedLinks) > 0 {
			b.WriteString("Related web context:\n")
			for _, link := range rec.RelatedLinks {
				fmt.Fprintf(&b, "- %s: %s\n", link.Title, truncate(link.Snippet, 150))
			}
		}
	}

	return b.String()
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}
