// Package render produces human-readable digest output: a styled terminal
// preview for dry runs and a markdown file for the archive directory.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bookdigest/internal/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Border(lipgloss.NormalBorder(), false, false, true, false)

	categoryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")).
			MarginTop(1)

	authorStyle  = lipgloss.NewStyle().Bold(true)
	summaryStyle = lipgloss.NewStyle().PaddingLeft(2)
	metaStyle    = lipgloss.NewStyle().Faint(true)
)

// Preview renders a digest for the terminal. Used by dry runs, where the
// digest is shown instead of delivered.
func Preview(d core.Digest, stats core.RunStats) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Bookmark Digest — %s", d.Date.Format("Jan 2, 2006"))))
	b.WriteString("\n")

	if d.TotalCount == 0 {
		b.WriteString(metaStyle.Render("No new bookmarks."))
		b.WriteString("\n")
		return b.String()
	}

	for _, section := range d.Sections {
		b.WriteString(categoryStyle.Render(fmt.Sprintf("%s (%d)", section.Category, len(section.Bookmarks))))
		b.WriteString("\n")
		for _, bm := range section.Bookmarks {
			author := "@" + bm.AuthorHandle
			if bm.AuthorName != "" {
				author += fmt.Sprintf(" (%s)", bm.AuthorName)
			}
			b.WriteString(authorStyle.Render(author))
			b.WriteString(metaStyle.Render(fmt.Sprintf("  %d likes", bm.LikeCount)))
			b.WriteString("\n")
			b.WriteString(summaryStyle.Render(bm.Summary))
			b.WriteString("\n")
			if bm.Commentary != "" {
				b.WriteString(summaryStyle.Render(metaStyle.Render(bm.Commentary)))
				b.WriteString("\n")
			}
			if bm.URL != "" {
				b.WriteString(summaryStyle.Render(metaStyle.Render(bm.URL)))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf(
		"%d bookmarks • %d dropped • %d input / %d output tokens",
		d.TotalCount, d.DroppedCount, d.Usage.InputTokens, d.Usage.OutputTokens)))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf(
		"loaded %d, already processed %d, new %d",
		stats.Loaded, stats.AlreadyProcessed, stats.New)))
	b.WriteString("\n")

	return b.String()
}

// RenderMarkdown produces the markdown representation of a digest.
func RenderMarkdown(d core.Digest) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Bookmark Digest - %s\n\n", d.Date.Format("2006-01-02")))

	if d.TotalCount == 0 {
		b.WriteString("No new bookmarks for this digest.\n")
		return b.String()
	}

	for _, section := range d.Sections {
		b.WriteString(fmt.Sprintf("## %s\n\n", section.Category))
		for _, bm := range section.Bookmarks {
			author := "@" + bm.AuthorHandle
			if bm.AuthorName != "" {
				author += fmt.Sprintf(" (%s)", bm.AuthorName)
			}
			b.WriteString(fmt.Sprintf("### %s\n\n", author))
			b.WriteString(bm.Summary + "\n\n")
			if bm.Commentary != "" {
				b.WriteString(fmt.Sprintf("*%s*\n\n", bm.Commentary))
			}
			if bm.URL != "" {
				b.WriteString(fmt.Sprintf("[View post](%s)\n\n", bm.URL))
			}
			for _, link := range bm.RelatedLinks {
				b.WriteString(fmt.Sprintf("- [%s](%s)\n", link.Title, link.URL))
			}
			if len(bm.RelatedLinks) > 0 {
				b.WriteString("\n")
			}
			b.WriteString("---\n\n")
		}
	}

	b.WriteString(fmt.Sprintf("*%d bookmarks", d.TotalCount))
	if d.DroppedCount > 0 {
		b.WriteString(fmt.Sprintf(", %d dropped", d.DroppedCount))
	}
	b.WriteString("*\n")

	return b.String()
}

// WriteMarkdownDigest writes the digest's markdown rendering under outputDir,
// named by run date. Returns the written file path.
func WriteMarkdownDigest(d core.Digest, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "digests"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filename := fmt.Sprintf("digest_%s.md", d.Date.Format("2006-01-02"))
	filePath := filepath.Join(outputDir, filename)

	if err := os.WriteFile(filePath, []byte(RenderMarkdown(d)), 0644); err != nil {
		return "", fmt.Errorf("failed to write digest file %s: %w", filePath, err)
	}

	return filePath, nil
}
