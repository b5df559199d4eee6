// Package messaging delivers digests to Slack incoming webhooks using
// Block Kit payloads.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookdigest/internal/core"
)

// maxBlocksPerMessage is Slack's hard limit on blocks per message. Digests
// that exceed it are split into multiple webhook posts.
const maxBlocksPerMessage = 50

// maxSummaryLen bounds per-bookmark text in a section block.
const maxSummaryLen = 500

// SlackMessage represents a Slack webhook payload.
type SlackMessage struct {
	Text      string       `json:"text,omitempty"`
	Blocks    []SlackBlock `json:"blocks,omitempty"`
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
}

// SlackBlock represents a Slack Block Kit element.
type SlackBlock struct {
	Type     string              `json:"type"`
	Text     *SlackText          `json:"text,omitempty"`
	Elements []SlackBlockElement `json:"elements,omitempty"`
}

// SlackText represents text in Slack blocks.
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackBlockElement represents elements within context blocks.
type SlackBlockElement struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// categoryEmoji labels digest sections. Unknown categories get the pin.
var categoryEmoji = map[string]string{
	core.CategoryTech:          "🤖",
	core.CategoryBusiness:      "💼",
	core.CategoryMarketing:     "📣",
	core.CategoryScience:       "🔬",
	core.CategoryLearning:      "🎓",
	core.CategoryNews:          "📰",
	core.CategoryCulture:       "🎭",
	core.CategoryUncategorized: "📌",
}

// Client sends digest notifications to a Slack webhook.
type Client struct {
	WebhookURL string
	Username   string
	IconEmoji  string
	HTTPClient *http.Client
}

// NewClient creates a messaging client for the given webhook URL.
func NewClient(webhookURL string) *Client {
	return &Client{
		WebhookURL: webhookURL,
		Username:   "Bookmark Digest",
		IconEmoji:  ":books:",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// BuildDigestBlocks converts a digest into Block Kit blocks: a header,
// one section header per category, and one section per bookmark with its
// summary and source link.
func BuildDigestBlocks(d core.Digest) []SlackBlock {
	var blocks []SlackBlock

	blocks = append(blocks, SlackBlock{
		Type: "header",
		Text: &SlackText{
			Type: "plain_text",
			Text: fmt.Sprintf("Bookmark Digest — %s", d.Date.Format("Jan 2, 2006")),
		},
	})

	for _, section := range d.Sections {
		emoji, ok := categoryEmoji[section.Category]
		if !ok {
			emoji = categoryEmoji[core.CategoryUncategorized]
		}
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("%s *%s* (%d)", emoji, section.Category, len(section.Bookmarks)),
			},
		})

		for _, b := range section.Bookmarks {
			var body strings.Builder
			fmt.Fprintf(&body, "*@%s*", b.AuthorHandle)
			if b.AuthorName != "" {
				fmt.Fprintf(&body, " (%s)", b.AuthorName)
			}
			if b.LikeCount > 0 {
				fmt.Fprintf(&body, " · %d likes", b.LikeCount)
			}
			fmt.Fprintf(&body, "\n%s", truncateText(b.Summary, maxSummaryLen))
			if b.Commentary != "" {
				fmt.Fprintf(&body, "\n_%s_", truncateText(b.Commentary, maxSummaryLen))
			}
			if b.URL != "" {
				fmt.Fprintf(&body, "\n<%s|View post>", b.URL)
			}
			blocks = append(blocks, SlackBlock{
				Type: "section",
				Text: &SlackText{Type: "mrkdwn", Text: body.String()},
			})
		}

		blocks = append(blocks, SlackBlock{Type: "divider"})
	}

	footer := fmt.Sprintf("%d bookmarks", d.TotalCount)
	if d.DroppedCount > 0 {
		footer += fmt.Sprintf(" • %d dropped", d.DroppedCount)
	}
	if len(d.ModelsUsed) > 0 {
		footer += " • " + strings.Join(d.ModelsUsed, ", ")
	}
	blocks = append(blocks, SlackBlock{
		Type: "context",
		Elements: []SlackBlockElement{
			{Type: "mrkdwn", Text: footer},
		},
	})

	return blocks
}

// SplitBlocks partitions blocks into messages no larger than Slack's
// per-message block limit.
func SplitBlocks(blocks []SlackBlock, limit int) [][]SlackBlock {
	if limit <= 0 {
		limit = maxBlocksPerMessage
	}
	var chunks [][]SlackBlock
	for len(blocks) > limit {
		chunks = append(chunks, blocks[:limit])
		blocks = blocks[limit:]
	}
	if len(blocks) > 0 {
		chunks = append(chunks, blocks)
	}
	return chunks
}

// SendDigest posts the digest to the webhook, splitting into multiple
// messages when the block count exceeds the platform limit. A non-2xx
// response on any chunk fails the whole delivery.
func (c *Client) SendDigest(ctx context.Context, d core.Digest) error {
	if d.TotalCount == 0 {
		return fmt.Errorf("refusing to send empty digest")
	}

	blocks := BuildDigestBlocks(d)
	chunks := SplitBlocks(blocks, maxBlocksPerMessage)

	for i, chunk := range chunks {
		msg := &SlackMessage{
			Blocks:    chunk,
			Username:  c.Username,
			IconEmoji: c.IconEmoji,
		}
		if i == 0 {
			// Fallback text for clients that cannot render blocks.
			msg.Text = fmt.Sprintf("Bookmark Digest — %s (%d bookmarks)", d.Date.Format("Jan 2, 2006"), d.TotalCount)
		}
		if err := c.send(ctx, msg); err != nil {
			return fmt.Errorf("webhook post %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// SendError posts a plain-text failure notice so an operator learns about
// a broken run without checking logs.
func (c *Client) SendError(ctx context.Context, runErr error, stats core.RunStats) error {
	msg := &SlackMessage{
		Text: fmt.Sprintf(":warning: Bookmark digest run failed: %v\nLoaded %d, new %d, summarized %d.",
			runErr, stats.Loaded, stats.New, stats.Summarized),
		Username:  c.Username,
		IconEmoji: ":warning:",
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, message *SlackMessage) error {
	if c.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// ValidateWebhookURL checks a webhook URL looks like a Slack incoming
// webhook before the pipeline commits to a run.
func ValidateWebhookURL(url string) error {
	if url == "" {
		return fmt.Errorf("slack webhook URL cannot be empty")
	}
	if !strings.Contains(url, "hooks.slack.com") {
		return fmt.Errorf("invalid Slack webhook URL format")
	}
	return nil
}

func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
