package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookdigest/internal/core"
	"bookdigest/internal/logger"
)

// ErrUnrecognizedFormat is returned when the input parses as neither a JSON
// array nor CSV with a header row.
var ErrUnrecognizedFormat = errors.New("input is neither a JSON array nor CSV")

var statusIDPattern = regexp.MustCompile(`/status/(\d+)`)

// Accepted timestamp layouts, including the legacy Twitter API format.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05Z07:00",
	time.RFC3339,
	"Mon Jan 02 15:04:05 -0700 2006",
}

// Load reads a bookmark export file and returns the parsed bookmarks along
// with the number of malformed entries skipped. Duplicate IDs within one file
// are dropped, first occurrence wins. It fails only when the file is missing
// or cannot be parsed as either recognized shape.
func Load(path string) ([]core.Bookmark, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read bookmarks file %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		logger.Info("Bookmarks file is empty", "path", path)
		return nil, 0, nil
	}

	var bookmarks []core.Bookmark
	var skipped int

	if isCSV(path, trimmed) {
		bookmarks, skipped, err = parseCSV(trimmed)
	} else {
		bookmarks, skipped, err = parseJSON(trimmed)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	bookmarks = dedupeByID(bookmarks)
	logger.Info("Loaded bookmarks", "path", path, "count", len(bookmarks), "skipped", skipped)
	return bookmarks, skipped, nil
}

// isCSV sniffs the shape: extension wins, otherwise the first byte decides.
// Exports are sometimes CSV content under a .json name, so the content check
// applies to .json files too.
func isCSV(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return true
	}
	first := data[0]
	return first != '[' && first != '{'
}

// flexString accepts a JSON string or number; export tools disagree on
// whether IDs are quoted.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexInt accepts a JSON number or numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			*f = flexInt(v)
		}
		return nil
	}
	*f = 0
	return nil
}

// rawItem covers the key aliases seen across export tools for one JSON entry.
type rawItem struct {
	ID        flexString `json:"id"`
	IDStr     string     `json:"id_str"`
	TweetID   flexString `json:"tweet_id"`
	Text      string     `json:"text"`
	FullText  string     `json:"full_text"`
	Content   string     `json:"content"`
	URL       string     `json:"url"`
	TweetURL  string     `json:"tweet_url"`
	CreatedAt string     `json:"created_at"`
	Timestamp string     `json:"timestamp"`

	AuthorName     string `json:"author_name"`
	AuthorUsername string `json:"author_username"`
	ScreenName     string `json:"screen_name"`
	User           struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		ScreenName  string `json:"screen_name"`
		Username    string `json:"username"`
	} `json:"user"`

	LikeCount     flexInt `json:"like_count"`
	FavoriteCount flexInt `json:"favorite_count"`
	RetweetCount  flexInt `json:"retweet_count"`
	ReplyCount    flexInt `json:"reply_count"`
	PublicMetrics struct {
		LikeCount    flexInt `json:"like_count"`
		RetweetCount flexInt `json:"retweet_count"`
		ReplyCount   flexInt `json:"reply_count"`
	} `json:"public_metrics"`
}

func parseJSON(data []byte) ([]core.Bookmark, int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}

	var bookmarks []core.Bookmark
	var skipped int
	for _, raw := range items {
		var item rawItem
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.Warn("Skipping malformed bookmark entry", "error", err.Error())
			skipped++
			continue
		}
		bm, ok := item.toBookmark()
		if !ok {
			skipped++
			continue
		}
		bookmarks = append(bookmarks, bm)
	}
	return bookmarks, skipped, nil
}

func (it rawItem) toBookmark() (core.Bookmark, bool) {
	id := firstNonEmpty(string(it.ID), it.IDStr, string(it.TweetID))
	if id == "" || id == "0" {
		return core.Bookmark{}, false
	}

	handle := firstNonEmpty(it.AuthorUsername, it.ScreenName, it.User.ScreenName, it.User.Username, "unknown")
	handle = strings.TrimPrefix(handle, "@")

	name := firstNonEmpty(it.AuthorName, it.User.Name, it.User.DisplayName, handle)

	url := firstNonEmpty(it.URL, it.TweetURL)
	if url == "" {
		url = fmt.Sprintf("https://x.com/%s/status/%s", handle, id)
	}

	return core.Bookmark{
		ID:           id,
		Text:         strings.TrimSpace(firstNonEmpty(it.Text, it.FullText, it.Content)),
		AuthorName:   name,
		AuthorHandle: handle,
		URL:          url,
		CreatedAt:    parseTime(firstNonEmpty(it.CreatedAt, it.Timestamp)),
		LikeCount:    firstCount(int(it.LikeCount), int(it.FavoriteCount), int(it.PublicMetrics.LikeCount)),
		RetweetCount: firstCount(int(it.RetweetCount), int(it.PublicMetrics.RetweetCount)),
		ReplyCount:   firstCount(int(it.ReplyCount), int(it.PublicMetrics.ReplyCount)),
	}, true
}

func parseCSV(data []byte) ([]core.Bookmark, int, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var bookmarks []core.Bookmark
	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed CSV row", "error", err.Error())
			skipped++
			continue
		}

		field := func(names ...string) string {
			for _, n := range names {
				if idx, ok := cols[n]; ok && idx < len(row) {
					if v := strings.TrimSpace(row[idx]); v != "" {
						return v
					}
				}
			}
			return ""
		}

		link := field("link", "url", "tweet_url")
		id := field("id", "tweet_id")
		if id == "" {
			id = extractStatusID(link)
		}
		if id == "" {
			skipped++
			continue
		}

		handle := strings.TrimPrefix(field("username", "screen_name", "author_username"), "@")
		if handle == "" {
			handle = "unknown"
		}
		name := field("displayname", "display_name", "name", "author_name")
		if name == "" {
			name = handle
		}
		if link == "" {
			link = fmt.Sprintf("https://x.com/%s/status/%s", handle, id)
		}

		bookmarks = append(bookmarks, core.Bookmark{
			ID:           id,
			Text:         field("text", "content"),
			AuthorName:   name,
			AuthorHandle: handle,
			URL:          link,
			CreatedAt:    parseTime(field("timestamp", "created_at", "createdat")),
			LikeCount:    atoi(field("like_count", "likes")),
			RetweetCount: atoi(field("retweet_count", "retweets")),
			ReplyCount:   atoi(field("reply_count", "replies")),
		})
	}
	return bookmarks, skipped, nil
}

// extractStatusID pulls the numeric post ID out of a /status/ URL.
func extractStatusID(url string) string {
	m := statusIDPattern.FindStringSubmatch(url)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	logger.Warn("Failed to parse timestamp", "value", value)
	return time.Time{}
}

func dedupeByID(bookmarks []core.Bookmark) []core.Bookmark {
	seen := make(map[string]bool, len(bookmarks))
	unique := bookmarks[:0]
	for _, bm := range bookmarks {
		if seen[bm.ID] {
			continue
		}
		seen[bm.ID] = true
		unique = append(unique, bm)
	}
	return unique
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" && v != "0" {
			return v
		}
	}
	return ""
}

func firstCount(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func atoi(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
