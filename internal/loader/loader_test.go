package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoad_JSONSimpleShape(t *testing.T) {
	path := writeTemp(t, "bookmarks.json", `[
		{"id": "101", "text": "Hello world", "author_username": "@alice", "author_name": "Alice", "like_count": 42},
		{"id_str": "102", "full_text": "Second post", "user": {"screen_name": "bob", "name": "Bob"}, "public_metrics": {"like_count": 7}}
	]`)

	bookmarks, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected 0 skipped, got %d", skipped)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("Expected 2 bookmarks, got %d", len(bookmarks))
	}

	first := bookmarks[0]
	if first.ID != "101" {
		t.Errorf("Expected ID 101, got %s", first.ID)
	}
	if first.AuthorHandle != "alice" {
		t.Errorf("Expected handle without @, got %q", first.AuthorHandle)
	}
	if first.LikeCount != 42 {
		t.Errorf("Expected 42 likes, got %d", first.LikeCount)
	}

	second := bookmarks[1]
	if second.ID != "102" {
		t.Errorf("Expected ID 102, got %s", second.ID)
	}
	if second.AuthorHandle != "bob" {
		t.Errorf("Expected handle bob, got %q", second.AuthorHandle)
	}
	if second.LikeCount != 7 {
		t.Errorf("Expected 7 likes from public_metrics, got %d", second.LikeCount)
	}
	if second.URL == "" {
		t.Error("Expected URL to be constructed from handle and ID")
	}
}

func TestLoad_JSONNumericIDs(t *testing.T) {
	path := writeTemp(t, "bookmarks.json", `[{"id": 12345, "text": "numeric id", "screen_name": "carol"}]`)

	bookmarks, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bookmarks) != 1 || bookmarks[0].ID != "12345" {
		t.Fatalf("Expected single bookmark with ID 12345, got %+v", bookmarks)
	}
}

func TestLoad_JSONSkipsEntriesWithoutID(t *testing.T) {
	path := writeTemp(t, "bookmarks.json", `[
		{"text": "no id here"},
		{"id": "5", "text": "valid"}
	]`)

	bookmarks, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bookmarks) != 1 {
		t.Errorf("Expected 1 bookmark, got %d", len(bookmarks))
	}
	if skipped != 1 {
		t.Errorf("Expected 1 skipped entry, got %d", skipped)
	}
}

func TestLoad_JSONDuplicateIDs(t *testing.T) {
	path := writeTemp(t, "bookmarks.json", `[
		{"id": "1", "text": "first"},
		{"id": "1", "text": "drifted copy"},
		{"id": "2", "text": "other"}
	]`)

	bookmarks, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("Expected duplicates removed, got %d bookmarks", len(bookmarks))
	}
	if bookmarks[0].Text != "first" {
		t.Errorf("Expected first occurrence to win, got %q", bookmarks[0].Text)
	}
}

func TestLoad_CSVExporterShape(t *testing.T) {
	path := writeTemp(t, "bookmarks.csv", "Text,DisplayName,Username,Timestamp,Link\n"+
		"\"A post about Go\",Alice,@alice,2024-05-01T10:00:00Z,https://x.com/alice/status/111\n"+
		"\"Another post\",Bob,bob,,https://x.com/bob/status/222\n")

	bookmarks, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if skipped != 0 {
		t.Errorf("Expected 0 skipped, got %d", skipped)
	}
	if len(bookmarks) != 2 {
		t.Fatalf("Expected 2 bookmarks, got %d", len(bookmarks))
	}
	if bookmarks[0].ID != "111" {
		t.Errorf("Expected ID extracted from link, got %s", bookmarks[0].ID)
	}
	if bookmarks[0].AuthorHandle != "alice" {
		t.Errorf("Expected @ stripped, got %q", bookmarks[0].AuthorHandle)
	}
	if bookmarks[0].CreatedAt.IsZero() {
		t.Error("Expected timestamp parsed")
	}
	if !bookmarks[1].CreatedAt.IsZero() {
		t.Error("Expected zero time for missing timestamp")
	}
}

func TestLoad_CSVMalformedRowAmongValid(t *testing.T) {
	// One row with broken quoting among valid rows: loaded rows survive,
	// the bad row is counted, never fatal.
	var rows string
	rows = "Text,DisplayName,Username,Timestamp,Link\n"
	for i := 0; i < 10; i++ {
		rows += "\"ok\",Name,user,,https://x.com/user/status/" + string(rune('0'+i)) + "00\n"
	}
	rows += "\"broken \"quote,Name,user,,https://x.com/user/status/999\n"

	path := writeTemp(t, "bookmarks.csv", rows)
	bookmarks, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not be fatal on a malformed row: %v", err)
	}
	if len(bookmarks) != 10 {
		t.Errorf("Expected 10 valid bookmarks, got %d", len(bookmarks))
	}
	if skipped < 1 {
		t.Errorf("Expected at least 1 skipped row, got %d", skipped)
	}
}

func TestLoad_CSVContentInJSONFile(t *testing.T) {
	// Content sniffing: CSV data under a .json name still loads.
	path := writeTemp(t, "bookmarks.json", "Text,Username,Link\npost,carol,https://x.com/carol/status/333\n")

	bookmarks, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bookmarks) != 1 || bookmarks[0].ID != "333" {
		t.Fatalf("Expected CSV fallback parse, got %+v", bookmarks)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeTemp(t, "bookmarks.json", "")

	bookmarks, skipped, err := Load(path)
	if err != nil {
		t.Fatalf("Load of empty file should not fail: %v", err)
	}
	if len(bookmarks) != 0 || skipped != 0 {
		t.Errorf("Expected empty result, got %d bookmarks, %d skipped", len(bookmarks), skipped)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoad_UnparsableInput(t *testing.T) {
	// A JSON object (not an array) is not a recognized export shape.
	path := writeTemp(t, "bookmarks.json", `{"not": "an array"}`)

	_, _, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for unrecognized format")
	}
}

func TestExtractStatusID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x.com/user/status/12345", "12345"},
		{"https://twitter.com/a/status/9?s=20", "9"},
		{"https://x.com/user", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := extractStatusID(tt.url); got != tt.want {
			t.Errorf("extractStatusID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
