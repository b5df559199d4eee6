package store

import (
	"testing"
	"time"

	"bookdigest/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDigest(id string, date time.Time, total int) core.Digest {
	return core.Digest{
		ID:         id,
		Date:       date,
		TotalCount: total,
		Sections: []core.DigestSection{
			{
				Category: core.CategoryTech,
				Bookmarks: []core.SummarizedBookmark{
					{
						EnrichedBookmark: core.EnrichedBookmark{
							Bookmark: core.Bookmark{ID: id + "-b1", Text: "post"},
						},
						Category: core.CategoryTech,
						Summary:  "a summary",
					},
				},
			},
		},
		Usage:      core.TokenUsage{InputTokens: 100, OutputTokens: 40},
		ModelsUsed: []string{"gemini-2.5-flash"},
	}
}

func TestSaveAndGetDigest(t *testing.T) {
	s := newTestStore(t)

	d := testDigest("d1", time.Now().UTC(), 1)
	if err := s.SaveDigest(d); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	got, delivered, err := s.GetDigest("d1")
	if err != nil {
		t.Fatalf("GetDigest failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected digest, got nil")
	}
	if delivered {
		t.Error("Fresh digest should not be marked delivered")
	}
	if got.TotalCount != 1 || len(got.Sections) != 1 {
		t.Errorf("Digest round-trip lost data: %+v", got)
	}
	if got.Sections[0].Bookmarks[0].Summary != "a summary" {
		t.Errorf("Bookmark summary lost: %+v", got.Sections[0].Bookmarks[0])
	}
}

func TestGetDigest_Missing(t *testing.T) {
	s := newTestStore(t)

	got, _, err := s.GetDigest("nope")
	if err != nil {
		t.Fatalf("GetDigest failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing digest, got %+v", got)
	}
}

func TestMarkDelivered(t *testing.T) {
	s := newTestStore(t)

	d := testDigest("d1", time.Now().UTC(), 1)
	if err := s.SaveDigest(d); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	if err := s.MarkDelivered("d1"); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	_, delivered, err := s.GetDigest("d1")
	if err != nil {
		t.Fatalf("GetDigest failed: %v", err)
	}
	if !delivered {
		t.Error("Expected digest marked delivered")
	}

	if err := s.MarkDelivered("missing"); err == nil {
		t.Error("Expected error marking unknown digest delivered")
	}
}

func TestGetLatestDigest(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.SaveDigest(testDigest(id, base.AddDate(0, 0, i), 1)); err != nil {
			t.Fatalf("SaveDigest failed: %v", err)
		}
	}

	got, _, err := s.GetLatestDigest()
	if err != nil {
		t.Fatalf("GetLatestDigest failed: %v", err)
	}
	if got == nil || got.ID != "new" {
		t.Errorf("Expected latest digest 'new', got %+v", got)
	}
}

func TestListDigests(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d := testDigest(time.Duration(i).String(), base.AddDate(0, 0, i), i+1)
		if err := s.SaveDigest(d); err != nil {
			t.Fatalf("SaveDigest failed: %v", err)
		}
	}

	records, err := s.ListDigests(3)
	if err != nil {
		t.Fatalf("ListDigests failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if !records[0].Date.After(records[1].Date) {
		t.Error("Expected newest-first ordering")
	}
}

func TestGetArchiveStats(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDigest(testDigest("d1", time.Now().UTC(), 3)); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}
	if err := s.SaveDigest(testDigest("d2", time.Now().UTC(), 2)); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}
	if err := s.MarkDelivered("d1"); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	stats, err := s.GetArchiveStats()
	if err != nil {
		t.Fatalf("GetArchiveStats failed: %v", err)
	}
	if stats.DigestCount != 2 {
		t.Errorf("Expected 2 digests, got %d", stats.DigestCount)
	}
	if stats.UndeliveredCount != 1 {
		t.Errorf("Expected 1 undelivered, got %d", stats.UndeliveredCount)
	}
	if stats.TotalBookmarks != 5 {
		t.Errorf("Expected 5 total bookmarks, got %d", stats.TotalBookmarks)
	}
}

func TestClearArchive(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDigest(testDigest("d1", time.Now().UTC(), 1)); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}
	if err := s.ClearArchive(); err != nil {
		t.Fatalf("ClearArchive failed: %v", err)
	}

	stats, err := s.GetArchiveStats()
	if err != nil {
		t.Fatalf("GetArchiveStats failed: %v", err)
	}
	if stats.DigestCount != 0 {
		t.Errorf("Expected empty archive, got %d digests", stats.DigestCount)
	}
}

func TestCleanupOldDigests(t *testing.T) {
	s := newTestStore(t)

	old := testDigest("old", time.Now().UTC().Add(-72*time.Hour), 1)
	fresh := testDigest("fresh", time.Now().UTC(), 1)
	if err := s.SaveDigest(old); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}
	if err := s.SaveDigest(fresh); err != nil {
		t.Fatalf("SaveDigest failed: %v", err)
	}

	if err := s.CleanupOldDigests(24 * time.Hour); err != nil {
		t.Fatalf("CleanupOldDigests failed: %v", err)
	}

	got, _, err := s.GetDigest("old")
	if err != nil {
		t.Fatalf("GetDigest failed: %v", err)
	}
	if got != nil {
		t.Error("Expected old digest removed")
	}
	got, _, err = s.GetDigest("fresh")
	if err != nil {
		t.Fatalf("GetDigest failed: %v", err)
	}
	if got == nil {
		t.Error("Expected fresh digest retained")
	}
}
