package digest

import (
	"testing"
	"time"

	"bookdigest/internal/core"
)

func summarized(id, category string, likes int) core.SummarizedBookmark {
	return core.SummarizedBookmark{
		EnrichedBookmark: core.EnrichedBookmark{
			Bookmark: core.Bookmark{ID: id, LikeCount: likes},
		},
		Category: category,
		Summary:  "summary " + id,
	}
}

func TestAssemble_SectionsInPriorityOrder(t *testing.T) {
	records := []core.SummarizedBookmark{
		summarized("1", core.CategoryCulture, 5),
		summarized("2", core.CategoryTech, 10),
		summarized("3", core.CategoryBusiness, 3),
		summarized("4", core.CategoryTech, 7),
	}

	d := Assemble(records, nil, core.TokenUsage{}, nil, time.Now())

	want := []string{core.CategoryTech, core.CategoryBusiness, core.CategoryCulture}
	if len(d.Sections) != len(want) {
		t.Fatalf("Expected %d sections, got %d", len(want), len(d.Sections))
	}
	for i, cat := range want {
		if d.Sections[i].Category != cat {
			t.Errorf("Section %d: expected %q, got %q", i, cat, d.Sections[i].Category)
		}
	}
	if d.TotalCount != 4 {
		t.Errorf("Expected total count 4, got %d", d.TotalCount)
	}
}

func TestAssemble_LikeCountDescendingStable(t *testing.T) {
	records := []core.SummarizedBookmark{
		summarized("a", core.CategoryTech, 5),
		summarized("b", core.CategoryTech, 20),
		summarized("c", core.CategoryTech, 5),
	}

	d := Assemble(records, nil, core.TokenUsage{}, nil, time.Now())

	got := d.Sections[0].Bookmarks
	wantOrder := []string{"b", "a", "c"} // ties keep input order
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestAssemble_UnknownCategoryFallsBack(t *testing.T) {
	records := []core.SummarizedBookmark{
		summarized("1", "Made Up Category", 0),
		summarized("2", "", 0),
	}

	d := Assemble(records, nil, core.TokenUsage{}, nil, time.Now())

	if len(d.Sections) != 1 || d.Sections[0].Category != core.CategoryUncategorized {
		t.Fatalf("Expected single uncategorized section, got %+v", d.Sections)
	}
	for _, b := range d.Sections[0].Bookmarks {
		if b.Category != core.CategoryUncategorized {
			t.Errorf("Record %s: category not normalized, got %q", b.ID, b.Category)
		}
	}
}

func TestAssemble_FlattenRoundTrip(t *testing.T) {
	records := []core.SummarizedBookmark{
		summarized("1", core.CategoryNews, 1),
		summarized("2", core.CategoryTech, 2),
		summarized("3", core.CategoryNews, 3),
		summarized("4", core.CategoryLearning, 4),
	}

	d := Assemble(records, []string{"5"}, core.TokenUsage{InputTokens: 10}, []string{"m"}, time.Now())

	flat := d.Flatten()
	if len(flat) != len(records) {
		t.Fatalf("Flatten lost records: expected %d, got %d", len(records), len(flat))
	}
	seen := make(map[string]bool)
	for _, b := range flat {
		if seen[b.ID] {
			t.Errorf("Duplicate ID %s after flatten", b.ID)
		}
		seen[b.ID] = true
	}
	for _, rec := range records {
		if !seen[rec.ID] {
			t.Errorf("Record %s missing after assemble/flatten", rec.ID)
		}
	}
	if d.DroppedCount != 1 {
		t.Errorf("Expected dropped count 1, got %d", d.DroppedCount)
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	d := Assemble(nil, nil, core.TokenUsage{}, nil, time.Now())
	if d.TotalCount != 0 || len(d.Sections) != 0 {
		t.Errorf("Expected empty digest, got %+v", d)
	}
	if d.ID == "" {
		t.Error("Expected digest ID assigned even when empty")
	}
}
