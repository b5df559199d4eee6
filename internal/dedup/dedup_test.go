package dedup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bookdigest/internal/core"
)

func cachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "processed_ids.json")
}

func bookmarks(ids ...string) []core.Bookmark {
	out := make([]core.Bookmark, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Bookmark{ID: id})
	}
	return out
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	c := Load(cachePath(t), Options{})
	if c.Size() != 0 {
		t.Errorf("Expected empty cache, got %d IDs", c.Size())
	}
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	path := cachePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	c := Load(path, Options{})
	if c.Size() != 0 {
		t.Errorf("Expected empty cache for corrupt file, got %d IDs", c.Size())
	}
}

func TestFilterNew(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{})
	if err := c.Commit([]string{"1", "2"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	fresh := c.FilterNew(bookmarks("1", "2", "3", "4", "5"))
	if len(fresh) != 3 {
		t.Fatalf("Expected 3 new records, got %d", len(fresh))
	}
	if fresh[0].ID != "3" || fresh[1].ID != "4" || fresh[2].ID != "5" {
		t.Errorf("Expected order preserved, got %+v", fresh)
	}
}

func TestCommit_PersistsAcrossLoads(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{})
	if err := c.Commit([]string{"10", "11"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	reloaded := Load(path, Options{})
	if !reloaded.Contains("10") || !reloaded.Contains("11") {
		t.Error("Expected committed IDs to survive reload")
	}

	// Dedup invariant: reloading the same input never reintroduces them.
	fresh := reloaded.FilterNew(bookmarks("10", "11"))
	if len(fresh) != 0 {
		t.Errorf("Expected 0 new records on second run, got %d", len(fresh))
	}
}

func TestCommit_CapsAtNewestIDs(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{MaxIDs: 3})
	if err := c.Commit([]string{"9", "10", "2", "100", "50"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	reloaded := Load(path, Options{MaxIDs: 3})
	if reloaded.Size() != 3 {
		t.Fatalf("Expected cap of 3 IDs, got %d", reloaded.Size())
	}
	// Numeric ordering: 100, 50, 10 survive; 9 and 2 are dropped.
	for _, id := range []string{"100", "50", "10"} {
		if !reloaded.Contains(id) {
			t.Errorf("Expected newest ID %s retained", id)
		}
	}
	if reloaded.Contains("9") || reloaded.Contains("2") {
		t.Error("Expected oldest IDs dropped by cap")
	}
}

func TestCrashSafety_FileUnchangedWithoutCommit(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{})
	if err := c.Commit([]string{"1", "2"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a run that loads, filters, then crashes before Commit.
	crashed := Load(path, Options{})
	_ = crashed.FilterNew(bookmarks("3", "4"))

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("Cache file must be byte-identical when no commit happened")
	}
}

func TestRecordFailure_PoisonPolicy(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{MaxFailures: 3})

	if c.RecordFailure("bad") {
		t.Error("First failure should not exhaust the budget")
	}
	if c.RecordFailure("bad") {
		t.Error("Second failure should not exhaust the budget")
	}
	if !c.RecordFailure("bad") {
		t.Error("Third failure should exhaust the budget")
	}
}

func TestRecordFailure_PersistsAcrossRuns(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{MaxFailures: 2})
	c.RecordFailure("poison")
	if err := c.Commit([]string{"1"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	reloaded := Load(path, Options{MaxFailures: 2})
	if reloaded.PendingFailures() != 1 {
		t.Fatalf("Expected 1 pending failure after reload, got %d", reloaded.PendingFailures())
	}
	if !reloaded.RecordFailure("poison") {
		t.Error("Expected budget exhausted on second run")
	}
}

func TestCommit_ClearsAttempts(t *testing.T) {
	c := Load(cachePath(t), Options{})
	c.RecordFailure("5")
	if err := c.Commit([]string{"5"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if c.PendingFailures() != 0 {
		t.Errorf("Expected attempts cleared for committed ID, got %d", c.PendingFailures())
	}
}

func TestAcquire_RefusesConcurrentRun(t *testing.T) {
	path := cachePath(t)
	first := Load(path, Options{})
	if err := first.Acquire(); err != nil {
		t.Fatalf("First Acquire failed: %v", err)
	}
	defer first.Release()

	second := Load(path, Options{})
	err := second.Acquire()
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
}

func TestAcquire_ReleaseAllowsNextRun(t *testing.T) {
	path := cachePath(t)
	first := Load(path, Options{})
	if err := first.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first.Release()

	second := Load(path, Options{})
	if err := second.Acquire(); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	second.Release()
}

func TestReset(t *testing.T) {
	path := cachePath(t)
	c := Load(path, Options{})
	if err := c.Commit([]string{"1"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("Expected empty cache after reset, got %d", c.Size())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected cache file removed by reset")
	}
}
