package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"bookdigest/internal/core"
	"bookdigest/internal/logger"
)

// ErrLocked is returned when another run holds the cache lock.
var ErrLocked = errors.New("cache is locked by another run")

const staleLockAge = 24 * time.Hour

// probeSignal checks process existence without affecting it.
var probeSignal = syscall.Signal(0)

// Cache is the single-writer persisted set of bookmark IDs already included
// in a past digest, plus per-ID summarization failure counts. IDs are only
// ever removed by an explicit Reset.
type Cache struct {
	path        string
	ids         map[string]bool
	attempts    map[string]int
	maxIDs      int
	maxFailures int
	locked      bool
}

// fileFormat is the on-disk JSON shape.
type fileFormat struct {
	IDs      []string       `json:"ids"`
	Attempts map[string]int `json:"attempts,omitempty"`
}

// Options configures cache limits.
type Options struct {
	MaxIDs      int // Newest IDs kept on commit; 0 means default 100000
	MaxFailures int // Failed runs before an ID is written off as processed; 0 means default 3
}

// Load reads the cache file at path. A missing or corrupt file initializes an
// empty cache with a warning rather than failing.
func Load(path string, opts Options) *Cache {
	c := &Cache{
		path:        path,
		ids:         make(map[string]bool),
		attempts:    make(map[string]int),
		maxIDs:      opts.MaxIDs,
		maxFailures: opts.MaxFailures,
	}
	if c.maxIDs <= 0 {
		c.maxIDs = 100000
	}
	if c.maxFailures <= 0 {
		c.maxFailures = 3
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("No processed IDs file found, starting empty", "path", path)
		} else {
			logger.Warn("Failed to read processed IDs file, starting empty", "path", path, "error", err.Error())
		}
		return c
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logger.Warn("Corrupt processed IDs file, starting empty", "path", path, "error", err.Error())
		return c
	}

	for _, id := range ff.IDs {
		c.ids[id] = true
	}
	for id, n := range ff.Attempts {
		c.attempts[id] = n
	}
	logger.Info("Loaded processed IDs", "path", path, "count", len(c.ids))
	return c
}

// Acquire takes the advisory lock for this run. A second concurrent run
// against the same cache file fails with ErrLocked. A stale lock left behind
// by a dead process is replaced with a warning.
func (c *Cache) Acquire() error {
	lockPath := c.lockPath()
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
		if cerr := f.Close(); cerr != nil {
			return fmt.Errorf("failed to write lock file: %w", cerr)
		}
		c.locked = true
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file %s: %w", lockPath, err)
	}

	if c.lockIsStale(lockPath) {
		logger.Warn("Replacing stale cache lock", "path", lockPath)
		if err := os.Remove(lockPath); err != nil {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
		return c.Acquire()
	}
	return fmt.Errorf("%w (lock file: %s)", ErrLocked, lockPath)
}

// Release drops the advisory lock if held.
func (c *Cache) Release() {
	if !c.locked {
		return
	}
	if err := os.Remove(c.lockPath()); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove lock file", "path", c.lockPath(), "error", err.Error())
	}
	c.locked = false
}

func (c *Cache) lockPath() string {
	return c.path + ".lock"
}

// lockIsStale reports whether the lock belongs to a process that no longer
// exists or is older than staleLockAge.
func (c *Cache) lockIsStale(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > staleLockAge {
		return true
	}
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil || pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return proc.Signal(probeSignal) != nil
}

// Contains reports whether an ID has already been processed.
func (c *Cache) Contains(id string) bool {
	return c.ids[id]
}

// FilterNew returns only records whose ID is absent from the cache,
// preserving input order.
func (c *Cache) FilterNew(records []core.Bookmark) []core.Bookmark {
	var fresh []core.Bookmark
	for _, r := range records {
		if !c.ids[r.ID] {
			fresh = append(fresh, r)
		}
	}
	if skipped := len(records) - len(fresh); skipped > 0 {
		logger.Info("Skipping already processed bookmarks", "count", skipped)
	}
	return fresh
}

// RecordFailure increments the summarization failure count for an ID and
// reports whether the ID has exhausted its retry budget. Exhausted IDs should
// be committed as processed to stop a poison record from retrying forever.
func (c *Cache) RecordFailure(id string) bool {
	c.attempts[id]++
	if c.attempts[id] >= c.maxFailures {
		logger.Warn("Bookmark exhausted summarization retries, writing off as processed",
			"id", id, "attempts", c.attempts[id])
		return true
	}
	return false
}

// Commit merges the given IDs into the set and persists atomically: the new
// content is written to a temp file in the same directory and renamed over
// the old one. Any failure before the rename leaves the previous file
// untouched. Attempt counts for committed IDs are cleared.
func (c *Cache) Commit(ids []string) error {
	for _, id := range ids {
		c.ids[id] = true
		delete(c.attempts, id)
	}

	all := make([]string, 0, len(c.ids))
	for id := range c.ids {
		all = append(all, id)
	}
	// Numeric-descending sort keeps the newest post IDs when capping; string
	// sort would order "9" after "10".
	sort.Slice(all, func(i, j int) bool {
		return numericValue(all[i]) > numericValue(all[j])
	})
	if len(all) > c.maxIDs {
		for _, dropped := range all[c.maxIDs:] {
			delete(c.ids, dropped)
		}
		all = all[:c.maxIDs]
	}

	// Attempts only persist for IDs still pending.
	attempts := make(map[string]int, len(c.attempts))
	for id, n := range c.attempts {
		if !c.ids[id] {
			attempts[id] = n
		}
	}

	data, err := json.MarshalIndent(fileFormat{IDs: all, Attempts: attempts}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal processed IDs: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".processed_ids-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	logger.Info("Committed processed IDs", "path", c.path, "total", len(all), "added", len(ids))
	return nil
}

// Size returns the number of processed IDs currently in the cache.
func (c *Cache) Size() int {
	return len(c.ids)
}

// PendingFailures returns the number of IDs with recorded summarization
// failures that have not yet been written off.
func (c *Cache) PendingFailures() int {
	return len(c.attempts)
}

// Reset removes the cache file and empties the in-memory set. This is the
// only path that ever removes processed IDs.
func (c *Cache) Reset() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	c.ids = make(map[string]bool)
	c.attempts = make(map[string]int)
	logger.Info("Processed ID cache reset", "path", c.path)
	return nil
}

func numericValue(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}
