package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"bookdigest/internal/core"
	"bookdigest/internal/cost"
	"bookdigest/internal/llm"
	"bookdigest/internal/logger"
)

// ModelCaller is the slice of the LLM client the summarizer needs.
type ModelCaller interface {
	GenerateStructured(ctx context.Context, model, prompt string, schema *genai.Schema) (string, core.TokenUsage, error)
}

// Options configures the Summarizer.
type Options struct {
	Model            string        // Strong model for high-signal records
	LightModel       string        // Cheaper model for the rest
	LikeThreshold    int           // Like count at which a record routes to the strong model
	BatchTokenBudget int           // Approximate input-token budget per batch
	Concurrency      int           // Concurrent in-flight batches
	MaxAttempts      int           // Attempts per model call on transient failures
	BackoffBase      time.Duration // First backoff delay
	BackoffMax       time.Duration // Backoff ceiling
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Model:            llm.DefaultModel,
		LightModel:       llm.DefaultLightModel,
		LikeThreshold:    500,
		BatchTokenBudget: 3000,
		Concurrency:      3,
		MaxAttempts:      3,
		BackoffBase:      2 * time.Second,
		BackoffMax:       30 * time.Second,
	}
}

// Result carries the summarizer stage output.
type Result struct {
	Records []core.SummarizedBookmark // Summarized records in input order
	Dropped []string                  // IDs that failed summarization permanently this run
	Usage   core.TokenUsage           // Total token consumption
	Models  []string                  // Distinct models used, sorted
}

// Summarizer converts enriched bookmarks into summarized ones via batched
// model calls with bounded retries.
type Summarizer struct {
	client ModelCaller
	opts   Options

	mu     sync.Mutex
	usage  core.TokenUsage
	models map[string]bool

	// sleep is replaceable in tests to avoid real backoff delays.
	sleep func(context.Context, time.Duration) error
}

// New creates a Summarizer.
func New(client ModelCaller, opts Options) *Summarizer {
	def := DefaultOptions()
	if opts.Model == "" {
		opts.Model = def.Model
	}
	if opts.LightModel == "" {
		opts.LightModel = def.LightModel
	}
	if opts.LikeThreshold <= 0 {
		opts.LikeThreshold = def.LikeThreshold
	}
	if opts.BatchTokenBudget <= 0 {
		opts.BatchTokenBudget = def.BatchTokenBudget
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = def.BackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = def.BackoffMax
	}
	return &Summarizer{
		client: client,
		opts:   opts,
		models: make(map[string]bool),
		sleep:  sleepCtx,
	}
}

// RouteModel picks the model for a record. Pure function of record
// attributes: high-engagement records get the strong model.
func (s *Summarizer) RouteModel(rec core.EnrichedBookmark) string {
	if rec.LikeCount >= s.opts.LikeThreshold {
		return s.opts.Model
	}
	return s.opts.LightModel
}

// batch is one model call's worth of records, all routed to the same model.
type batch struct {
	model   string
	records []core.EnrichedBookmark
}

// modelEntry is one record's entry in a parsed model response.
type modelEntry struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Summary    string `json:"summary"`
	Commentary string `json:"commentary"`
}

// SummarizeAll processes all records. Transient model failures are retried
// with exponential backoff and jitter; fatal failures (auth, malformed
// request) abort the run. Records missing from a batch response are retried
// once as singleton batches, then reported in Dropped.
func (s *Summarizer) SummarizeAll(ctx context.Context, records []core.EnrichedBookmark) (Result, error) {
	if len(records) == 0 {
		return Result{}, nil
	}

	batches := s.makeBatches(records)
	logger.Info("Summarizing bookmarks", "records", len(records), "batches", len(batches))

	entries, err := s.runBatches(ctx, batches)
	if err != nil {
		return Result{}, err
	}

	// Retry IDs the model skipped as singleton batches, once.
	var retries []batch
	for _, rec := range records {
		if _, ok := entries[rec.ID]; !ok {
			logger.Warn("Model response missing bookmark, retrying as singleton", "id", rec.ID)
			retries = append(retries, batch{model: s.RouteModel(rec), records: []core.EnrichedBookmark{rec}})
		}
	}
	if len(retries) > 0 {
		retryEntries, err := s.runBatches(ctx, retries)
		if err != nil {
			return Result{}, err
		}
		for id, e := range retryEntries {
			entries[id] = e
		}
	}

	result := Result{Usage: s.totalUsage(), Models: s.modelsUsed()}
	for _, rec := range records {
		entry, ok := entries[rec.ID]
		if !ok {
			logger.Warn("Bookmark failed summarization, excluded from digest", "id", rec.ID)
			result.Dropped = append(result.Dropped, rec.ID)
			continue
		}
		result.Records = append(result.Records, core.SummarizedBookmark{
			EnrichedBookmark: rec,
			Category:         core.NormalizeCategory(entry.Category),
			Summary:          entry.Summary,
			Commentary:       entry.Commentary,
			ModelUsed:        s.RouteModel(rec),
		})
	}
	return result, nil
}

// makeBatches groups records by routed model, then splits each group under
// the approximate token budget. A single oversized record occupies a batch
// alone. Input order is preserved within each model group.
func (s *Summarizer) makeBatches(records []core.EnrichedBookmark) []batch {
	const perRecordOverhead = 50

	var batches []batch
	current := make(map[string]*batch)
	budgets := make(map[string]int)

	flush := func(model string) {
		if b := current[model]; b != nil && len(b.records) > 0 {
			batches = append(batches, *b)
		}
		current[model] = &batch{model: model}
		budgets[model] = 0
	}

	for _, rec := range records {
		model := s.RouteModel(rec)
		if current[model] == nil {
			current[model] = &batch{model: model}
		}
		tokens := cost.EstimateTokenCount(truncate(rec.Text, maxTextLen)) + perRecordOverhead
		for _, link := range rec.RelatedLinks {
			tokens += cost.EstimateTokenCount(link.Snippet)
		}

		if len(current[model].records) > 0 && budgets[model]+tokens > s.opts.BatchTokenBudget {
			flush(model)
		}
		current[model].records = append(current[model].records, rec)
		budgets[model] += tokens
	}
	for model := range current {
		flush(model)
	}

	// Deterministic batch order: input order within a model group is already
	// kept; order groups strong-model first for stable scheduling.
	sort.SliceStable(batches, func(i, j int) bool {
		if batches[i].model != batches[j].model {
			return batches[i].model == s.opts.Model
		}
		return false
	})
	return batches
}

// runBatches dispatches batches concurrently up to the configured limit and
// reassembles responses keyed by record ID, independent of completion order.
func (s *Summarizer) runBatches(parent context.Context, batches []batch) (map[string]modelEntry, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sem := make(chan struct{}, s.opts.Concurrency)
	results := make([]map[string]modelEntry, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, b := range batches {
		wg.Add(1)
		go func(i int, b batch) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			entries, err := s.callWithRetry(ctx, b)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			results[i] = entries
		}(i, b)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]modelEntry)
	for _, entries := range results {
		for id, e := range entries {
			merged[id] = e
		}
	}
	return merged, nil
}

// callWithRetry performs one batch call with the bounded-attempt retry loop.
// Only transient failure classes are retried.
func (s *Summarizer) callWithRetry(ctx context.Context, b batch) (map[string]modelEntry, error) {
	prompt := BuildBatchPrompt(b.records)
	schema := ResponseSchema()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		text, usage, err := s.client.GenerateStructured(ctx, b.model, prompt, schema)
		s.addUsage(b.model, usage)
		if err == nil {
			return s.parseEntries(text, b), nil
		}

		if llm.Classify(err) == llm.ErrorFatal {
			return nil, fmt.Errorf("model call failed permanently: %w", err)
		}
		lastErr = err
		if attempt == s.opts.MaxAttempts {
			break
		}

		delay := backoffDelay(s.opts.BackoffBase, s.opts.BackoffMax, attempt)
		logger.Warn("Transient model failure, backing off",
			"model", b.model, "attempt", attempt, "max_attempts", s.opts.MaxAttempts,
			"delay", delay.String(), "error", err.Error())
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model call failed after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

// parseEntries decodes and validates the structured response. Entries with
// unknown IDs are discarded; missing IDs surface through the caller's
// completeness check.
func (s *Summarizer) parseEntries(text string, b batch) map[string]modelEntry {
	var parsed []modelEntry
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		logger.Warn("Failed to parse model response", "model", b.model, "error", err.Error())
		return map[string]modelEntry{}
	}

	valid := make(map[string]bool, len(b.records))
	for _, rec := range b.records {
		valid[rec.ID] = true
	}

	entries := make(map[string]modelEntry, len(parsed))
	for _, e := range parsed {
		if e.ID == "" || !valid[e.ID] || e.Summary == "" {
			continue
		}
		entries[e.ID] = e
	}
	return entries
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

func (s *Summarizer) addUsage(model string, usage core.TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.Add(usage)
	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		s.models[model] = true
	}
}

func (s *Summarizer) totalUsage() core.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *Summarizer) modelsUsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := make([]string, 0, len(s.models))
	for m := range s.models {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// backoffDelay computes exponential backoff with jitter in [50%, 100%] of
// the exponential value, capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay > max {
		delay = max
	}
	jittered := delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
	return jittered
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
