package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bookdigest/internal/config"
	"bookdigest/internal/cost"
	"bookdigest/internal/dedup"
	"bookdigest/internal/enrich"
	"bookdigest/internal/llm"
	"bookdigest/internal/loader"
	"bookdigest/internal/logger"
	"bookdigest/internal/messaging"
	"bookdigest/internal/pipeline"
	"bookdigest/internal/render"
	"bookdigest/internal/search"
	"bookdigest/internal/store"
	"bookdigest/internal/summarize"
)

// NewRunCmd creates the main digest run command
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [bookmarks-file]",
		Short: "Process a bookmark export and deliver a digest",
		Long: `Run the full digest pipeline against a bookmark export file:
load, dedup against past runs, enrich with web search, summarize in
batches, and deliver the categorized digest to Slack.

The input file defaults to input.bookmarks_file from configuration.

Examples:
  bookdigest run bookmarks.json
  bookdigest run --dry-run bookmarks.csv
  bookdigest run --no-cache --max-items 5 bookmarks.json
  bookdigest run --skip-enrich bookmarks.json`,
		Args: cobra.MaximumNArgs(1),
		Run:  runDigest,
	}

	cmd.Flags().Bool("dry-run", false, "Render the digest to the terminal instead of delivering it")
	cmd.Flags().Bool("no-cache", false, "Process every bookmark and commit nothing")
	cmd.Flags().Int("max-items", 0, "Cap on new bookmarks per run (0 uses config)")
	cmd.Flags().Bool("skip-enrich", false, "Skip web search enrichment")
	cmd.Flags().StringP("output", "o", "", "Also write the digest as markdown to this directory")

	return cmd
}

func runDigest(cmd *cobra.Command, args []string) {
	cfg := config.Get()

	inputFile := cfg.Input.BookmarksFile
	if len(args) > 0 {
		inputFile = args[0]
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	maxItems, _ := cmd.Flags().GetInt("max-items")
	skipEnrich, _ := cmd.Flags().GetBool("skip-enrich")
	outputDir, _ := cmd.Flags().GetString("output")

	if maxItems <= 0 {
		maxItems = cfg.Input.MaxItems
	}

	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Input file not found: %s\n", inputFile)
		os.Exit(1)
	}

	if !dryRun {
		if err := messaging.ValidateWebhookURL(cfg.Messaging.SlackWebhookURL); err != nil {
			fmt.Fprintf(os.Stderr, "Webhook configuration error: %v\n", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	p, archive, err := buildPipeline(ctx, cfg, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize pipeline: %v\n", err)
		os.Exit(1)
	}
	if archive != nil {
		defer func() {
			if err := archive.Close(); err != nil {
				logger.Error("Failed to close digest archive", err)
			}
		}()
	}

	startTime := time.Now()
	result, err := p.Run(ctx, pipeline.Options{
		InputFile:  inputFile,
		DryRun:     dryRun,
		NoCache:    noCache,
		MaxItems:   maxItems,
		SkipEnrich: skipEnrich,
	})
	if err != nil {
		logger.Error("Digest run failed", err,
			"loaded", result.Stats.Loaded,
			"new", result.Stats.New,
			"summarized", result.Stats.Summarized,
			"dropped", result.Stats.Dropped)
		os.Exit(1)
	}

	if dryRun && result.Digest.TotalCount > 0 {
		fmt.Print(render.Preview(result.Digest, result.Stats))
	}

	if outputDir != "" && result.Digest.TotalCount > 0 {
		path, err := render.WriteMarkdownDigest(result.Digest, outputDir)
		if err != nil {
			logger.Error("Failed to write markdown digest", err)
		} else {
			fmt.Printf("Markdown digest written to %s\n", path)
		}
	}

	if result.Digest.TotalCount > 0 {
		costModel := cfg.AI.Gemini.Model
		if len(result.Digest.ModelsUsed) == 1 {
			costModel = result.Digest.ModelsUsed[0]
		}
		logger.Info("Token usage",
			"input_tokens", result.Digest.Usage.InputTokens,
			"output_tokens", result.Digest.Usage.OutputTokens,
			"estimated_cost_usd", fmt.Sprintf("%.4f", cost.UsageCost(costModel, result.Digest.Usage)))
	}

	logger.Info("Done",
		"loaded", result.Stats.Loaded,
		"new", result.Stats.New,
		"summarized", result.Stats.Summarized,
		"dropped", result.Stats.Dropped,
		"delivered", result.Stats.Delivered,
		"elapsed", time.Since(startTime).Round(time.Millisecond).String())
}

// buildPipeline wires the run stages from configuration. The returned store
// is nil on dry runs, where nothing is archived.
func buildPipeline(ctx context.Context, cfg *config.Config, dryRun bool) (*pipeline.Pipeline, *store.Store, error) {
	cache := dedup.Load(cfg.Cache.ProcessedIDsFile, dedup.Options{
		MaxIDs:      cfg.Cache.MaxIDs,
		MaxFailures: cfg.Cache.MaxFailures,
	})

	var enricher pipeline.Enricher
	if cfg.Search.Enabled {
		provider, err := search.NewProvider(search.ProviderType(cfg.Search.Provider))
		if err != nil {
			return nil, nil, fmt.Errorf("search provider: %w", err)
		}
		enricher = enrich.New(provider, enrich.Options{
			MaxResults: cfg.Search.MaxResults,
			Timeout:    config.Duration(cfg.Search.Timeout, 15*time.Second),
			RateLimit:  config.Duration(cfg.Search.RateLimit, 1500*time.Millisecond),
		})
	}

	llmClient, err := llm.NewClient(ctx, llm.Options{
		APIKey:      cfg.AI.Gemini.APIKey,
		Timeout:     config.Duration(cfg.AI.Gemini.Timeout, 60*time.Second),
		MaxTokens:   cfg.AI.Gemini.MaxTokens,
		Temperature: cfg.AI.Gemini.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	summarizer := summarize.New(llmClient, summarize.Options{
		Model:            cfg.AI.Gemini.Model,
		LightModel:       cfg.AI.Gemini.LightModel,
		LikeThreshold:    cfg.AI.Gemini.LikeThreshold,
		BatchTokenBudget: cfg.Summarize.BatchTokenBudget,
		Concurrency:      cfg.Summarize.Concurrency,
		MaxAttempts:      cfg.Summarize.MaxAttempts,
		BackoffBase:      config.Duration(cfg.Summarize.BackoffBase, 2*time.Second),
		BackoffMax:       config.Duration(cfg.Summarize.BackoffMax, 30*time.Second),
	})

	notifier := messaging.NewClient(cfg.Messaging.SlackWebhookURL)
	if cfg.Messaging.Username != "" {
		notifier.Username = cfg.Messaging.Username
	}
	if cfg.Messaging.IconEmoji != "" {
		notifier.IconEmoji = cfg.Messaging.IconEmoji
	}
	notifier.HTTPClient.Timeout = config.Duration(cfg.Messaging.Timeout, 10*time.Second)

	var archive *store.Store
	var archiver pipeline.Archiver
	if !dryRun {
		archive, err = store.NewStore(cfg.App.DataDir)
		if err != nil {
			logger.Warn("Digest archive unavailable, continuing without it", "error", err.Error())
		} else {
			archiver = archive
		}
	}

	p := pipeline.New(
		pipeline.LoaderFunc(loader.Load),
		cache,
		enricher,
		summarizer,
		notifier,
		archiver,
	)
	return p, archive, nil
}
