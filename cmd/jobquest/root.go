package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alwinjoseph/jobquest/internal/ai"
	"github.com/alwinjoseph/jobquest/internal/config"
	"github.com/alwinjoseph/jobquest/internal/evaluator"
	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/notifier"
	"github.com/alwinjoseph/jobquest/internal/ratelimit"
	"github.com/alwinjoseph/jobquest/internal/retry"
	"github.com/alwinjoseph/jobquest/internal/source"
	"github.com/alwinjoseph/jobquest/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobquest",
	Short: "Job alert watcher — hear about new postings first",
	Long:  "JobQuest crawls job-board search results on a schedule and notifies you once per genuinely new posting matching your alerts.",
	// Default to `start` so that `jobquest` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBQUEST_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBQUEST_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBQUEST_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "telegram":
		logger.Info("using telegram notifier")
		httpClient := &http.Client{Timeout: 30 * time.Second}
		return notifier.NewTelegramNotifier(notifier.DefaultTelegramBaseURL, cfg.Notification.BotToken, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// setupClassifier wires the configured LLM provider, or a no-op filter
// when classification is disabled.
func setupClassifier(cfg *config.Config, logger *slog.Logger) model.RelevanceFilter {
	if !cfg.AI.Enabled {
		return ai.NewNopFilter()
	}

	httpClient := &http.Client{Timeout: cfg.AI.Timeout}
	var provider ai.LLMProvider
	switch cfg.AI.Provider {
	case "openai":
		provider = ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	default:
		provider = ai.NewGeminiProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, httpClient)
	}
	logger.Info("using llm classifier", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	return ai.NewRelevanceClassifier(provider, ai.RelevanceTemplate, ratelimit.NewPacer(cfg.AI.BatchDelay), logger)
}

// buildCrawler assembles the page fetcher with retry and politeness pacing.
func buildCrawler(cfg *config.Config, logger *slog.Logger) *source.Crawler {
	baseURL := cfg.Source.BaseURL
	if baseURL == "" {
		baseURL = source.DefaultBaseURL
	}

	var fetcher source.PageFetcher = source.NewHTTPPageFetcher(baseURL, &http.Client{Timeout: cfg.Source.Timeout})
	fetcher = retry.NewPageFetcher(fetcher, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger)

	return source.NewCrawler(fetcher, ratelimit.NewPacer(cfg.Source.PageDelay), logger)
}

// buildEvaluator assembles the per-alert pipeline. Ledger, alert store, and
// notifier are passed in so dry-run mode can substitute non-persisting ones.
func buildEvaluator(cfg *config.Config, ledger model.Ledger, alerts model.AlertStore, n model.Notifier, logger *slog.Logger) *evaluator.Evaluator {
	crawler := buildCrawler(cfg, logger)
	classifier := setupClassifier(cfg, logger)

	return evaluator.NewEvaluator(
		crawler,
		classifier,
		ledger,
		alerts,
		n,
		ratelimit.NewPacer(cfg.Notification.MessageDelay),
		logger,
		cfg.Source.MaxPages,
	)
}

// openStore opens the configured SQLite database.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Storage.Path)
}
