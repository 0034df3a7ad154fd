package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alwinjoseph/jobquest/internal/model"
	"github.com/alwinjoseph/jobquest/internal/review"
)

var (
	searchLocation   string
	searchExperience []string
	searchJobTypes   []string
	searchDatePosted string
	searchWorkplace  string
	searchPages      int
)

var searchCmd = &cobra.Command{
	Use:   "search <keywords...>",
	Short: "Run a one-shot search",
	Long:  "Crawls and classifies postings for the given keywords without touching any alert's ledger.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchLocation, "location", "l", "", "location filter")
	searchCmd.Flags().StringSliceVar(&searchExperience, "experience", nil, "experience levels (e.g. \"entry level\",associate)")
	searchCmd.Flags().StringSliceVar(&searchJobTypes, "job-type", nil, "job types (e.g. full-time,contract)")
	searchCmd.Flags().StringVar(&searchDatePosted, "date-posted", "", "date bucket (past 24 hours, past week, past month)")
	searchCmd.Flags().StringVar(&searchWorkplace, "workplace", "", "workplace type (on-site, remote, hybrid)")
	searchCmd.Flags().IntVar(&searchPages, "pages", 0, "max pages to crawl (default: from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	filters, err := model.ParseFilterSpec(searchExperience, searchJobTypes, searchDatePosted, searchWorkplace)
	if err != nil {
		return err
	}

	pages := cfg.Source.MaxSearchPages
	if searchPages > 0 {
		pages = searchPages
	}

	keywords := strings.Join(args, " ")
	query := model.Query{
		Keywords: keywords,
		Location: searchLocation,
		Filters:  filters,
		MaxPages: pages,
	}

	// The loader runs a TUI; log output during the search corrupts the display.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	crawler := buildCrawler(cfg, silent)
	classifier := setupClassifier(cfg, silent)

	postings, err := review.RunLoader(fmt.Sprintf("%q", keywords), func(ctx context.Context) ([]model.JobPosting, error) {
		found, err := crawler.Crawl(ctx, query)
		if err != nil {
			return nil, err
		}
		return classifier.Filter(ctx, found, keywords), nil
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(postings) == 0 {
		fmt.Println("No postings found.")
		return nil
	}

	fmt.Printf("%d postings, newest first:\n\n", len(postings))
	for _, p := range postings {
		posted := p.DatePosted
		if posted == "" {
			posted = "unknown"
		}
		fmt.Printf("  %s\n", p.Title)
		fmt.Printf("    %s · %s · %s\n", p.Company, p.Location, posted)
		fmt.Printf("    %s\n\n", p.Link)
	}
	return nil
}
