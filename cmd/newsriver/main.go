package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mypybite/newsriver/internal/app"
	"github.com/mypybite/newsriver/internal/config"
	"github.com/mypybite/newsriver/internal/logger"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		feedsPath    string
		outPath      string
		weightsPath  string
		timeout      time.Duration
		retries      int
		retryDelay   time.Duration
		budget       time.Duration
		verifyBudget time.Duration
		maxPerFeed   int
		maxTotal     int
		target       int
		concurrency  int
		verifyLinks  bool
		blockAggr    bool
		debug        bool
	)

	cmd := &cobra.Command{
		Use:     "newsriver",
		Short:   "Fetch, dedup, score and rank news headlines into a JSON document",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Flags set explicitly win over environment and defaults.
			flags := cmd.Flags()
			if flags.Changed("feeds") {
				cfg.FeedsPath = feedsPath
			}
			if flags.Changed("out") {
				cfg.OutPath = outPath
			}
			if flags.Changed("weights") {
				cfg.WeightsPath = weightsPath
			}
			if flags.Changed("timeout") {
				cfg.RequestTimeout = timeout
			}
			if flags.Changed("retries") {
				cfg.RetryAttempts = retries
			}
			if flags.Changed("retry-delay") {
				cfg.RetryDelay = retryDelay
			}
			if flags.Changed("budget") {
				cfg.GlobalBudget = budget
			}
			if flags.Changed("verify-budget") {
				cfg.VerifyBudget = verifyBudget
			}
			if flags.Changed("max-per-feed") {
				cfg.MaxPerFeed = maxPerFeed
			}
			if flags.Changed("max-total") {
				cfg.MaxTotal = maxTotal
			}
			if flags.Changed("target") {
				cfg.TargetCount = target
			}
			if flags.Changed("concurrency") {
				cfg.FetchConcurrency = concurrency
			}
			if flags.Changed("verify") {
				cfg.VerifyLinks = verifyLinks
			}
			if flags.Changed("block-aggregators") {
				cfg.BlockAggregators = blockAggr
			}
			if flags.Changed("debug") {
				cfg.Debug = debug
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Init(cfg.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = app.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&feedsPath, "feeds", "feeds.txt", "path to the source registry")
	f.StringVar(&outPath, "out", "headlines.json", "output document path")
	f.StringVar(&weightsPath, "weights", "configs/weights.yaml", "scoring weights document")
	f.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	f.IntVar(&retries, "retries", 2, "retries after the first attempt")
	f.DurationVar(&retryDelay, "retry-delay", 500*time.Millisecond, "initial retry backoff")
	f.DurationVar(&budget, "budget", 210*time.Second, "global wall-clock budget")
	f.DurationVar(&verifyBudget, "verify-budget", 60*time.Second, "link verification sub-budget")
	f.IntVar(&maxPerFeed, "max-per-feed", 14, "item cap per source")
	f.IntVar(&maxTotal, "max-total", 320, "item cap across all sources")
	f.IntVar(&target, "target", 0, "exact output count, 0 to disable")
	f.IntVar(&concurrency, "concurrency", 8, "fetch worker count")
	f.BoolVar(&verifyLinks, "verify", true, "re-fetch links and drop soft failures")
	f.BoolVar(&blockAggr, "block-aggregators", true, "drop aggregator-hosted links at collection")
	f.BoolVar(&debug, "debug", false, "verbose logging")
	return cmd
}
