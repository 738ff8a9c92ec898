// Package app wires the pipeline: fetch, normalize, dedup, score,
// verify, assemble, emit.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mypybite/newsriver/internal/assemble"
	"github.com/mypybite/newsriver/internal/canonical"
	"github.com/mypybite/newsriver/internal/config"
	"github.com/mypybite/newsriver/internal/dedup"
	"github.com/mypybite/newsriver/internal/fetch"
	"github.com/mypybite/newsriver/internal/headline"
	"github.com/mypybite/newsriver/internal/logger"
	"github.com/mypybite/newsriver/internal/metrics"
	"github.com/mypybite/newsriver/internal/normalize"
	"github.com/mypybite/newsriver/internal/score"
	"github.com/mypybite/newsriver/internal/sources"
	"github.com/mypybite/newsriver/internal/verify"
)

// slowFeedThreshold marks a source as slow in the diagnostics.
const slowFeedThreshold = 5 * time.Second

// RunResult is the headlines.json document.
type RunResult struct {
	GeneratedUTC string          `json:"generated_utc"`
	Count        int             `json:"count"`
	Items        []headline.Item `json:"items"`
	Debug        map[string]any  `json:"_debug"`
}

// Run executes one full pipeline pass and writes the output document.
// Only an unreadable feeds file or an unwritable output path is fatal;
// every per-source failure degrades to a diagnostic counter.
func Run(ctx context.Context, cfg *config.Config) (*RunResult, error) {
	m := metrics.Global
	m.Reset()
	now := time.Now().UTC()
	runID := uuid.NewString()

	specs, err := sources.Load(cfg.FeedsPath)
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	logger.Info("run starting", "run_id", runID, "sources", len(specs))

	weights, wstatus := score.LoadWeights(cfg.WeightsPath)
	if wstatus.Error != "" {
		logger.Warn("weights file problem, using defaults where needed", "path", cfg.WeightsPath, "error", wstatus.Error)
	}

	budgetCtx, cancel := context.WithTimeout(ctx, cfg.GlobalBudget)
	defer cancel()

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.RequestTimeout,
		Retries:    cfg.RetryAttempts,
		RetryDelay: cfg.RetryDelay,
		UserAgent:  cfg.UserAgent,
	})
	pool := fetch.NewPool(client, cfg.FetchConcurrency)
	results := pool.FetchAll(budgetCtx, specs)

	collected, feedTimes, slowDomains := collect(results, cfg, now, m)
	logger.Info("collection done", "items", len(collected), "elapsed", m.Elapsed().Round(time.Millisecond))

	survivors, rejectedPool, dstats := dedup.Run(collected, dedup.Options{
		Threshold:   weights.Dedup.JaccardThreshold,
		RecapWindow: time.Duration(weights.Dedup.RecapWindowHours * float64(time.Hour)),
		Now:         now,
	})
	logger.Info("dedup done", "in", len(collected), "pass1", dstats.AfterPass1, "out", dstats.AfterPass2)

	scorer := score.New(weights, now)
	for i := range survivors {
		scorer.Score(&survivors[i])
	}
	// The backfill pool is scored too so admitted items carry real scores.
	for i := range rejectedPool {
		scorer.Score(&rejectedPool[i])
	}

	var verifier *verify.Verifier
	verifiedCount := 0
	if cfg.VerifyLinks {
		verifier = verify.New(verify.Options{
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
		})
		survivors, verifiedCount = verifyItems(budgetCtx, cfg, verifier, survivors, m)
		logger.Info("verification done", "kept", len(survivors), "checked", verifiedCount)
	}

	kept, astats := assemble.Finalize(budgetCtx, survivors, rejectedPool, assemble.Options{
		Target:            cfg.TargetCount,
		BackfillThreshold: weights.Dedup.BackfillThreshold,
		Verify:            backfillVerifier(cfg, verifier),
	})
	if cfg.TargetCount <= 0 {
		assemble.Sort(kept)
		astats.Swaps = assemble.EnforceRunLength(kept)
	}

	result := &RunResult{
		GeneratedUTC: now.Format(time.RFC3339),
		Count:        len(kept),
		Items:        kept,
		Debug: debugBlock(cfg, m, wstatus, scorer, runID, debugCounts{
			feedsTotal:  len(specs),
			collected:   len(collected),
			dedupPass1:  dstats.AfterPass1,
			dedupFinal:  dstats.AfterPass2,
			clusters:    dstats.Clusters,
			verified:    verifiedCount,
			slowDomains: slowDomains,
			feedTimes:   feedTimes,
			assembled:   astats,
		}),
	}

	if err := writeOutput(cfg.OutPath, result); err != nil {
		return nil, err
	}
	logger.Info("run complete", "count", result.Count, "out", cfg.OutPath,
		"elapsed", m.Elapsed().Round(time.Millisecond))
	return result, nil
}

// collect normalizes every fetch result into canonicalized items under
// the collection caps.
func collect(results []fetch.Result, cfg *config.Config, now time.Time, m *metrics.Metrics) ([]headline.Item, map[string]float64, []string) {
	var items []headline.Item
	feedTimes := make(map[string]float64, len(results))
	var slowDomains []string
	perHost := make(map[string]int)

	for _, r := range results {
		host := canonical.Host(r.Spec.URL)
		feedTimes[host] = r.Elapsed.Seconds()
		if r.Elapsed > slowFeedThreshold {
			slowDomains = append(slowDomains, host)
		}

		switch {
		case r.Skipped:
			m.Increment("fetch_skipped")
			continue
		case r.Err != nil:
			var fe *fetch.Error
			if errors.As(r.Err, &fe) && fe.Kind == fetch.Timeout {
				m.Increment("fetch_timeouts")
			} else {
				m.Increment("fetch_errors")
			}
			logger.Warn("source fetch failed", "url", r.Spec.URL, "error", r.Err)
			continue
		}

		var raw []normalize.RawItem
		var err error
		if r.Spec.HTML {
			raw, err = normalize.HTML(r.Body, r.Spec, cfg.MaxPerFeed, now)
		} else {
			raw, err = normalize.Feed(r.Body, r.Spec, cfg.MaxPerFeed)
		}
		if err != nil {
			m.Increment("parse_errors")
			logger.Warn("source parse failed", "url", r.Spec.URL, "error", err)
			continue
		}

		for _, ri := range raw {
			if len(items) >= cfg.MaxTotal {
				m.Increment("caps_total_hit")
				break
			}
			if cfg.BlockAggregators && canonical.LooksAggregator(ri.Source, ri.Link) {
				m.Increment("aggregators_dropped")
				continue
			}
			if cfg.MaxAge > 0 && ri.Published.Before(now.Add(-cfg.MaxAge)) {
				m.Increment("stale_dropped")
				continue
			}
			itemHost := canonical.Host(ri.Link)
			limit := cfg.MaxPerFeed
			if override, ok := cfg.PerHostMax[itemHost]; ok {
				limit = override
			}
			if perHost[itemHost] >= limit {
				m.Increment("caps_host_hit")
				continue
			}
			perHost[itemHost]++
			items = append(items, toItem(ri, r.Spec))
		}
	}
	m.Set("collected", len(items))
	return items, feedTimes, slowDomains
}

func toItem(ri normalize.RawItem, spec sources.Spec) headline.Item {
	return headline.Item{
		Title:        ri.Title,
		URL:          ri.Link,
		Source:       ri.Source,
		PublishedUTC: ri.Published.UTC().Format(time.RFC3339),
		Category:     spec.Tag.Category,
		Region:       spec.Tag.Region,
		CanonicalURL: canonical.CanonicalURL(ri.Link),
		CanonicalID:  canonical.ID(ri.Link),
		ClusterID:    canonical.Signature(ri.Title),
		Trust:        canonical.TrustFor(canonical.Host(ri.Link), ri.Source),
		Paywalled:    canonical.LooksPaywalled(ri.Link),
		Opinion:      canonical.LooksOpinion(ri.Link, ri.Title),
	}
}

// verifyItems checks every survivor's link under the verification
// sub-budget and drops rejects, tallying reasons.
func verifyItems(ctx context.Context, cfg *config.Config, verifier *verify.Verifier, items []headline.Item, m *metrics.Metrics) ([]headline.Item, int) {
	verifyCtx, cancel := context.WithTimeout(ctx, cfg.VerifyBudget)
	defer cancel()

	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
	}
	vpool := verify.NewPool(verifier, cfg.VerifyConcurrency)
	results := vpool.VerifyAll(verifyCtx, urls)

	kept := items[:0]
	checked := 0
	for i, vr := range results {
		checked++
		if !vr.OK {
			m.RecordVerifyReject(vr.Reason)
			logger.Debug("link rejected", "url", urls[i], "reason", vr.Reason)
			continue
		}
		kept = append(kept, items[i])
	}
	return kept, checked
}

// backfillVerifier vets backfill candidates with the same checks as the
// main pass; nil when verification is off.
func backfillVerifier(cfg *config.Config, verifier *verify.Verifier) assemble.VerifyFunc {
	if !cfg.VerifyLinks || verifier == nil {
		return nil
	}
	return func(ctx context.Context, url string) bool {
		vr := verifier.Verify(ctx, url)
		if !vr.OK {
			metrics.Global.RecordVerifyReject(vr.Reason)
		}
		return vr.OK
	}
}

type debugCounts struct {
	feedsTotal  int
	collected   int
	dedupPass1  int
	dedupFinal  int
	clusters    int
	verified    int
	slowDomains []string
	feedTimes   map[string]float64
	assembled   assemble.Stats
}

func debugBlock(cfg *config.Config, m *metrics.Metrics, wstatus score.LoadStatus, scorer *score.Scorer, runID string, c debugCounts) map[string]any {
	counters := m.Counters()
	sort.Strings(c.slowDomains)

	dbg := map[string]any{
		"run_id":            runID,
		"feeds_total":       c.feedsTotal,
		"collected":         c.collected,
		"dedup_pass1":       c.dedupPass1,
		"dedup_final":       c.dedupFinal,
		"clusters":          c.clusters,
		"verified":          c.verified,
		"fetch_errors":      counters["fetch_errors"],
		"fetch_timeouts":    counters["fetch_timeouts"],
		"fetch_skipped":     counters["fetch_skipped"],
		"parse_errors":      counters["parse_errors"],
		"aggregators_drop":  counters["aggregators_dropped"],
		"caps_host_hit":     counters["caps_host_hit"],
		"caps_total_hit":    counters["caps_total_hit"],
		"slow_domains":      c.slowDomains,
		"feed_sec":          c.feedTimes,
		"elapsed_sec":       round2(m.Elapsed().Seconds()),
		"budget_sec":        cfg.GlobalBudget.Seconds(),
		"verify_budget_sec": cfg.VerifyBudget.Seconds(),
		"weights_loaded":    wstatus.Loaded,
		"weights_path":      wstatus.Path,
		"weights_keys":      wstatus.Keys,
		"score_stats":       scorer.Stats(),
		"verify_rejects":    m.VerifyRejects(),
	}
	if wstatus.Error != "" {
		dbg["weights_error"] = wstatus.Error
	}
	if cfg.TargetCount > 0 {
		dbg["target"] = cfg.TargetCount
		dbg["target_met"] = c.assembled.Shortfall == 0
		dbg["backfilled"] = c.assembled.Backfilled
		dbg["trimmed"] = c.assembled.Trimmed
		if c.assembled.Shortfall > 0 {
			dbg["shortfall"] = c.assembled.Shortfall
		}
	}
	return dbg
}

// writeOutput writes the document atomically: temp file in the target
// directory, then rename.
func writeOutput(path string, result *RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".headlines-*.json")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing output: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
