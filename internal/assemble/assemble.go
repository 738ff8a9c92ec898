// Package assemble orders the surviving headlines, spaces out repeated
// sources, and trims or backfills the list to an exact target count.
package assemble

import (
	"context"
	"sort"

	"github.com/mypybite/newsriver/internal/canonical"
	"github.com/mypybite/newsriver/internal/headline"
	"github.com/mypybite/newsriver/internal/logger"
)

// DefaultBackfillThreshold is the Jaccard ceiling for a backfill
// candidate against every kept title. Looser than the dedup threshold:
// items that merged at 0.82-0.90 similarity may return when the strict
// pool cannot reach the target count.
const DefaultBackfillThreshold = 0.90

// MaxRun is the longest allowed run of consecutive items sharing a
// domain or cluster.
const MaxRun = 2

// VerifyFunc vets a backfill candidate's URL before it is admitted.
// A nil VerifyFunc admits unconditionally.
type VerifyFunc func(ctx context.Context, url string) bool

// Options tune the assembler.
type Options struct {
	Target            int
	BackfillThreshold float64
	Verify            VerifyFunc
}

// Stats reports what the assembler did.
type Stats struct {
	Trimmed    int
	Backfilled int
	Shortfall  int
	Swaps      int
}

// Sort orders items newest first; score breaks timestamp ties, both
// descending.
func Sort(items []headline.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Unix(), items[j].Unix()
		if ti != tj {
			return ti > tj
		}
		return items[i].Score > items[j].Score
	})
}

// EnforceRunLength breaks up runs of more than MaxRun consecutive items
// from the same domain or the same cluster by swapping the violator
// forward past the next item that differs. A single pass; a list too
// homogeneous to fix is left as is.
func EnforceRunLength(items []headline.Item) int {
	swaps := 0
	for i := MaxRun; i < len(items); i++ {
		if !sameRun(items[i-MaxRun:i+1]) {
			continue
		}
		swapped := false
		for j := i + 1; j < len(items); j++ {
			if runKeyDiffers(items[i], items[j]) {
				items[i], items[j] = items[j], items[i]
				swaps++
				swapped = true
				break
			}
		}
		if !swapped {
			break
		}
	}
	return swaps
}

func sameRun(window []headline.Item) bool {
	sameDomain, sameCluster := true, true
	first := window[0]
	for _, it := range window[1:] {
		if canonical.Host(it.URL) != canonical.Host(first.URL) {
			sameDomain = false
		}
		if it.ClusterID == "" || it.ClusterID != first.ClusterID {
			sameCluster = false
		}
	}
	return sameDomain || sameCluster
}

func runKeyDiffers(a, b headline.Item) bool {
	if canonical.Host(a.URL) == canonical.Host(b.URL) {
		return false
	}
	if a.ClusterID != "" && a.ClusterID == b.ClusterID {
		return false
	}
	return true
}

// Finalize trims the list to the target count, or tops it up from the
// wide pool of near-duplicates rejected at dedup time. Candidates are
// admitted newest first when their canonical ID is unseen and their
// title stays under the backfill threshold against every kept item.
// One sweep over the pool; an unmet target is reported, not retried.
func Finalize(ctx context.Context, items []headline.Item, pool []headline.Item, opts Options) ([]headline.Item, Stats) {
	var stats Stats
	if opts.Target <= 0 {
		return items, stats
	}
	if opts.BackfillThreshold <= 0 {
		opts.BackfillThreshold = DefaultBackfillThreshold
	}

	// Order before trimming so the cut keeps the newest N, not the
	// first N in pipeline order.
	Sort(items)

	if len(items) > opts.Target {
		stats.Trimmed = len(items) - opts.Target
		items = items[:opts.Target]
		stats.Swaps = EnforceRunLength(items)
		return items, stats
	}

	seen := make(map[string]struct{}, len(items))
	keptTokens := make([]map[string]struct{}, 0, len(items))
	for _, it := range items {
		seen[it.CanonicalID] = struct{}{}
		keptTokens = append(keptTokens, canonical.TokenSet(it.Title))
	}

	Sort(pool)
	for _, cand := range pool {
		if len(items) >= opts.Target {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if _, dup := seen[cand.CanonicalID]; dup {
			continue
		}
		candTokens := canonical.TokenSet(cand.Title)
		if maxJaccard(candTokens, keptTokens) >= opts.BackfillThreshold {
			continue
		}
		if opts.Verify != nil && !opts.Verify(ctx, cand.URL) {
			continue
		}
		items = append(items, cand)
		seen[cand.CanonicalID] = struct{}{}
		keptTokens = append(keptTokens, candTokens)
		stats.Backfilled++
	}

	if len(items) < opts.Target {
		stats.Shortfall = opts.Target - len(items)
		logger.Warn("target count not met", "target", opts.Target, "have", len(items))
	}

	Sort(items)
	stats.Swaps = EnforceRunLength(items)
	return items, stats
}

func maxJaccard(cand map[string]struct{}, kept []map[string]struct{}) float64 {
	best := 0.0
	for _, k := range kept {
		if j := canonical.Jaccard(cand, k); j > best {
			best = j
		}
	}
	return best
}
