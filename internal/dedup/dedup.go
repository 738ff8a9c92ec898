// Package dedup collapses duplicate stories in two passes: exact
// cluster-key collapse, then near-duplicate clustering by title-token
// Jaccard similarity.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mypybite/newsriver/internal/canonical"
	"github.com/mypybite/newsriver/internal/headline"
	"github.com/mypybite/newsriver/internal/logger"
)

// DefaultThreshold is the empirical Jaccard cutoff; tune via Options,
// not here.
const DefaultThreshold = 0.82

// Options tune the near-duplicate pass.
type Options struct {
	Threshold float64
	// RecapWindow is how recent two game recaps must both be to stay
	// unmerged despite high title similarity. Zero disables the exemption.
	RecapWindow time.Duration
	Now         time.Time
}

// Stats reports what each pass removed.
type Stats struct {
	AfterPass1 int
	AfterPass2 int
	Clusters   int
}

// recapVerbRe marks results-style sports headlines; two fresh recaps of
// different games legitimately share most title vocabulary.
var recapVerbRe = regexp.MustCompile(`(?i)\b(beat|beats|defeat|defeats|top|tops|edge|edges|rout|routs|blank|blanks|down|downs|shut\s*out|win|wins|fall|falls|lose|loses)\b`)

var scorelineRe = regexp.MustCompile(`\b\d{1,2}\s*[-–]\s*\d{1,2}\b`)

func looksGameResult(title string) bool {
	return recapVerbRe.MatchString(title) || scorelineRe.MatchString(title)
}

// Run deduplicates items. Survivors keep their input relative order
// except where a later item replaced an earlier representative. The
// rejected slice is every item removed by either pass, preserved for
// backfill.
func Run(items []headline.Item, opts Options) (survivors, rejected []headline.Item, stats Stats) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	// Pass 1: exact collapse on cluster ID. Keep the newest; on a tie
	// prefer the non-aggregator copy.
	keepByCluster := make(map[string]int, len(items))
	var order []string
	for i := range items {
		it := &items[i]
		key := it.ClusterID
		prev, ok := keepByCluster[key]
		if !ok {
			keepByCluster[key] = i
			order = append(order, key)
			continue
		}
		tNew, tOld := it.Unix(), items[prev].Unix()
		switch {
		case tNew > tOld:
			rejected = append(rejected, items[prev])
			keepByCluster[key] = i
		case tNew == tOld &&
			canonical.LooksAggregator(items[prev].Source, items[prev].URL) &&
			!canonical.LooksAggregator(it.Source, it.URL):
			rejected = append(rejected, items[prev])
			keepByCluster[key] = i
		default:
			rejected = append(rejected, *it)
		}
	}

	pass1 := make([]headline.Item, 0, len(order))
	for _, key := range order {
		pass1 = append(pass1, items[keepByCluster[key]])
	}
	stats.AfterPass1 = len(pass1)

	// Pass 2: near-duplicate collapse against running representatives.
	type rep struct {
		tokens map[string]struct{}
		item   headline.Item
	}
	var reps []rep

	for _, it := range pass1 {
		toks := canonical.TokenSet(it.Title)
		merged := false
		for ri := range reps {
			sim := canonical.Jaccard(toks, reps[ri].tokens)
			if sim < opts.Threshold {
				continue
			}
			if exemptGameRecaps(it, reps[ri].item, opts) {
				continue
			}
			if isBetter(it, reps[ri].item) {
				logger.Debug("near-duplicate replaced representative",
					"kept", it.Title, "dropped", reps[ri].item.Title, "similarity", sim)
				rejected = append(rejected, reps[ri].item)
				reps[ri] = rep{tokens: toks, item: it}
			} else {
				logger.Debug("near-duplicate dropped", "dropped", it.Title, "similarity", sim)
				rejected = append(rejected, it)
			}
			merged = true
			break
		}
		if !merged {
			reps = append(reps, rep{tokens: toks, item: it})
		}
	}

	survivors = make([]headline.Item, 0, len(reps))
	for _, r := range reps {
		survivors = append(survivors, r.item)
	}
	stats.AfterPass2 = len(survivors)

	stats.Clusters = markLineage(survivors)
	return survivors, rejected, stats
}

// isBetter decides whether a should replace b as cluster representative:
// newer > non-aggregator > preferred domain > shorter URL.
func isBetter(a, b headline.Item) bool {
	ta, tb := a.Unix(), b.Unix()
	if ta != tb {
		return ta > tb
	}
	aAggr := canonical.LooksAggregator(a.Source, a.URL)
	bAggr := canonical.LooksAggregator(b.Source, b.URL)
	if aAggr != bAggr {
		return !aAggr
	}
	aPref := canonical.IsPreferred(a.URL)
	bPref := canonical.IsPreferred(b.URL)
	if aPref != bPref {
		return aPref
	}
	return len(a.URL) < len(b.URL)
}

// exemptGameRecaps keeps two token-similar items apart when both look
// like fresh game results about the same teams: distinct recaps of one
// matchup share most vocabulary. The results verb alone is not enough
// ("Loonie falls..." is not a recap), so both titles must also share at
// least two capitalized entities, the team names.
func exemptGameRecaps(a, b headline.Item, opts Options) bool {
	if opts.RecapWindow <= 0 {
		return false
	}
	if !looksGameResult(a.Title) || !looksGameResult(b.Title) {
		return false
	}
	if sharedEntities(a.Title, b.Title) < 2 {
		return false
	}
	cutoff := opts.Now.Add(-opts.RecapWindow)
	ta, tb := a.PublishedTime(), b.PublishedTime()
	return !ta.IsZero() && !tb.IsZero() && ta.After(cutoff) && tb.After(cutoff)
}

// sharedEntities counts capitalized words both titles carry; team and
// player names keep their capitals mid-headline.
func sharedEntities(a, b string) int {
	seen := capitalizedWords(a)
	n := 0
	for w := range capitalizedWords(b) {
		if _, ok := seen[w]; ok {
			n++
		}
	}
	return n
}

func capitalizedWords(title string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(title) {
		f = strings.Trim(f, ".,:;!?'\"()[]")
		runes := []rune(f)
		if len(runes) < 3 || !unicode.IsUpper(runes[0]) {
			continue
		}
		out[strings.ToLower(f)] = struct{}{}
	}
	return out
}

// markLineage ranks survivors inside each cluster ID by time and flags
// the most recent member. Returns the number of distinct clusters.
func markLineage(items []headline.Item) int {
	groups := make(map[string][]int)
	for i := range items {
		groups[items[i].ClusterID] = append(groups[items[i].ClusterID], i)
	}
	for _, idxs := range groups {
		sort.Slice(idxs, func(a, b int) bool {
			return items[idxs[a]].Unix() < items[idxs[b]].Unix()
		})
		for rank, i := range idxs {
			items[i].ClusterRank = rank + 1
			items[i].ClusterLatest = rank == len(idxs)-1
		}
	}
	return len(groups)
}
