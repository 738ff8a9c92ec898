// Package score ranks headlines with weighted, independently toggleable
// signal detectors driven by the Weights policy document.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mypybite/newsriver/internal/canonical"
	"github.com/mypybite/newsriver/internal/headline"
)

// Scorer applies the detector chain to items. Construct once per run;
// the weights value is never mutated and the run clock is injected so
// detectors stay deterministic.
type Scorer struct {
	w   Weights
	now time.Time

	mu    sync.Mutex
	stats map[string]int
}

func New(w Weights, now time.Time) *Scorer {
	return &Scorer{w: w, now: now.UTC(), stats: make(map[string]int)}
}

// scoreContext threads per-item state through the detector chain.
// Casualty and market figures extracted early are reused by the effects
// stage.
type scoreContext struct {
	item  *headline.Item
	title string
	host  string
	ageH  float64

	comps map[string]float64
	total float64

	deaths      int
	btcMove     float64
	hasBTCMove  bool
	stockMove   float64
	hasStockMov bool
}

func (c *scoreContext) add(name string, points float64) {
	c.comps[name] = round4(points)
	c.total += points
}

type detector struct {
	name  string
	apply func(*scoreContext)
}

// Score fills in the item's score, components and effect flags.
func (s *Scorer) Score(it *headline.Item) {
	ctx := &scoreContext{
		item:  it,
		title: it.Title,
		host:  canonical.Host(it.URL),
		ageH:  s.ageHours(it),
		comps: make(map[string]float64),
	}

	for _, d := range s.detectors() {
		d.apply(ctx)
	}

	s.applyEffects(ctx)

	it.Score = round4(ctx.total)
	it.ScoreComponents = ctx.comps
}

// Stats returns the per-trigger hit counts accumulated so far.
func (s *Scorer) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

func (s *Scorer) hit(name string) {
	s.mu.Lock()
	s.stats[name]++
	s.mu.Unlock()
}

func (s *Scorer) ageHours(it *headline.Item) float64 {
	t := it.PublishedTime()
	if t.IsZero() {
		return 1e9
	}
	return math.Max(0, s.now.Sub(t).Hours())
}

// detectors is the ordered rule list. Each entry is independent and
// additive; adding a signal means adding an entry, not new control flow.
func (s *Scorer) detectors() []detector {
	w := s.w
	return []detector{
		{"recency", func(c *scoreContext) {
			if w.Recency.HalfLifeHours <= 0 {
				return
			}
			c.add("recency", math.Pow(0.5, c.ageH/w.Recency.HalfLifeHours))
		}},
		{"age_penalty", func(c *scoreContext) {
			pen := 0.0
			if c.ageH > 24 {
				pen += w.Recency.AgePenaltyAfter24h
			}
			if c.ageH > 36 {
				pen += w.Recency.AgePenaltyAfter36h
			}
			if !c.item.ClusterLatest {
				pen += w.Recency.SupersededClusterPenalty
			}
			if pen != 0 {
				c.add("age_penalty", pen)
			}
		}},
		{"category", func(c *scoreContext) {
			if bonus := w.Categories[c.item.Category]; bonus != 0 {
				c.add("category", bonus)
			}
		}},
		{"sources", func(c *scoreContext) {
			aggregator := canonical.LooksAggregator(c.item.Source, c.item.URL)
			if aggregator {
				c.add("aggregator_penalty", w.Sources.AggregatorPenalty)
				s.hit("agg_penalties")
			}
			if canonical.IsPressWire(c.item.URL) {
				c.add("press_wire_penalty", w.Sources.PressWirePenalty)
				s.hit("press_penalties")
			}
			// trust bonus and aggregator penalty are mutually exclusive
			if !aggregator && canonical.IsPreferred(c.item.URL) {
				c.add("preferred_domain", w.Sources.PreferredDomainsBonus)
				s.hit("preferred_bonus")
			}
		}},
		{"public_safety", func(c *scoreContext) {
			deaths, injured, fatalCue := ParseCasualties(c.title)
			c.deaths = deaths
			points := 0.0
			if fatalCue || deaths > 0 {
				points += w.PublicSafety.HasFatalityPoints
				s.hit("ps_fatal_hits")
			}
			if deaths > 0 {
				points += math.Min(w.PublicSafety.MaxDeathPoints, w.PublicSafety.PerDeathPoints*float64(deaths))
			}
			if injured > 0 {
				points += math.Min(w.PublicSafety.MaxInjuryPoints, w.PublicSafety.PerInjuredPoints*float64(injured))
				s.hit("ps_injury_hits")
			}
			if violentKeywordHit(c.title, w.PublicSafety.ViolentKeywords) {
				points += w.PublicSafety.ViolentKeywordsBonus
			}
			if points != 0 {
				c.add("public_safety", points)
			}
		}},
		{"markets", func(c *scoreContext) {
			if v, ok := firstPct(btcRe, c.title); ok {
				c.btcMove, c.hasBTCMove = v, true
				if v >= w.Markets.BTCAbsMoveThresholdPct {
					c.add("btc_trigger", w.Markets.BTCPoints)
					s.hit("market_btc_hits")
				}
			}
			if v, ok := firstPct(indexRe, c.title); ok && v >= w.Markets.IndexAbsMoveThresholdPct {
				c.add("index_trigger", w.Markets.IndexPoints)
				s.hit("market_index_hits")
			}
			if v, ok := firstPct(nikkeiRe, c.title); ok && v >= w.Markets.NikkeiAbsMoveThresholdPct {
				c.add("nikkei_trigger", w.Markets.NikkeiPoints)
				s.hit("market_nikkei_hits")
			}
			if v, ok := firstPct(tickerPctRe, c.title); ok {
				c.stockMove, c.hasStockMov = v, true
				if v >= w.Markets.SingleStockAbsMoveThresholdPct {
					c.add("single_stock_trigger", w.Markets.SingleStockPoints)
					s.hit("market_single_hits")
				}
			}
		}},
		{"franchise", func(c *scoreContext) {
			if w.Sports.FranchisePoints == 0 || !s.franchiseWindowOpen() {
				return
			}
			t := strings.ToLower(c.title)
			for _, kw := range w.Sports.FranchiseKeywords {
				if kw != "" && strings.Contains(t, strings.ToLower(kw)) {
					c.add("franchise", w.Sports.FranchisePoints)
					s.hit("franchise_hits")
					return
				}
			}
		}},
		{"regional", func(c *scoreContext) {
			bonus := 0.0
			if c.item.Region == "Canada" {
				bonus += w.Regional.CountryMatch
			}
			if bonus != 0 {
				c.add("regional", math.Min(bonus, w.Regional.MaxBonus))
			}
		}},
	}
}

// franchiseWindowOpen applies the time-of-day gate on the run clock.
func (s *Scorer) franchiseWindowOpen() bool {
	start, end := s.w.Sports.ActiveHourStartUTC, s.w.Sports.ActiveHourEndUTC
	if start == end {
		return true
	}
	h := s.now.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func (s *Scorer) applyEffects(c *scoreContext) {
	w := s.w.Effects
	eff := headline.Effects{Reasons: []string{}}

	if c.total >= w.LightsaberMinScore {
		eff.Lightsaber = true
		eff.Reasons = append(eff.Reasons, fmt.Sprintf("score>=%g", w.LightsaberMinScore))
	}
	if w.LightsaberBodyCountGE > 0 && c.deaths >= w.LightsaberBodyCountGE {
		eff.Lightsaber = true
		eff.Reasons = append(eff.Reasons, fmt.Sprintf("body_count>=%d", w.LightsaberBodyCountGE))
	}
	if c.hasBTCMove && c.btcMove >= w.LightsaberBTCMoveGEPct {
		eff.Lightsaber = true
		eff.Reasons = append(eff.Reasons, fmt.Sprintf("btc_move>=%g%%", w.LightsaberBTCMoveGEPct))
	}
	if c.hasStockMov && c.stockMove >= w.LightsaberSingleStockGEPct {
		eff.Lightsaber = true
		eff.Reasons = append(eff.Reasons, fmt.Sprintf("single_stock_move>=%g%%", w.LightsaberSingleStockGEPct))
	}
	if !eff.Lightsaber && c.total >= w.GlitchMinScore {
		eff.Glitch = true
		eff.Reasons = append(eff.Reasons, fmt.Sprintf("score>=%g", w.GlitchMinScore))
	}

	for _, host := range w.ForceGlitchHosts {
		if c.host == strings.ToLower(host) {
			eff.Glitch = true
			eff.Reasons = append(eff.Reasons, "forced:"+c.host)
			if t := c.item.PublishedTime(); !t.IsZero() && w.ForceGlitchDecayHours > 0 {
				decay := t.Add(time.Duration(w.ForceGlitchDecayHours * float64(time.Hour)))
				eff.DecayUTC = decay.UTC().Format(time.RFC3339)
			}
			break
		}
	}

	if eff.Lightsaber {
		s.hit("effects_lightsaber")
	} else if eff.Glitch {
		s.hit("effects_glitch")
	}
	c.item.Effects = eff
}

// ---- title text parsing ----

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

var (
	deathRe    = regexp.MustCompile(`(?i)\b((?:\d+|one|two|three|four|five|six|seven|eight|nine|ten))\s+(?:people\s+)?(?:dead|killed|deaths?)\b`)
	injuredRe  = regexp.MustCompile(`(?i)\b((?:\d+|one|two|three|four|five|six|seven|eight|nine|ten))\s+(?:people\s+)?(?:injured|hurt)\b`)
	fatalCueRe = regexp.MustCompile(`(?i)\b(dead|killed|homicide|murder|fatal|deadly)\b`)
)

func wordOrIntToInt(s string) int {
	s = strings.ToLower(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return wordNumbers[s]
}

// ParseCasualties extracts death and injury counts from a title,
// accepting digits and spelled-out numbers, plus a fatality-cue flag.
func ParseCasualties(title string) (deaths, injured int, hasFatalCue bool) {
	for _, m := range deathRe.FindAllStringSubmatch(title, -1) {
		deaths += wordOrIntToInt(m[1])
	}
	for _, m := range injuredRe.FindAllStringSubmatch(title, -1) {
		injured += wordOrIntToInt(m[1])
	}
	return deaths, injured, fatalCueRe.MatchString(title)
}

func violentKeywordHit(title string, keywords []string) bool {
	t := strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(t, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

const pctPattern = `([+-]?\d+(?:\.\d+)?)\s?%`

var (
	btcRe       = regexp.MustCompile(`(?i)\b(Bitcoin|BTC)\b.*?` + pctPattern)
	indexRe     = regexp.MustCompile(`(?i)\b(S&P|Nasdaq|Dow|TSX|TSXV)\b.*?` + pctPattern)
	nikkeiRe    = regexp.MustCompile(`(?i)\b(Nikkei(?:\s*225)?)\b.*?` + pctPattern)
	tickerPctRe = regexp.MustCompile(`\b([A-Z]{2,5})\b[^%]{0,40}` + pctPattern)
)

// firstPct returns the absolute percentage captured by a market pattern.
func firstPct(re *regexp.Regexp, title string) (float64, bool) {
	m := re.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	return math.Abs(v), true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
