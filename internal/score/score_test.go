package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mypybite/newsriver/internal/headline"
)

var runClock = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func testItem(title string, age time.Duration) headline.Item {
	return headline.Item{
		Title:         title,
		URL:           "https://example.com/story",
		Source:        "Example Wire",
		PublishedUTC:  runClock.Add(-age).Format(time.RFC3339),
		Region:        "World",
		ClusterLatest: true,
	}
}

func scoreOne(t *testing.T, w Weights, it headline.Item) headline.Item {
	t.Helper()
	s := New(w, runClock)
	s.Score(&it)
	return it
}

func TestRecencyDecay(t *testing.T) {
	w := DefaultWeights()

	fresh := scoreOne(t, w, testItem("Quiet council meeting wraps up", 0))
	halfLife := scoreOne(t, w, testItem("Quiet council meeting wraps up", 6*time.Hour))
	older := scoreOne(t, w, testItem("Quiet council meeting wraps up", 12*time.Hour))

	require.InDelta(t, 1.0, fresh.ScoreComponents["recency"], 1e-4)
	require.InDelta(t, 0.5, halfLife.ScoreComponents["recency"], 1e-4)
	require.Greater(t, fresh.Score, halfLife.Score)
	require.Greater(t, halfLife.Score, older.Score)
}

func TestAgePenalties(t *testing.T) {
	w := DefaultWeights()

	day := scoreOne(t, w, testItem("Old story resurfaces quietly", 30*time.Hour))
	require.InDelta(t, -0.6, day.ScoreComponents["age_penalty"], 1e-4)

	stale := scoreOne(t, w, testItem("Old story resurfaces quietly", 40*time.Hour))
	require.InDelta(t, -1.0, stale.ScoreComponents["age_penalty"], 1e-4, "both thresholds stack")
}

func TestSupersededClusterPenalty(t *testing.T) {
	w := DefaultWeights()
	it := testItem("Storm update for the region", time.Hour)
	it.ClusterLatest = false
	got := scoreOne(t, w, it)
	require.InDelta(t, -0.9, got.ScoreComponents["age_penalty"], 1e-4)
}

func TestAggregatorPenaltyExcludesPreferredBonus(t *testing.T) {
	w := DefaultWeights()
	it := testItem("Some syndicated story title here", time.Hour)
	it.Source = "Google News"
	it.URL = "https://news.google.com/articles/abc"
	got := scoreOne(t, w, it)
	require.InDelta(t, -0.5, got.ScoreComponents["aggregator_penalty"], 1e-4)
	require.NotContains(t, got.ScoreComponents, "preferred_domain")
}

func TestPreferredDomainBonus(t *testing.T) {
	w := DefaultWeights()
	it := testItem("Local outlet breaks the story", time.Hour)
	it.URL = "https://cbc.ca/news/story"
	got := scoreOne(t, w, it)
	require.InDelta(t, 0.25, got.ScoreComponents["preferred_domain"], 1e-4)
}

func TestCategoryAndRegionalBonus(t *testing.T) {
	w := DefaultWeights()
	w.Categories = map[string]float64{"Local": 0.6}

	it := testItem("Road closures announced for marathon", time.Hour)
	it.Category = "Local"
	it.Region = "Canada"
	got := scoreOne(t, w, it)
	require.InDelta(t, 0.6, got.ScoreComponents["category"], 1e-4)
	require.InDelta(t, 1.2, got.ScoreComponents["regional"], 1e-4)
}

func TestParseCasualties(t *testing.T) {
	deaths, injured, fatal := ParseCasualties("Three people dead, 12 injured in highway crash")
	require.Equal(t, 3, deaths)
	require.Equal(t, 12, injured)
	require.True(t, fatal)

	deaths, injured, fatal = ParseCasualties("Council approves bike lane expansion")
	require.Zero(t, deaths)
	require.Zero(t, injured)
	require.False(t, fatal)

	deaths, _, _ = ParseCasualties("Seven killed in apartment fire")
	require.Equal(t, 7, deaths)
}

func TestPublicSafetyPoints(t *testing.T) {
	w := DefaultWeights()
	got := scoreOne(t, w, testItem("Three people dead in highway crash", time.Hour))
	// has_fatality 1.0 + 3 deaths * 0.10
	require.InDelta(t, 1.3, got.ScoreComponents["public_safety"], 1e-4)
}

func TestMarketTriggers(t *testing.T) {
	w := DefaultWeights()

	btc := scoreOne(t, w, testItem("Bitcoin plunges 9% as markets wobble", time.Hour))
	require.InDelta(t, 1.6, btc.ScoreComponents["btc_trigger"], 1e-4)
	require.True(t, btc.Effects.Lightsaber, "a nine percent move crosses the lightsaber line")

	calm := scoreOne(t, w, testItem("Bitcoin drifts 2% in quiet trading", time.Hour))
	require.NotContains(t, calm.ScoreComponents, "btc_trigger")

	idx := scoreOne(t, w, testItem("S&P falls 1.4% on rate worries", time.Hour))
	require.InDelta(t, 1.0, idx.ScoreComponents["index_trigger"], 1e-4)

	stock := scoreOne(t, w, testItem("ACME shares jump 12% after earnings beat", time.Hour))
	require.InDelta(t, 1.2, stock.ScoreComponents["single_stock_trigger"], 1e-4)
	require.False(t, stock.Effects.Lightsaber, "twelve percent is below the single-stock effect line")
}

func TestFranchiseBonus(t *testing.T) {
	w := DefaultWeights()
	got := scoreOne(t, w, testItem("Blue Jays clinch playoff spot in extras", time.Hour))
	require.InDelta(t, 0.8, got.ScoreComponents["franchise"], 1e-4)
}

func TestFranchiseWindowGate(t *testing.T) {
	w := DefaultWeights()
	// runClock is 12:00 UTC; a 0-6 window is closed.
	w.Sports.ActiveHourStartUTC = 0
	w.Sports.ActiveHourEndUTC = 6
	got := scoreOne(t, w, testItem("Blue Jays clinch playoff spot in extras", time.Hour))
	require.NotContains(t, got.ScoreComponents, "franchise")

	// A wrapped 22-14 window covers 12:00.
	w.Sports.ActiveHourStartUTC = 22
	w.Sports.ActiveHourEndUTC = 14
	got = scoreOne(t, w, testItem("Blue Jays clinch playoff spot in extras", time.Hour))
	require.InDelta(t, 0.8, got.ScoreComponents["franchise"], 1e-4)
}

func TestEffectsThresholds(t *testing.T) {
	w := DefaultWeights()

	// recency 1.0 + regional 1.2 lands between the glitch and
	// lightsaber lines.
	mid := testItem("Parliament debates new budget measures", 0)
	mid.Region = "Canada"
	got := scoreOne(t, w, mid)
	require.True(t, got.Effects.Glitch)
	require.False(t, got.Effects.Lightsaber)

	// public_safety 1.5 on top crosses the lightsaber line.
	hot := testItem("Five people killed in apartment fire", 0)
	hot.Region = "Canada"
	got = scoreOne(t, w, hot)
	require.True(t, got.Effects.Lightsaber)
	require.Contains(t, got.Effects.Reasons, "body_count>=5")
}

func TestForcedGlitchHost(t *testing.T) {
	w := DefaultWeights()
	it := testItem("Mysterious banner headline appears", time.Hour)
	it.URL = "https://www.drudgereport.com/"
	got := scoreOne(t, w, it)

	require.True(t, got.Effects.Glitch)
	require.Contains(t, got.Effects.Reasons, "forced:www.drudgereport.com")
	wantDecay := it.PublishedTime().Add(6 * time.Hour).Format(time.RFC3339)
	require.Equal(t, wantDecay, got.Effects.DecayUTC)
}

func TestStatsCountTriggers(t *testing.T) {
	w := DefaultWeights()
	s := New(w, runClock)

	a := testItem("Three people dead in highway crash", time.Hour)
	b := testItem("Bitcoin plunges 9% as markets wobble", time.Hour)
	s.Score(&a)
	s.Score(&b)

	stats := s.Stats()
	require.Equal(t, 1, stats["ps_fatal_hits"])
	require.Equal(t, 1, stats["market_btc_hits"])
}
