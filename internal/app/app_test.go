package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mypybite/newsriver/internal/config"
	"github.com/mypybite/newsriver/internal/logger"
)

func init() {
	logger.Init(false)
}

func rssDoc(feedTitle string, entries ...[2]string) string {
	doc := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>` + feedTitle + `</title>`
	now := time.Now().UTC()
	for i, e := range entries {
		doc += fmt.Sprintf(
			`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate></item>`,
			e[0], e[1], now.Add(-time.Duration(i+1)*time.Hour).Format(time.RFC1123Z))
	}
	return doc + `</channel></rss>`
}

func testConfig(t *testing.T, feeds string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	feedsPath := filepath.Join(dir, "feeds.txt")
	require.NoError(t, os.WriteFile(feedsPath, []byte(feeds), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.FeedsPath = feedsPath
	cfg.OutPath = filepath.Join(dir, "headlines.json")
	cfg.WeightsPath = filepath.Join(dir, "absent-weights.yaml")
	cfg.VerifyLinks = false
	cfg.GlobalBudget = 30 * time.Second
	cfg.RetryAttempts = 0
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	feedA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc("Outlet A",
			[2]string{"Council approves downtown bike lane expansion", "https://a.example/bike-lanes"},
			[2]string{"Heavy rain floods subway stations overnight", "https://a.example/flooding"},
		))
	}))
	defer feedA.Close()

	feedB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc("Outlet B",
			// same story as outlet A, different link
			[2]string{"Council approves downtown bike lane expansion", "https://b.example/bike-lanes"},
			[2]string{"Province funds hospital expansion program", "https://b.example/hospital"},
		))
	}))
	defer feedB.Close()

	feeds := fmt.Sprintf("# --- TORONTO LOCAL ---\n%s\n%s\n", feedA.URL, feedB.URL)
	cfg := testConfig(t, feeds)

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, 3, result.Count, "duplicate story collapses")
	require.Len(t, result.Items, 3)

	for _, it := range result.Items {
		require.NotEmpty(t, it.CanonicalID)
		require.NotEmpty(t, it.ClusterID)
		require.Equal(t, "Local", it.Category)
		require.Equal(t, "Canada", it.Region)
		require.NotZero(t, it.Score)
		require.NotEmpty(t, it.ScoreComponents)
	}

	require.Equal(t, 2, result.Debug["feeds_total"])
	require.Equal(t, 4, result.Debug["collected"])
	require.Equal(t, 3, result.Debug["dedup_final"])
	require.NotEmpty(t, result.Debug["run_id"])

	// output document round-trips
	data, err := os.ReadFile(cfg.OutPath)
	require.NoError(t, err)
	var onDisk RunResult
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Equal(t, result.Count, onDisk.Count)
	require.Equal(t, result.GeneratedUTC, onDisk.GeneratedUTC)
}

func TestRunSurvivesDeadFeed(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssDoc("Outlet A",
			[2]string{"Heavy rain floods subway stations overnight", "https://a.example/flooding"},
		))
	}))
	defer live.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	feeds := fmt.Sprintf("%s\n%s\n", live.URL, dead.URL)
	cfg := testConfig(t, feeds)

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err, "one dead source degrades to a counter")
	require.Equal(t, 1, result.Count)
	require.Equal(t, 1, result.Debug["fetch_errors"])
}

func TestRunTargetCountBackfills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the first two titles merge at dedup but sit under the
		// backfill ceiling, so the reject can return to meet the target
		fmt.Fprint(w, rssDoc("Outlet A",
			[2]string{"Mayor opens ferry terminal downtown harbourfront", "https://a.example/ferry"},
			[2]string{"Mayor opens ferry terminal downtown harbourfront today", "https://a.example/ferry-live"},
			[2]string{"Heavy rain floods subway stations overnight", "https://a.example/flooding"},
		))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL+"\n")
	cfg.TargetCount = 3

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 3, result.Count, "dedup reject comes back to meet the target")
	require.Equal(t, true, result.Debug["target_met"])
	require.Equal(t, 1, result.Debug["backfilled"])
}

func TestRunMissingFeedsFileFatal(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.FeedsPath = filepath.Join(t.TempDir(), "absent.txt")
	cfg.OutPath = filepath.Join(t.TempDir(), "out.json")

	_, err = Run(context.Background(), cfg)
	require.Error(t, err)
}
