package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mypybite/newsriver/internal/headline"
	"github.com/mypybite/newsriver/internal/sources"
)

var testSpec = sources.Spec{
	URL: "https://example.com/feed",
	Tag: headline.Tag{Category: "General", Region: "World"},
}

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Example Wire</title>
<item>
  <title>First story</title>
  <link>https://example.com/first</link>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>
<item>
  <title>Undated story</title>
  <link>https://example.com/undated</link>
</item>
<item>
  <title></title>
  <link>https://example.com/untitled</link>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>
<item>
  <title>Relative link story</title>
  <link>/relative</link>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>
<item>
  <title>Second story</title>
  <link>https://example.com/second</link>
  <pubDate>Tue, 03 Jan 2006 10:00:00 -0700</pubDate>
</item>
</channel></rss>`

func TestFeedDropsBadEntries(t *testing.T) {
	items, err := Feed([]byte(rssDoc), testSpec, 0)
	require.NoError(t, err)
	require.Len(t, items, 2, "undated, untitled and relative-link entries are dropped")

	require.Equal(t, "First story", items[0].Title)
	require.Equal(t, "https://example.com/first", items[0].Link)
	require.Equal(t, "Example Wire", items[0].Source)
	require.Equal(t, time.UTC, items[0].Published.Location())

	require.Equal(t, "Second story", items[1].Title)
}

func TestFeedRespectsMaxItems(t *testing.T) {
	items, err := Feed([]byte(rssDoc), testSpec, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "First story", items[0].Title)
}

func TestFeedMalformed(t *testing.T) {
	_, err := Feed([]byte("this is not xml at all"), testSpec, 0)
	require.ErrorIs(t, err, ErrParse)
}

const htmlDoc = `<html><head><title>Example Front Page</title></head><body>
<nav><a href="/about">About us and contact info page</a></nav>
<div><time datetime="2026-08-28T12:00:00Z"></time>
  <a href="/stories/big-event">Major event unfolds downtown tonight</a></div>
<section><div><a href="https://other.example.org/world">World leaders meet over trade dispute</a></div></section>
<div><a href="/stories/big-event">Major event unfolds downtown tonight</a></div>
<div><a href="#">Skip</a></div>
<div><a href="javascript:void(0)">Open menu panel for sections</a></div>
</body></html>`

func TestHTMLAnchors(t *testing.T) {
	spec := sources.Spec{URL: "https://example.com/", HTML: true}
	fetchTime := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	items, err := HTML([]byte(htmlDoc), spec, 0, fetchTime)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "Major event unfolds downtown tonight", items[0].Title)
	require.Equal(t, "https://example.com/stories/big-event", items[0].Link)
	require.Equal(t, "Example Front Page", items[0].Source)
	require.Equal(t, time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC), items[0].Published,
		"nearby time element supplies the published time")

	require.Equal(t, "https://other.example.org/world", items[1].Link)
	require.Equal(t, fetchTime, items[1].Published, "fetch time is the fallback")
}

func TestHTMLMaxItems(t *testing.T) {
	spec := sources.Spec{URL: "https://example.com/", HTML: true}
	items, err := HTML([]byte(htmlDoc), spec, 1, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestLooksHeadline(t *testing.T) {
	require.True(t, looksHeadline("Mayor announces new transit plan"))
	require.False(t, looksHeadline("abc"), "too short")
	require.False(t, looksHeadline("Subscribe to our newsletter today"))
	require.False(t, looksHeadline("Log in"))
}

func TestParseLooseDate(t *testing.T) {
	for _, s := range []string{
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		_, ok := parseLooseDate(s)
		require.True(t, ok, s)
	}
	_, ok := parseLooseDate("not a date")
	require.False(t, ok)
}
