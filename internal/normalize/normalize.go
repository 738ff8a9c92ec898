// Package normalize turns fetched bytes into raw items, from structured
// feeds (RSS/Atom/JSON via gofeed) or plain HTML pages (goquery
// heuristics over anchor tags).
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/mypybite/newsriver/internal/sources"
)

// ErrParse marks malformed feed or HTML payloads.
var ErrParse = errors.New("parse error")

// RawItem is one normalized feed entry before canonicalization.
type RawItem struct {
	Title     string
	Link      string
	Source    string
	Published time.Time
}

// looseDateLayouts are tried on raw date strings when the feed parser
// could not produce a structured time (RFC-2822 variants and ISO-8601).
var looseDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseLooseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Feed parses feed bytes into at most maxItems raw items. Entries missing
// a title or an absolute link are discarded; entries without a parseable
// date are discarded too, because the age window depends on it.
func Feed(data []byte, spec sources.Spec, maxItems int) ([]RawItem, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, spec.URL, err)
	}

	label := strings.TrimSpace(parsed.Title)

	entries := parsed.Items
	if maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	items := make([]RawItem, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		link := strings.TrimSpace(e.Link)
		if title == "" || link == "" || !isAbsolute(link) {
			continue
		}

		var published time.Time
		switch {
		case e.PublishedParsed != nil:
			published = e.PublishedParsed.UTC()
		case e.UpdatedParsed != nil:
			published = e.UpdatedParsed.UTC()
		default:
			t, ok := parseLooseDate(e.Published)
			if !ok {
				t, ok = parseLooseDate(e.Updated)
			}
			if !ok {
				continue
			}
			published = t
		}

		items = append(items, RawItem{
			Title:     title,
			Link:      link,
			Source:    label,
			Published: published,
		})
	}
	return items, nil
}

// navExclusion matches anchor texts that are navigation chrome rather
// than headlines.
var navExclusion = []string{
	"advert", "subscribe", "privacy", "about", "terms", "tip", "app", "share", "contact",
	"log in", "login", "sign up", "cookie", "newsletter",
}

func looksHeadline(text string) bool {
	t := strings.TrimSpace(text)
	if len([]rune(t)) < 4 || len([]rune(t)) > 200 {
		return false
	}
	lower := strings.ToLower(t)
	for _, word := range navExclusion {
		if strings.Contains(lower, word) {
			return false
		}
	}
	return true
}

// HTML recovers items from an arbitrary page by walking anchors. A
// nearby <time datetime=...> element supplies the published time; pages
// carry no reliable dates otherwise, so fetchTime is the fallback (HTML
// sources are exempt from the drop-undated rule).
func HTML(data []byte, spec sources.Spec, maxItems int, fetchTime time.Time) ([]RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, spec.URL, err)
	}

	base, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bad base url", ErrParse, spec.URL)
	}

	label := strings.TrimSpace(doc.Find("title").First().Text())
	if label == "" {
		label = base.Host
	}

	seen := make(map[string]struct{})
	var items []RawItem

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if !looksHeadline(text) {
			return true
		}
		href, _ := a.Attr("href")
		link := resolveLink(base, href)
		if link == "" {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		published := fetchTime.UTC()
		if t, ok := nearbyTimestamp(a); ok {
			published = t
		}

		items = append(items, RawItem{
			Title:     text,
			Link:      link,
			Source:    label,
			Published: published,
		})
		return maxItems <= 0 || len(items) < maxItems
	})

	return items, nil
}

// nearbyTimestamp looks for a <time datetime> beside or above the anchor.
func nearbyTimestamp(a *goquery.Selection) (time.Time, bool) {
	for _, sel := range []*goquery.Selection{a.Parent(), a.Parent().Parent()} {
		if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
			if t, ok2 := parseLooseDate(dt); ok2 {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

func isAbsolute(link string) bool {
	u, err := url.Parse(link)
	return err == nil && u.IsAbs() && u.Host != ""
}
