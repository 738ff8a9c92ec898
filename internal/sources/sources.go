// Package sources loads the feeds.txt registry. The file is line
// oriented: comment lines act as section headers and set the
// {category, region} tag for every URL until the next header.
package sources

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mypybite/newsriver/internal/headline"
)

// Spec is one registered source. HTML sources carry no feed structure and
// go through the DOM normalizer instead of the feed parser.
type Spec struct {
	URL  string
	Tag  headline.Tag
	HTML bool
}

// Headers look like "# --- Toronto Local ---" with an optional trailing '#'.
var headerRe = regexp.MustCompile(`^#\s*-*\s*(.*?)\s*-*\s*#*\s*$`)

// InferTag maps a section header onto a coarse tag.
func InferTag(header string) headline.Tag {
	s := strings.ToUpper(header)
	switch {
	case strings.Contains(s, "TORONTO LOCAL"):
		return headline.Tag{Category: "Local", Region: "Canada"}
	case strings.Contains(s, "BUSINESS"), strings.Contains(s, "MARKET"), strings.Contains(s, "CRYPTO"):
		return headline.Tag{Category: "Business", Region: "World"}
	case strings.Contains(s, "SPORT"):
		return headline.Tag{Category: "Sports", Region: "World"}
	case strings.Contains(s, "MUSIC"), strings.Contains(s, "CULTURE"):
		return headline.Tag{Category: "Culture", Region: "World"}
	case strings.Contains(s, "YOUTH"), strings.Contains(s, "POP"):
		return headline.Tag{Category: "Youth", Region: "World"}
	case strings.Contains(s, "HOUSING"), strings.Contains(s, "REAL ESTATE"):
		return headline.Tag{Category: "Real Estate", Region: "Canada"}
	case strings.Contains(s, "ENERGY"), strings.Contains(s, "RESOURCES"):
		return headline.Tag{Category: "Energy", Region: "Canada"}
	case strings.Contains(s, "TECH"):
		return headline.Tag{Category: "Tech", Region: "Canada"}
	case strings.Contains(s, "WEATHER"), strings.Contains(s, "EMERGENCY"):
		return headline.Tag{Category: "Weather", Region: "Canada"}
	case strings.Contains(s, "TRANSIT"), strings.Contains(s, "CITY SERVICE"):
		return headline.Tag{Category: "Transit", Region: "Canada"}
	case strings.Contains(s, "COURTS"), strings.Contains(s, "CRIME"), strings.Contains(s, "PUBLIC SAFETY"):
		return headline.Tag{Category: "Public Safety", Region: "Canada"}
	}
	return headline.Tag{Category: "General", Region: "World"}
}

// Load parses a feeds.txt file. Blank lines are skipped; a URL line may
// end with an " html" marker for DOM-scraped sources.
func Load(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source list: %w", err)
	}
	defer f.Close()

	var specs []Spec
	current := headline.Tag{Category: "General", Region: "World"}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				current = InferTag(m[1])
			}
			continue
		}
		spec := Spec{URL: line, Tag: current}
		if rest, ok := strings.CutSuffix(line, " html"); ok {
			spec.URL = strings.TrimSpace(rest)
			spec.HTML = true
		}
		specs = append(specs, spec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read source list: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("source list %s contains no sources", path)
	}
	return specs, nil
}
