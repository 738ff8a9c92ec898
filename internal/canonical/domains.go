package canonical

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// PreferredDomains break ties toward primary/original outlets and regulators.
var PreferredDomains = map[string]struct{}{
	"cbc.ca": {}, "globalnews.ca": {}, "ctvnews.ca": {}, "blogto.com": {}, "toronto.citynews.ca": {},
	"nhl.com": {}, "mlbtraderumors.com": {},
	"bankofcanada.ca": {}, "federalreserve.gov": {}, "bls.gov": {}, "statcan.gc.ca": {},
	"sec.gov": {}, "cftc.gov": {}, "marketwatch.com": {},
	"coindesk.com": {}, "cointelegraph.com": {},
}

// Press-wire releases duplicate across outlets; both the wire hosts and
// republished paths are demoted.
var pressWireDomains = map[string]struct{}{
	"globenewswire.com": {}, "newswire.ca": {}, "prnewswire.com": {},
	"businesswire.com": {}, "accesswire.com": {},
}

var pressWirePathHints = []string{"/globe-newswire", "/globenewswire", "/business-wire", "/newswire/"}

var aggregatorHint = regexp.MustCompile(`(?i)(news\.google|news\.yahoo|apple\.news|feedproxy|flipboard)\b`)

// IsPressWire reports whether a URL points at a press-release wire.
func IsPressWire(rawURL string) bool {
	if _, ok := pressWireDomains[Host(rawURL)]; ok {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, hint := range pressWirePathHints {
		if strings.Contains(u.Path, hint) {
			return true
		}
	}
	return false
}

// LooksAggregator reports whether source label or link smells like a
// news aggregator or wire republisher.
func LooksAggregator(source, link string) bool {
	if aggregatorHint.MatchString(source + " " + link) {
		return true
	}
	return IsPressWire(link)
}

// IsPreferred reports whether the URL's host is on the preferred list.
func IsPreferred(rawURL string) bool {
	_, ok := PreferredDomains[Host(rawURL)]
	return ok
}

// ---- trust / paywall / opinion heuristics ----

const trustDefault = 0.5

var trustMap = map[string]float64{
	"reuters.com": 0.95, "apnews.com": 0.92, "cbc.ca": 0.90, "bbc.com": 0.90,
	"theglobeandmail.com": 0.88, "ft.com": 0.90, "aljazeera.com": 0.85,
	"bnnbloomberg.ca": 0.82, "globeandmail": 0.88, "financialpost.com": 0.72,
	"globalnews.ca": 0.78, "mining.com": 0.75, "techmeme.com": 0.70,

	"nationalpost.com": 0.60, "westernstandard.news": 0.45, "postmillennial": 0.35,

	"news.google.com": 0.10, "news.yahoo.com": 0.10, "news.msn.com": 0.10,
	"flipboard.com": 0.10, "apple.news": 0.10,
}

// trustKeys holds the map keys sorted, so the label fallback scan below
// is deterministic when a label matches more than one key.
var trustKeys = func() []string {
	keys := make([]string, 0, len(trustMap))
	for k := range trustMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}()

// TrustFor returns a 0..1 trust estimate for a host; source label keywords
// are consulted when the host is unknown. Unknowns get 0.5.
func TrustFor(host, source string) float64 {
	if v, ok := trustMap[strings.TrimPrefix(host, "www.")]; ok {
		return v
	}
	if source != "" {
		s := strings.ToLower(source)
		for _, key := range trustKeys {
			if strings.Contains(s, key) {
				return trustMap[key]
			}
		}
	}
	return trustDefault
}

var paywallDomains = []string{
	"ft.com", "wsj.com", "theglobeandmail.com", "bloomberg.com", "nytimes.com",
	"economist.com", "latimes.com", "thelogic.co", "nationalpost.com", "financialpost.com",
}

// LooksPaywalled is a light domain heuristic, expanded over time.
func LooksPaywalled(rawURL string) bool {
	host := Host(rawURL)
	for _, d := range paywallDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

var (
	opinionTitleRe = regexp.MustCompile(`(?i)\b(opinion|op-?ed|analysis|commentary|column)\b`)
	opinionPathRe  = regexp.MustCompile(`(?i)/(opinion|commentary|analysis|column)s?/`)
)

// LooksOpinion flags opinion/analysis pieces by title or URL path.
func LooksOpinion(rawURL, title string) bool {
	if title != "" && opinionTitleRe.MatchString(title) {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return opinionPathRe.MatchString(u.Path)
}
