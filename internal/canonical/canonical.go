// Package canonical produces stable identity keys for story URLs and
// titles. CanonicalURL must stay pure and idempotent: the canonical ID
// is a hash of its output and any drift splits story identities.
package canonical

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// trackingParams are query keys stripped during canonicalization.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"utm_name": {}, "utm_id": {}, "utm_reader": {}, "utm_cid": {},
	"fbclid": {}, "gclid": {}, "mc_cid": {}, "mc_eid": {}, "cmpid": {}, "s_kwcid": {}, "sscid": {},
	"ito": {}, "ref": {}, "smid": {}, "sref": {}, "partner": {}, "ICID": {}, "ns_campaign": {},
	"ns_mchannel": {}, "ns_source": {}, "ns_linkname": {}, "share_type": {}, "mbid": {},
	"oc": {}, "ved": {}, "ei": {}, "spm": {}, "rb_clickid": {}, "igsh": {}, "feature": {}, "source": {},
}

// CanonicalURL normalizes a link into its identity form: https scheme,
// lower-case host, one leading m./mobile. label stripped, tracking query
// params removed (remaining params keep their relative order), fragment
// dropped, one trailing slash trimmed unless the path is root.
// Unparseable input is returned unchanged.
func CanonicalURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = "https"
	host := strings.ToLower(u.Host)
	if rest, ok := strings.CutPrefix(host, "m."); ok && strings.Contains(rest, ".") {
		host = rest
	} else if rest, ok := strings.CutPrefix(host, "mobile."); ok && strings.Contains(rest, ".") {
		host = rest
	}
	u.Host = host

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	u.RawPath = ""
	u.Path = path

	if u.RawQuery != "" {
		var kept []string
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if i := strings.IndexByte(pair, '='); i >= 0 {
				key = pair[:i]
			}
			if decoded, err := url.QueryUnescape(key); err == nil {
				key = decoded
			}
			if _, skip := trackingParams[key]; skip {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}

// ID returns the stable story-instance key for a URL.
func ID(raw string) string {
	sum := sha1.Sum([]byte(CanonicalURL(raw)))
	return "u:" + hex.EncodeToString(sum[:])[:16]
}

// Host returns the lower-cased host of a URL, "" when unparseable.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// ---- title signatures ----

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// titleStopwords are dropped from token signatures. Includes newsy filler
// words so "BREAKING: x" and "x" cluster together.
var titleStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {}, "for": {},
	"with": {}, "without": {}, "in": {}, "on": {}, "at": {}, "to": {}, "from": {}, "by": {},
	"as": {}, "into": {}, "over": {}, "under": {}, "than": {}, "about": {}, "after": {}, "before": {},
	"due": {}, "will": {}, "still": {}, "just": {}, "not": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "being": {}, "been": {}, "it": {}, "its": {}, "this": {}, "that": {},
	"these": {}, "those": {},
	"live": {}, "update": {}, "updates": {}, "breaking": {}, "video": {}, "photos": {},
	"report": {}, "reports": {}, "says": {}, "say": {}, "said": {},
	"vs": {}, "game": {}, "games": {}, "preview": {}, "recap": {}, "season": {},
	"start": {}, "starts": {}, "starting": {}, "lineup": {},
	"dead": {}, "killed": {}, "kills": {}, "kill": {}, "dies": {}, "die": {},
	"injured": {}, "injures": {}, "injury": {},
	"los": {}, "angeles": {}, "new": {}, "york": {}, "la": {},
}

// StripSourceTail removes a trailing " - Outlet" / " | Outlet" suffix.
func StripSourceTail(title string) string {
	t := strings.NewReplacer("–", "-", "—", "-").Replace(title)
	if i := strings.Index(t, " | "); i >= 0 {
		t = t[:i]
	}
	if i := strings.Index(t, " - "); i >= 0 {
		t = t[:i]
	}
	return t
}

// Tokens returns the significant lower-cased title tokens. Falls back to
// the raw split when stop-word filtering removes everything.
func Tokens(title string) []string {
	base := strings.ToLower(StripSourceTail(title))
	base = punctRe.ReplaceAllString(base, " ")
	fields := strings.Fields(base)
	toks := make([]string, 0, len(fields))
	for _, t := range fields {
		if len(t) <= 1 {
			continue
		}
		if _, skip := titleStopwords[t]; skip {
			continue
		}
		toks = append(toks, t)
	}
	if len(toks) == 0 {
		return fields
	}
	return toks
}

// TokenSet returns Tokens as a set for similarity checks.
func TokenSet(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(title) {
		set[t] = struct{}{}
	}
	return set
}

// Signature hashes the first 10 unique sorted tokens into a cluster key.
func Signature(title string) string {
	uniq := make([]string, 0, 10)
	seen := make(map[string]struct{})
	for _, t := range Tokens(title) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)
	if len(uniq) > 10 {
		uniq = uniq[:10]
	}
	sum := sha1.Sum([]byte(strings.Join(uniq, "|")))
	return "t:" + hex.EncodeToString(sum[:])[:12]
}

// Jaccard computes token-set similarity in [0,1].
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
