package headline

import "time"

// Tag is the coarse {category, region} label inherited from the
// feeds.txt section header a source was listed under.
type Tag struct {
	Category string `json:"category"`
	Region   string `json:"region"`
}

// Effects are the front-end display flags derived from the score.
type Effects struct {
	Lightsaber bool     `json:"lightsaber"`
	Glitch     bool     `json:"glitch"`
	Reasons    []string `json:"reasons"`
	DecayUTC   string   `json:"decay_utc,omitempty"`
}

// Item is the unit flowing through the pipeline after canonicalization.
// JSON field names match the headlines.json wire format.
type Item struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Source       string `json:"source"`
	PublishedUTC string `json:"published_utc"`
	Category     string `json:"category"`
	Region       string `json:"region"`

	CanonicalURL string `json:"canonical_url"`
	CanonicalID  string `json:"canonical_id"`
	ClusterID    string `json:"cluster_id"`

	Trust     float64 `json:"trust"`
	Paywalled bool    `json:"paywalled,omitempty"`
	Opinion   bool    `json:"opinion,omitempty"`

	ClusterRank   int  `json:"cluster_rank,omitempty"`
	ClusterLatest bool `json:"cluster_latest"`

	Score           float64            `json:"score"`
	ScoreComponents map[string]float64 `json:"score_components,omitempty"`
	Effects         Effects            `json:"effects"`
}

// PublishedTime parses the stored timestamp; zero time on failure.
func (it *Item) PublishedTime() time.Time {
	t, err := time.Parse(time.RFC3339, it.PublishedUTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Unix returns the published time as epoch seconds, 0 when unparseable.
// Items with no usable timestamp sort last.
func (it *Item) Unix() int64 {
	t := it.PublishedTime()
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
