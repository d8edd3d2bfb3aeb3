// Package innertube fetches caption tracks through YouTube's internal
// player API, without an official API credential. The flow mirrors what
// the watch page itself does: scrape an ephemeral API key out of the page
// markup, call the innertube player endpoint with a spoofed client
// context, pick a caption track and download its timed-text XML.
//
// The whole approach is a reverse-engineered contract. When the page
// layout or the player response shape changes upstream, calls start
// failing with ErrProtocol; callers are expected to fall back to another
// transcript source and surface the error for maintenance.
package innertube

import "errors"

var (
	// ErrNotFound means the video has no caption track (or none in the
	// requested language when exact matching is required). Expected
	// condition, callers fall back silently.
	ErrNotFound = errors.New("captions not found")

	// ErrProtocol means the scraped page or API response no longer
	// matches the shape this client expects. Triggers fallback too, but
	// should be logged distinctly: it usually means upstream changed
	// something and this client needs updating.
	ErrProtocol = errors.New("innertube protocol mismatch")
)

// Segment is one caption cue, in source order.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`    // seconds from video start
	Duration float64 `json:"duration"` // seconds, >= 0
}

// CaptionTrack is one language variant in the player response.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}
