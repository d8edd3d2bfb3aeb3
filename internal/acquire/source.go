// Package acquire obtains a transcript for a video reference by trying
// ordered sources until one yields usable text: the primary metadata
// service, then the innertube scraper, then a paid speech-to-text
// gateway. Sources are tried strictly sequentially so the expensive
// fallback never runs when a cheaper source would have sufficed.
package acquire

import (
	"context"
	"errors"
	"strings"
)

// SourceName tags a result with the backend that produced it, so
// consumers can weight confidence by provenance.
type SourceName string

const (
	SourcePrimary   SourceName = "primary"
	SourceInnertube SourceName = "innertube"
	SourceSpeech    SourceName = "speech"
	SourceNone      SourceName = "none"
)

// Segment is one timed caption cue. Order is preserved as received from
// the source; segments are never re-sorted.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Outcome is what one source attempt produced. A zero Outcome with a nil
// error means the source answered but had nothing usable.
type Outcome struct {
	Text     string
	Segments []Segment
}

// Usable reports whether the outcome carries transcript content.
func (o Outcome) Usable() bool {
	return strings.TrimSpace(o.Text) != "" || len(o.Segments) > 0
}

// Source is one transcript backend. Implementations convert their
// transport-level failures to errors exactly once, at this boundary;
// "legitimately nothing there" is an empty Outcome, not an error.
type Source interface {
	Attempt(ctx context.Context, videoRef, language string) (Outcome, error)
	Name() SourceName
}

// ErrSourceUnavailable marks a network or auth failure in an external
// adapter. Orchestration treats it like an empty outcome but keeps it in
// the attempt history for diagnostics.
var ErrSourceUnavailable = errors.New("source unavailable")

// JoinSegments flattens segments into a single text, space-separated.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
