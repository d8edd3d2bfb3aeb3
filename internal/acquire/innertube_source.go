package acquire

import (
	"context"

	"github.com/snarg/ta-engine/internal/innertube"
)

// InnertubeSource adapts the innertube scraper to the Source interface.
// Typed scraper errors (not-found, protocol) pass through so the
// orchestrator can log and count them distinctly.
type InnertubeSource struct {
	client *innertube.Client
}

// NewInnertubeSource wraps an innertube client as a transcript source.
func NewInnertubeSource(client *innertube.Client) *InnertubeSource {
	return &InnertubeSource{client: client}
}

// Name returns the provenance tag for this source.
func (s *InnertubeSource) Name() SourceName { return SourceInnertube }

// Attempt fetches caption segments and joins them into text. Segment
// order is preserved as received.
func (s *InnertubeSource) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	cues, err := s.client.Fetch(ctx, VideoID(videoRef), language)
	if err != nil {
		return Outcome{}, err
	}

	segments := make([]Segment, len(cues))
	for i, c := range cues {
		segments[i] = Segment{Text: c.Text, Start: c.Start, Duration: c.Duration}
	}
	return Outcome{Text: JoinSegments(segments), Segments: segments}, nil
}
