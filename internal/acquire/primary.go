package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// PrimaryClient queries the deployment's video metadata service, the
// highest-confidence transcript source. An empty or missing transcript
// there is normal (the service only has transcripts the publisher
// provided) and means "try the next source".
type PrimaryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// primaryTranscript outlines the fields of the service response we use.
type primaryTranscript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// NewPrimaryClient creates a metadata-service transcript client.
func NewPrimaryClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *PrimaryClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PrimaryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Name returns the provenance tag for this source.
func (p *PrimaryClient) Name() SourceName { return SourcePrimary }

// Attempt fetches the publisher transcript for the video. A 404 or an
// empty body is an empty outcome; transport and server failures map to
// ErrSourceUnavailable once, here at the adapter boundary.
func (p *PrimaryClient) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	if p.baseURL == "" {
		return Outcome{}, fmt.Errorf("%w: primary service not configured", ErrSourceUnavailable)
	}

	endpoint := fmt.Sprintf("%s/v1/videos/%s/transcript?language=%s",
		p.baseURL, url.PathEscape(VideoID(videoRef)), url.QueryEscape(language))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("%w: primary request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Outcome{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: read primary response: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("%w: primary status %d: %s", ErrSourceUnavailable, resp.StatusCode, truncate(body, 200))
	}

	var tr primaryTranscript
	if err := json.Unmarshal(body, &tr); err != nil {
		return Outcome{}, fmt.Errorf("%w: decode primary response: %v", ErrSourceUnavailable, err)
	}
	return Outcome{Text: tr.Text}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
