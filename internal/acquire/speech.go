package acquire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SpeechClient calls a whisper gateway that transcribes the video's
// audio remotely. It is the paid last resort: the orchestrator only
// reaches it after the primary service and the scraper both came up
// empty. Audio download and transcoding happen gateway-side; this
// process never touches media bytes.
type SpeechClient struct {
	url    string
	apiKey string
	model  string
	client *http.Client
	log    zerolog.Logger
}

type speechRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
	Model    string `json:"model,omitempty"`
}

type speechResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

// NewSpeechClient creates a whisper-gateway transcript client.
func NewSpeechClient(url, apiKey, model string, timeout time.Duration, log zerolog.Logger) *SpeechClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SpeechClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Name returns the provenance tag for this source.
func (sc *SpeechClient) Name() SourceName { return SourceSpeech }

// Model returns the configured model identifier for logs.
func (sc *SpeechClient) Model() string { return sc.model }

// Attempt submits the video for remote transcription. All failures map
// to ErrSourceUnavailable; the gateway returning empty text is an empty
// outcome, not an error.
func (sc *SpeechClient) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	if sc.url == "" {
		return Outcome{}, fmt.Errorf("%w: speech gateway not configured", ErrSourceUnavailable)
	}

	payload, err := json.Marshal(speechRequest{
		URL:      WatchURL(videoRef),
		Language: language,
		Model:    sc.model,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.url, bytes.NewReader(payload))
	if err != nil {
		return Outcome{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+sc.apiKey)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("%w: speech request: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: read speech response: %v", ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("%w: speech status %d: %s", ErrSourceUnavailable, resp.StatusCode, truncate(body, 200))
	}

	var sr speechResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return Outcome{}, fmt.Errorf("%w: decode speech response: %v", ErrSourceUnavailable, err)
	}

	sc.log.Debug().
		Str("video", videoRef).
		Float64("audio_duration", sr.Duration).
		Msg("speech gateway transcription complete")
	return Outcome{Text: sr.Text}, nil
}

// WatchURL expands a video reference to a full watch URL for backends
// that need one. References that already look like URLs pass through.
func WatchURL(ref string) string {
	if len(ref) > 4 && (ref[:4] == "http") {
		return ref
	}
	return "https://www.youtube.com/watch?v=" + VideoID(ref)
}
