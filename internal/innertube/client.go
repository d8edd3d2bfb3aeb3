package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultWatchURL  = "https://www.youtube.com/watch?v="
	defaultPlayerURL = "https://www.youtube.com/youtubei/v1/player?key="

	// Desktop Chrome profile. Load-bearing: mobile and bot user agents
	// get served markup without the INNERTUBE_API_KEY field.
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultTimeout = 30 * time.Second
)

var apiKeyRe = regexp.MustCompile(`"INNERTUBE_API_KEY"\s*:\s*"([a-zA-Z0-9_-]+)"`)

// fmt overrides at the tail of a caption baseUrl select alternate caption
// formats (srv3, json3). Stripping them pins the default XML format.
var fmtOverrideRe = regexp.MustCompile(`&fmt=\w+$`)

// Options configures a Client.
type Options struct {
	// HTTPClient is an optional shared client. When nil, each Fetch
	// builds its own client scoped to that single call.
	HTTPClient *http.Client

	UserAgent string
	Timeout   time.Duration

	// Client context sent with the player request. The endpoint silently
	// degrades or empties its response without one, so zero values are
	// replaced with a known-good web client profile.
	ClientName    string
	ClientVersion string
	Locale        string // hl, e.g. "en"
	Region        string // gl, e.g. "US"

	// RequireLanguage turns a language mismatch into ErrNotFound instead
	// of silently substituting the first listed track.
	RequireLanguage bool

	// RequestsPerMinute caps watch-page requests across calls; too many
	// in a short window gets the client captcha-walled. 0 disables.
	RequestsPerMinute int

	Log zerolog.Logger
}

// Client fetches transcripts through the innertube player API.
// Safe for concurrent use; no state is shared across calls except the
// optional HTTP client and rate limiter.
type Client struct {
	shared    *http.Client
	userAgent string
	timeout   time.Duration

	clientName    string
	clientVersion string
	locale        string
	region        string

	requireLanguage bool
	limiter         *rate.Limiter
	log             zerolog.Logger

	// Overridable in tests.
	watchURL  string
	playerURL string
}

// NewClient creates an innertube transcript client.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "WEB"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "2.20240726.00.00"
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}
	if opts.Region == "" {
		opts.Region = "US"
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), opts.RequestsPerMinute)
	}

	return &Client{
		shared:          opts.HTTPClient,
		userAgent:       opts.UserAgent,
		timeout:         opts.Timeout,
		clientName:      opts.ClientName,
		clientVersion:   opts.ClientVersion,
		locale:          opts.Locale,
		region:          opts.Region,
		requireLanguage: opts.RequireLanguage,
		limiter:         limiter,
		log:             opts.Log,
		watchURL:        defaultWatchURL,
		playerURL:       defaultPlayerURL,
	}
}

// playerResponse outlines the parts of the player JSON we actually use.
type playerResponse struct {
	Captions struct {
		Renderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// Fetch returns the ordered caption segments for the video's transcript
// in the requested language (exact match preferred, first listed track
// otherwise). It fails with ErrNotFound when no usable track exists and
// ErrProtocol when the scraped contract no longer holds.
func (c *Client) Fetch(ctx context.Context, videoID, language string) ([]Segment, error) {
	hc := c.shared
	if hc == nil {
		// Scoped to this call; idle connections released on every path.
		hc = &http.Client{Timeout: c.timeout}
		defer hc.CloseIdleConnections()
	}

	page, err := c.fetchWatchPage(ctx, hc, videoID)
	if err != nil {
		return nil, err
	}

	apiKey, err := extractAPIKey(page)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetchPlayerResponse(ctx, hc, apiKey, videoID)
	if err != nil {
		return nil, err
	}

	track, err := c.selectTrack(resp.Captions.Renderer.CaptionTracks, language)
	if err != nil {
		return nil, err
	}

	doc, err := c.fetchTimedText(ctx, hc, StripFormatOverride(track.BaseURL))
	if err != nil {
		return nil, err
	}

	segments := ParseTimedText(doc, c.log)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: empty transcript for video %q track %q", ErrProtocol, videoID, track.LanguageCode)
	}
	return segments, nil
}

func (c *Client) fetchWatchPage(ctx context.Context, hc *http.Client, videoID string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchURL+videoID, nil)
	if err != nil {
		return nil, fmt.Errorf("watch page request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US")

	body, err := c.do(hc, req, "watch page")
	if err != nil {
		return nil, err
	}
	return body, nil
}

func extractAPIKey(page []byte) (string, error) {
	if m := apiKeyRe.FindSubmatch(page); len(m) == 2 {
		return string(m[1]), nil
	}
	if bytes.Contains(page, []byte(`class="g-recaptcha"`)) {
		return "", fmt.Errorf("%w: watch page served a captcha", ErrProtocol)
	}
	return "", fmt.Errorf("%w: key not found in watch page", ErrProtocol)
}

func (c *Client) fetchPlayerResponse(ctx context.Context, hc *http.Client, apiKey, videoID string) (*playerResponse, error) {
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]string{
				"clientName":    c.clientName,
				"clientVersion": c.clientVersion,
				"hl":            c.locale,
				"gl":            c.region,
			},
		},
		"videoId": videoID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal player request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.playerURL+apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("player request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en-US")

	respBody, err := c.do(hc, req, "player")
	if err != nil {
		return nil, err
	}

	var resp playerResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode player response: %v", ErrProtocol, err)
	}

	if st := resp.PlayabilityStatus.Status; st != "" && st != "OK" {
		return nil, fmt.Errorf("%w: video %q not playable (%s): %s", ErrNotFound, videoID, st, resp.PlayabilityStatus.Reason)
	}
	return &resp, nil
}

// selectTrack picks the track for the requested language. Exact match
// wins; otherwise the first listed track is substituted unless the
// client was configured to require the language.
func (c *Client) selectTrack(tracks []CaptionTrack, language string) (*CaptionTrack, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no captions", ErrNotFound)
	}
	for i := range tracks {
		if tracks[i].LanguageCode == language {
			return &tracks[i], nil
		}
	}
	if c.requireLanguage {
		return nil, fmt.Errorf("%w: no %q caption track", ErrNotFound, language)
	}
	c.log.Debug().
		Str("want", language).
		Str("got", tracks[0].LanguageCode).
		Msg("no exact language match, substituting first track")
	return &tracks[0], nil
}

// StripFormatOverride removes a trailing &fmt=<word> fragment from a
// caption track URL so the default XML format is returned. Idempotent.
func StripFormatOverride(baseURL string) string {
	return fmtOverrideRe.ReplaceAllString(baseURL, "")
}

func (c *Client) fetchTimedText(ctx context.Context, hc *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("timed-text request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	return c.do(hc, req, "timed-text")
}

// do runs one request and classifies transport failures. Cancellation
// propagates as the context error; everything else at this layer means
// the scraping contract is not being honored and maps to ErrProtocol.
func (c *Client) do(hc *http.Client, req *http.Request, stage string) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// A client-side timeout also matches context.DeadlineExceeded,
		// but the caller's ctx is still alive here, so it classifies as
		// a protocol failure like any other transport error.
		return nil, fmt.Errorf("%w: %s request: %v", ErrProtocol, stage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrProtocol, stage, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s status %d", ErrProtocol, stage, resp.StatusCode)
	}
	return body, nil
}
