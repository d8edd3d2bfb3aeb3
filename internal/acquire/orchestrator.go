package acquire

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/innertube"
	"github.com/snarg/ta-engine/internal/metrics"
)

// DefaultLanguage is used when a request carries no language code.
const DefaultLanguage = "en"

// Orchestrator runs the fixed source precedence for one request at a
// time. It holds no per-request state, so one instance serves any number
// of concurrent requests.
type Orchestrator struct {
	sources []Source
	log     zerolog.Logger
}

// NewOrchestrator wires the three sources in their fixed precedence.
// Dependencies are injected here; there is no global discovery.
func NewOrchestrator(primary, scraper, speech Source, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sources: []Source{primary, scraper, speech},
		log:     log,
	}
}

// Run produces exactly one Result. Data-availability failures never
// escape as errors: every attempt is recorded and the pipeline moves on
// to the next source. Only cancellation short-circuits, because it
// reflects caller intent rather than data availability.
func (o *Orchestrator) Run(ctx context.Context, videoRef, language string) Result {
	start := time.Now()
	if language == "" {
		language = DefaultLanguage
	}

	var attempts []Attempt // most recent first

	for _, src := range o.sources {
		if err := ctx.Err(); err != nil {
			return o.cancelled(videoRef, attempts, err, start)
		}

		attemptStart := time.Now()
		out, err := src.Attempt(ctx, videoRef, language)
		metrics.AcquireDurationSeconds.WithLabelValues(string(src.Name())).Observe(time.Since(attemptStart).Seconds())

		switch {
		case err != nil && ctx.Err() != nil:
			// The caller's context expired, not the source: a source's
			// own timeout triggers fallback, never a full abort.
			return o.cancelled(videoRef, attempts, ctx.Err(), start)

		case err != nil:
			attempts = prepend(attempts, Attempt{Source: src.Name(), Outcome: AttemptFailure, Error: err.Error()})
			metrics.AcquireAttemptsTotal.WithLabelValues(string(src.Name()), string(AttemptFailure)).Inc()
			o.logAttemptError(videoRef, src.Name(), err)

		case out.Usable():
			attempts = prepend(attempts, Attempt{Source: src.Name(), Outcome: AttemptSuccess})
			metrics.AcquireAttemptsTotal.WithLabelValues(string(src.Name()), string(AttemptSuccess)).Inc()

			text := out.Text
			if text == "" {
				text = JoinSegments(out.Segments)
			}
			o.log.Info().
				Str("video", videoRef).
				Str("source", string(src.Name())).
				Int("segments", len(out.Segments)).
				Msg("transcript acquired")
			return Result{
				Success:        true,
				Text:           text,
				Segments:       out.Segments,
				Source:         src.Name(),
				Attempts:       attempts,
				ElapsedSeconds: time.Since(start).Seconds(),
			}

		default:
			attempts = prepend(attempts, Attempt{Source: src.Name(), Outcome: AttemptEmpty})
			metrics.AcquireAttemptsTotal.WithLabelValues(string(src.Name()), string(AttemptEmpty)).Inc()
		}
	}

	o.log.Warn().
		Str("video", videoRef).
		Int("attempts", len(attempts)).
		Msg("all transcript sources exhausted")
	return Result{
		Success:        false,
		Source:         SourceNone,
		Error:          summarize(attempts),
		Attempts:       attempts,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
}

// logAttemptError keeps protocol breakage loud and expected absence
// quiet. A protocol error means scraping broke upstream and somebody
// should look at it; not-found is business as usual.
func (o *Orchestrator) logAttemptError(videoRef string, source SourceName, err error) {
	switch {
	case errors.Is(err, innertube.ErrProtocol):
		metrics.InnertubeProtocolErrorsTotal.Inc()
		o.log.Warn().
			Str("video", videoRef).
			Str("source", string(source)).
			Err(err).
			Msg("innertube protocol mismatch, falling back")
	case errors.Is(err, innertube.ErrNotFound):
		o.log.Debug().
			Str("video", videoRef).
			Str("source", string(source)).
			Err(err).
			Msg("no transcript at source, falling back")
	default:
		o.log.Debug().
			Str("video", videoRef).
			Str("source", string(source)).
			Err(err).
			Msg("source failed, falling back")
	}
}

func (o *Orchestrator) cancelled(videoRef string, attempts []Attempt, err error, start time.Time) Result {
	o.log.Debug().Str("video", videoRef).Err(err).Msg("acquisition cancelled")
	return Result{
		Success:        false,
		Source:         SourceNone,
		Error:          "acquisition cancelled: " + err.Error(),
		Attempts:       attempts,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
}

func prepend(attempts []Attempt, a Attempt) []Attempt {
	return append([]Attempt{a}, attempts...)
}
