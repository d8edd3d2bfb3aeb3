package acquire

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/innertube"
)

// fakeSource scripts one pipeline stage and counts invocations. The
// counter is atomic because worker pool tests share one source across
// goroutines.
type fakeSource struct {
	name  SourceName
	out   Outcome
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	f.calls.Add(1)
	return f.out, f.err
}

func (f *fakeSource) Name() SourceName { return f.name }

func newTestOrchestrator(primary, scraper, speech Source) *Orchestrator {
	return NewOrchestrator(primary, scraper, speech, zerolog.Nop())
}

func TestRun_PrimaryWins(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary, out: Outcome{Text: "hello world"}}
	scraper := &fakeSource{name: SourceInnertube}
	speech := &fakeSource{name: SourceSpeech}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if !res.Success {
		t.Fatal("Success = false, want true")
	}
	if res.Source != SourcePrimary {
		t.Errorf("Source = %q, want primary", res.Source)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want hello world", res.Text)
	}
	// Later stages must never run once a source succeeds.
	if scraper.calls.Load() != 0 || speech.calls.Load() != 0 {
		t.Errorf("calls = scraper:%d speech:%d, want 0/0", scraper.calls.Load(), speech.calls.Load())
	}
	if res.ElapsedSeconds < 0 {
		t.Errorf("ElapsedSeconds = %v, want >= 0", res.ElapsedSeconds)
	}
}

func TestRun_InnertubeFallback(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary} // empty
	scraper := &fakeSource{name: SourceInnertube, out: Outcome{
		Text: "Hi there",
		Segments: []Segment{
			{Text: "Hi", Start: 0.0, Duration: 1.2},
			{Text: "there", Start: 1.2, Duration: 0.8},
		},
	}}
	speech := &fakeSource{name: SourceSpeech}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if !res.Success || res.Source != SourceInnertube {
		t.Fatalf("got success=%v source=%q, want true/innertube", res.Success, res.Source)
	}
	if res.Text != "Hi there" {
		t.Errorf("Text = %q, want Hi there", res.Text)
	}
	if len(res.Segments) != 2 {
		t.Errorf("len(Segments) = %d, want 2", len(res.Segments))
	}
	if speech.calls.Load() != 0 {
		t.Errorf("speech.calls = %d, want 0", speech.calls.Load())
	}
}

func TestRun_SpeechFallback(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary} // empty
	scraper := &fakeSource{name: SourceInnertube, err: fmt.Errorf("%w: no captions", innertube.ErrNotFound)}
	speech := &fakeSource{name: SourceSpeech, out: Outcome{Text: "fallback transcript"}}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if !res.Success || res.Source != SourceSpeech {
		t.Fatalf("got success=%v source=%q, want true/speech", res.Success, res.Source)
	}
	if res.Text != "fallback transcript" {
		t.Errorf("Text = %q", res.Text)
	}
	if speech.calls.Load() != 1 {
		t.Errorf("speech.calls = %d, want exactly 1", speech.calls.Load())
	}
}

func TestRun_ProtocolErrorStillFallsBack(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary}
	scraper := &fakeSource{name: SourceInnertube, err: fmt.Errorf("%w: key not found", innertube.ErrProtocol)}
	speech := &fakeSource{name: SourceSpeech, out: Outcome{Text: "still works"}}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if !res.Success || res.Source != SourceSpeech {
		t.Fatalf("got success=%v source=%q, want true/speech", res.Success, res.Source)
	}
}

func TestRun_TotalFailure(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary, err: fmt.Errorf("%w: connection refused", ErrSourceUnavailable)}
	scraper := &fakeSource{name: SourceInnertube, err: fmt.Errorf("%w: no captions", innertube.ErrNotFound)}
	speech := &fakeSource{name: SourceSpeech, err: fmt.Errorf("%w: 503", ErrSourceUnavailable)}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Source != SourceNone {
		t.Errorf("Source = %q, want none", res.Source)
	}
	if res.Error == "" {
		t.Error("Error is empty, want aggregate summary")
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("len(Attempts) = %d, want 3", len(res.Attempts))
	}
	// Most recent attempt surfaces first.
	if res.Attempts[0].Source != SourceSpeech {
		t.Errorf("Attempts[0].Source = %q, want speech", res.Attempts[0].Source)
	}
	if res.Attempts[2].Source != SourcePrimary {
		t.Errorf("Attempts[2].Source = %q, want primary", res.Attempts[2].Source)
	}
}

func TestRun_AllEmpty(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary}
	scraper := &fakeSource{name: SourceInnertube}
	speech := &fakeSource{name: SourceSpeech}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if res.Success || res.Source != SourceNone {
		t.Fatalf("got success=%v source=%q, want false/none", res.Success, res.Source)
	}
	for _, a := range res.Attempts {
		if a.Outcome != AttemptEmpty {
			t.Errorf("attempt %s outcome = %q, want empty", a.Source, a.Outcome)
		}
	}
}

func TestRun_SuccessInvariant(t *testing.T) {
	// Whitespace-only text is not usable; pipeline must keep going.
	primary := &fakeSource{name: SourcePrimary, out: Outcome{Text: "   "}}
	scraper := &fakeSource{name: SourceInnertube}
	speech := &fakeSource{name: SourceSpeech}

	res := newTestOrchestrator(primary, scraper, speech).Run(context.Background(), "vid123", "en")

	if res.Success {
		t.Error("whitespace-only text must not be a success")
	}
	if scraper.calls.Load() != 1 || speech.calls.Load() != 1 {
		t.Errorf("calls = scraper:%d speech:%d, want 1/1", scraper.calls.Load(), speech.calls.Load())
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	primary := &fakeSource{name: SourcePrimary, out: Outcome{Text: "hello"}}
	scraper := &fakeSource{name: SourceInnertube}
	speech := &fakeSource{name: SourceSpeech}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestOrchestrator(primary, scraper, speech).Run(ctx, "vid123", "en")

	if res.Success {
		t.Fatal("Success = true after cancellation, want false")
	}
	if res.Source != SourceNone {
		t.Errorf("Source = %q, want none", res.Source)
	}
	if primary.calls.Load() != 0 {
		t.Errorf("primary.calls = %d, want 0", primary.calls.Load())
	}
}

func TestRun_CancelledMidPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	primary := &fakeSource{name: SourcePrimary}
	// Simulate the caller cancelling while the scraper is in flight.
	scraper := &cancellingSource{cancel: cancel}
	speech := &fakeSource{name: SourceSpeech, out: Outcome{Text: "never reached"}}

	res := newTestOrchestrator(primary, scraper, speech).Run(ctx, "vid123", "en")

	if res.Success {
		t.Fatal("partial results must never surface as success")
	}
	if speech.calls.Load() != 0 {
		t.Errorf("speech.calls = %d, want 0 (cancellation bypasses remaining stages)", speech.calls.Load())
	}
}

type cancellingSource struct {
	cancel context.CancelFunc
}

func (c *cancellingSource) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	c.cancel()
	return Outcome{}, ctx.Err()
}

func (c *cancellingSource) Name() SourceName { return SourceInnertube }

func TestRun_DefaultLanguage(t *testing.T) {
	var gotLang string
	primary := &recordingSource{name: SourcePrimary, lang: &gotLang, out: Outcome{Text: "x"}}
	scraper := &fakeSource{name: SourceInnertube}
	speech := &fakeSource{name: SourceSpeech}

	o := NewOrchestrator(primary, scraper, speech, zerolog.Nop())
	o.Run(context.Background(), "vid123", "")

	if gotLang != DefaultLanguage {
		t.Errorf("language = %q, want %q", gotLang, DefaultLanguage)
	}
}

type recordingSource struct {
	name SourceName
	lang *string
	out  Outcome
}

func (r *recordingSource) Attempt(ctx context.Context, videoRef, language string) (Outcome, error) {
	*r.lang = language
	return r.out, nil
}

func (r *recordingSource) Name() SourceName { return r.name }

func TestSummarize(t *testing.T) {
	got := summarize([]Attempt{
		{Source: SourceSpeech, Outcome: AttemptFailure, Error: "gateway 503"},
		{Source: SourcePrimary, Outcome: AttemptEmpty},
	})
	if want := "all transcript sources exhausted, last error (speech): gateway 503"; got != want {
		t.Errorf("summarize = %q, want %q", got, want)
	}

	if got := summarize(nil); got != "all transcript sources exhausted without usable text" {
		t.Errorf("summarize(nil) = %q", got)
	}
}

func TestJoinSegments(t *testing.T) {
	got := JoinSegments([]Segment{{Text: "Hi"}, {Text: ""}, {Text: "there"}})
	if got != "Hi there" {
		t.Errorf("JoinSegments = %q, want %q", got, "Hi there")
	}
}
