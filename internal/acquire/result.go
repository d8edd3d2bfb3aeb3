package acquire

import "fmt"

// AttemptOutcome classifies what one pipeline stage produced.
type AttemptOutcome string

const (
	AttemptSuccess AttemptOutcome = "success"
	AttemptEmpty   AttemptOutcome = "empty"
	AttemptFailure AttemptOutcome = "failure"
)

// Attempt records one source try. The slice in Result is ordered most
// recent first, so the error a human sees is the last thing that broke.
type Attempt struct {
	Source  SourceName     `json:"source"`
	Outcome AttemptOutcome `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// Result is the single unified answer for one acquisition request.
// Success implies non-empty Text or Segments and a concrete Source.
type Result struct {
	Success        bool       `json:"success"`
	Text           string     `json:"text"`
	Segments       []Segment  `json:"segments,omitempty"`
	Source         SourceName `json:"source"`
	Error          string     `json:"error,omitempty"`
	Attempts       []Attempt  `json:"attempts,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
}

// summarize builds the human-readable error for a failed result from the
// most recent attempt, retaining the rest in Attempts for telemetry.
func summarize(attempts []Attempt) string {
	for _, a := range attempts {
		if a.Error != "" {
			return fmt.Sprintf("all transcript sources exhausted, last error (%s): %s", a.Source, a.Error)
		}
	}
	return "all transcript sources exhausted without usable text"
}
