package innertube

import (
	"encoding/xml"
	"html"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// timedText matches YouTube's default caption XML:
//
//	<transcript>
//	  <text start="1.3" dur="2.5">escaped cue text</text>
//	  ...
//	</transcript>
type timedText struct {
	Texts []timedTextNode `xml:"text"`
}

type timedTextNode struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Body  string `xml:",chardata"`
}

// ParseTimedText parses a timed-text XML document into ordered segments,
// one per text node. Malformed documents yield an empty slice rather
// than an error: a broken caption document is indistinguishable from an
// upstream format change, and the caller already treats zero segments as
// a protocol failure.
func ParseTimedText(doc []byte, log zerolog.Logger) []Segment {
	var tt timedText
	if err := xml.Unmarshal(doc, &tt); err != nil {
		log.Debug().Err(err).Msg("malformed timed-text document")
		return nil
	}

	segments := make([]Segment, 0, len(tt.Texts))
	for _, node := range tt.Texts {
		segments = append(segments, Segment{
			Text:     normalizeCueText(node.Body),
			Start:    parseSeconds(node.Start),
			Duration: parseSeconds(node.Dur),
		})
	}
	return segments
}

// Cue text arrives with either Unix or Windows line breaks.
var cueBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// normalizeCueText unescapes HTML entities (cue text arrives escaped),
// collapses internal line breaks to spaces and trims.
func normalizeCueText(s string) string {
	s = html.UnescapeString(s)
	s = cueBreaks.Replace(s)
	return strings.TrimSpace(s)
}

// parseSeconds parses a float-seconds attribute. Missing or unparsable
// values default to 0: cue timing is best-effort and never worth failing
// a whole transcript over.
func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
