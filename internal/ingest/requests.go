// Package ingest feeds acquisition requests arriving over MQTT into the
// worker pool.
package ingest

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/acquire"
	"github.com/snarg/ta-engine/internal/metrics"
)

// Enqueuer is the part of the worker pool the listener needs.
type Enqueuer interface {
	Enqueue(acquire.Job) bool
}

// Listener decodes acquisition request messages and queues them.
type Listener struct {
	pool Enqueuer
	log  zerolog.Logger

	defaultLanguage string
}

// NewListener creates an MQTT request listener.
func NewListener(pool Enqueuer, defaultLanguage string, log zerolog.Logger) *Listener {
	if defaultLanguage == "" {
		defaultLanguage = acquire.DefaultLanguage
	}
	return &Listener{pool: pool, defaultLanguage: defaultLanguage, log: log}
}

// Handle processes one request message. Payload:
//
//	{"video_id": "...", "language": "en"}
//
// Bad payloads and queue overflow are logged and dropped; MQTT requests
// are fire-and-forget, the sender watches the result topic.
func (l *Listener) Handle(topic string, payload []byte) {
	metrics.MQTTMessagesTotal.Inc()

	var job acquire.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Msg("bad acquisition request payload")
		return
	}
	job.VideoRef = strings.TrimSpace(job.VideoRef)
	if job.VideoRef == "" {
		l.log.Warn().Str("topic", topic).Msg("acquisition request without video_id")
		return
	}
	if job.Language == "" {
		job.Language = l.defaultLanguage
	}

	if !l.pool.Enqueue(job) {
		l.log.Warn().Str("video", job.VideoRef).Msg("acquisition queue full, dropping request")
		return
	}
	l.log.Debug().Str("video", job.VideoRef).Str("language", job.Language).Msg("acquisition request queued")
}
