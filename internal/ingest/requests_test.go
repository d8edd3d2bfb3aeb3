package ingest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/acquire"
)

// fakePool records enqueued jobs and can simulate a full queue.
type fakePool struct {
	jobs []acquire.Job
	full bool
}

func (f *fakePool) Enqueue(j acquire.Job) bool {
	if f.full {
		return false
	}
	f.jobs = append(f.jobs, j)
	return true
}

func TestHandle(t *testing.T) {
	pool := &fakePool{}
	l := NewListener(pool, "en", zerolog.Nop())

	l.Handle("transcripts/request", []byte(`{"video_id":"dQw4w9WgXcQ","language":"de"}`))

	if len(pool.jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(pool.jobs))
	}
	if pool.jobs[0].VideoRef != "dQw4w9WgXcQ" {
		t.Errorf("VideoRef = %q", pool.jobs[0].VideoRef)
	}
	if pool.jobs[0].Language != "de" {
		t.Errorf("Language = %q, want de", pool.jobs[0].Language)
	}
}

func TestHandle_DefaultLanguage(t *testing.T) {
	pool := &fakePool{}
	l := NewListener(pool, "en", zerolog.Nop())

	l.Handle("transcripts/request", []byte(`{"video_id":"dQw4w9WgXcQ"}`))

	if len(pool.jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(pool.jobs))
	}
	if pool.jobs[0].Language != "en" {
		t.Errorf("Language = %q, want en", pool.jobs[0].Language)
	}
}

func TestHandle_DropsBadPayloads(t *testing.T) {
	pool := &fakePool{}
	l := NewListener(pool, "en", zerolog.Nop())

	l.Handle("transcripts/request", []byte(`not json`))
	l.Handle("transcripts/request", []byte(`{}`))
	l.Handle("transcripts/request", []byte(`{"video_id":"   "}`))

	if len(pool.jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(pool.jobs))
	}
}

func TestHandle_QueueFull(t *testing.T) {
	pool := &fakePool{full: true}
	l := NewListener(pool, "en", zerolog.Nop())

	// Must not panic or retry; the message is dropped.
	l.Handle("transcripts/request", []byte(`{"video_id":"dQw4w9WgXcQ"}`))

	if len(pool.jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(pool.jobs))
	}
}
