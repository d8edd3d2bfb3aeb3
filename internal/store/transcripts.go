package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/snarg/ta-engine/internal/acquire"
)

// TranscriptRow is the input for caching one acquired transcript.
type TranscriptRow struct {
	VideoID   string
	Language  string
	Source    acquire.SourceName
	Text      string
	Segments  []acquire.Segment
	ElapsedMS int
}

// Transcript is the cached representation for API responses.
type Transcript struct {
	VideoID   string            `json:"video_id"`
	Language  string            `json:"language"`
	Source    string            `json:"source"`
	Text      string            `json:"text"`
	Segments  []acquire.Segment `json:"segments,omitempty"`
	ElapsedMS int               `json:"elapsed_ms"`
	CreatedAt time.Time         `json:"created_at"`
}

// SaveTranscript upserts a transcript. Later acquisitions for the same
// (video, language) replace the cached row.
func (db *DB) SaveTranscript(ctx context.Context, row TranscriptRow) error {
	var segments []byte
	if len(row.Segments) > 0 {
		var err error
		segments, err = json.Marshal(row.Segments)
		if err != nil {
			return fmt.Errorf("marshal segments: %w", err)
		}
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO transcripts (video_id, language, source, text, segments, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id, language) DO UPDATE
		SET source = EXCLUDED.source,
		    text = EXCLUDED.text,
		    segments = EXCLUDED.segments,
		    elapsed_ms = EXCLUDED.elapsed_ms,
		    created_at = now()`,
		row.VideoID, row.Language, string(row.Source), row.Text, segments, row.ElapsedMS)
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// LookupTranscript returns the cached transcript or nil when absent.
func (db *DB) LookupTranscript(ctx context.Context, videoID, language string) (*Transcript, error) {
	var (
		t        Transcript
		segments []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT video_id, language, source, text, segments, elapsed_ms, created_at
		FROM transcripts
		WHERE video_id = $1 AND language = $2`,
		videoID, language).
		Scan(&t.VideoID, &t.Language, &t.Source, &t.Text, &segments, &t.ElapsedMS, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup transcript: %w", err)
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &t.Segments); err != nil {
			return nil, fmt.Errorf("decode cached segments: %w", err)
		}
	}
	return &t, nil
}

// RecentTranscripts lists the most recently cached transcripts.
func (db *DB) RecentTranscripts(ctx context.Context, limit int) ([]Transcript, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT video_id, language, source, text, elapsed_ms, created_at
		FROM transcripts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transcripts: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		var t Transcript
		if err := rows.Scan(&t.VideoID, &t.Language, &t.Source, &t.Text, &t.ElapsedMS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
