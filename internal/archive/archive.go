// Package archive persists serialized acquisition results as documents,
// on local disk or in an S3-compatible object store. Archived documents
// are an audit trail for downstream consumers; the acquisition pipeline
// never reads them back.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/config"
)

// Store abstracts result document storage backends.
type Store interface {
	// Save stores a document. key format: {video_id}/{language}.json
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for a stored document.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a document is archived.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates a Store based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, dir string, log zerolog.Logger) (Store, error) {
	if !cfg.Enabled() {
		return NewLocalStore(dir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return s3store, nil
}

// ResultKey is the archive key for one acquisition result.
func ResultKey(videoID, language string) string {
	return videoID + "/" + language + ".json"
}
