package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/ta-engine/internal/acquire"
	"github.com/snarg/ta-engine/internal/store"
)

// TranscriptsHandler serves acquisition and cache-lookup endpoints.
type TranscriptsHandler struct {
	orch            *acquire.Orchestrator
	db              *store.DB // nil = cache disabled
	pool            *acquire.WorkerPool
	defaultLanguage string
	log             zerolog.Logger
}

// NewTranscriptsHandler creates the transcripts handler.
func NewTranscriptsHandler(orch *acquire.Orchestrator, db *store.DB, pool *acquire.WorkerPool, defaultLanguage string, log zerolog.Logger) *TranscriptsHandler {
	if defaultLanguage == "" {
		defaultLanguage = acquire.DefaultLanguage
	}
	return &TranscriptsHandler{
		orch:            orch,
		db:              db,
		pool:            pool,
		defaultLanguage: defaultLanguage,
		log:             log,
	}
}

type acquireRequest struct {
	VideoID  string `json:"video_id"`
	Language string `json:"language"`
	Refresh  bool   `json:"refresh"` // bypass the cache
}

type transcriptResponse struct {
	acquire.Result
	VideoID  string `json:"video_id"`
	Language string `json:"language"`
	Cached   bool   `json:"cached,omitempty"`
}

// Acquire handles POST /api/v1/transcripts: run the acquisition pipeline
// synchronously, consulting the cache first. The result body always
// reports the outcome; data-availability failures are a 200 with
// success=false, not an HTTP error.
func (h *TranscriptsHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	var req acquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.VideoID = strings.TrimSpace(req.VideoID)
	if req.VideoID == "" {
		WriteError(w, http.StatusBadRequest, "video_id is required")
		return
	}
	if req.Language == "" {
		req.Language = h.defaultLanguage
	}
	videoID := acquire.VideoID(req.VideoID)

	if h.db != nil && !req.Refresh {
		cached, err := h.db.LookupTranscript(r.Context(), videoID, req.Language)
		if err != nil {
			h.log.Error().Err(err).Str("video", videoID).Msg("cache lookup failed")
		} else if cached != nil {
			WriteJSON(w, http.StatusOK, transcriptResponse{
				Result: acquire.Result{
					Success:  true,
					Text:     cached.Text,
					Segments: cached.Segments,
					Source:   acquire.SourceName(cached.Source),
				},
				VideoID:  videoID,
				Language: req.Language,
				Cached:   true,
			})
			return
		}
	}

	res := h.orch.Run(r.Context(), req.VideoID, req.Language)

	if res.Success && h.db != nil {
		row := store.TranscriptRow{
			VideoID:   videoID,
			Language:  req.Language,
			Source:    res.Source,
			Text:      res.Text,
			Segments:  res.Segments,
			ElapsedMS: int(res.ElapsedSeconds * 1000),
		}
		if err := h.db.SaveTranscript(r.Context(), row); err != nil {
			h.log.Error().Err(err).Str("video", videoID).Msg("cache save failed")
		}
	}

	WriteJSON(w, http.StatusOK, transcriptResponse{
		Result:   res,
		VideoID:  videoID,
		Language: req.Language,
	})
}

type batchRequest struct {
	Videos   []string `json:"videos"`
	Language string   `json:"language"`
}

type batchResponse struct {
	Queued  int `json:"queued"`
	Dropped int `json:"dropped"`
}

// AcquireBatch handles POST /api/v1/transcripts/batch: queue videos for
// background acquisition through the worker pool.
func (h *TranscriptsHandler) AcquireBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Videos) == 0 {
		WriteError(w, http.StatusBadRequest, "videos is required")
		return
	}
	if req.Language == "" {
		req.Language = h.defaultLanguage
	}

	var resp batchResponse
	for _, v := range req.Videos {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if h.pool.Enqueue(acquire.Job{VideoRef: v, Language: req.Language}) {
			resp.Queued++
		} else {
			resp.Dropped++
		}
	}
	status := http.StatusAccepted
	if resp.Dropped > 0 {
		status = http.StatusTooManyRequests
	}
	WriteJSON(w, status, resp)
}

// Get handles GET /api/v1/transcripts/{videoID}: cached transcript only,
// never triggers acquisition.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusNotFound, "transcript cache disabled")
		return
	}
	videoID := chi.URLParam(r, "videoID")
	language, ok := QueryString(r, "language")
	if !ok {
		language = h.defaultLanguage
	}

	t, err := h.db.LookupTranscript(r.Context(), videoID, language)
	if err != nil {
		h.log.Error().Err(err).Str("video", videoID).Msg("cache lookup failed")
		WriteError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if t == nil {
		WriteError(w, http.StatusNotFound, "transcript not found")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// List handles GET /api/v1/transcripts: most recently cached transcripts.
func (h *TranscriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteJSON(w, http.StatusOK, []store.Transcript{})
		return
	}
	limit, _ := QueryInt(r, "limit")
	ts, err := h.db.RecentTranscripts(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("recent transcripts failed")
		WriteError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if ts == nil {
		ts = []store.Transcript{}
	}
	WriteJSON(w, http.StatusOK, ts)
}

// Stats handles GET /api/v1/stats.
func (h *TranscriptsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"queue":   h.pool.Stats(),
		"workers": h.pool.Workers(),
	})
}
