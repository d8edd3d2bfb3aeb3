package acquire

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Job is one queued acquisition request, from MQTT or the batch API.
type Job struct {
	VideoRef string `json:"video_id"`
	Language string `json:"language,omitempty"`
}

// QueueStats reports the current state of the acquisition queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// ResultFunc receives every finished job. Wiring decides what to do with
// the result (persist, archive, publish); the pool itself only acquires.
type ResultFunc func(ctx context.Context, job Job, res Result)

// WorkerPoolOptions configures the acquisition worker pool.
type WorkerPoolOptions struct {
	Orchestrator *Orchestrator
	Workers      int
	QueueSize    int
	OnResult     ResultFunc
	Log          zerolog.Logger
}

// WorkerPool runs queued acquisitions concurrently. Each job is an
// independent request; workers share nothing but the queue.
type WorkerPool struct {
	jobs   chan Job
	orch   *Orchestrator
	opts   WorkerPoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders Enqueue sends against the close in Stop so a late
	// producer gets false instead of a send on a closed channel.
	mu      sync.RWMutex
	stopped bool

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates an acquisition worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:   make(chan Job, opts.QueueSize),
		orch:   opts.Orchestrator,
		opts:   opts,
		log:    opts.Log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().Int("workers", wp.opts.Workers).Int("queue_size", wp.opts.QueueSize).Msg("acquisition worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("acquisition worker pool stopped")
}

// Enqueue adds a job to the queue. Returns false if the queue is full
// or the pool has been stopped.
func (wp *WorkerPool) Enqueue(j Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return false
	}
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.opts.Workers }

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		res := wp.orch.Run(wp.ctx, job.VideoRef, job.Language)
		if res.Success {
			wp.completed.Add(1)
		} else {
			wp.failed.Add(1)
			log.Warn().
				Str("video", job.VideoRef).
				Str("error", res.Error).
				Msg("acquisition failed")
		}
		if wp.opts.OnResult != nil {
			wp.opts.OnResult(wp.ctx, job, res)
		}
	}
}
