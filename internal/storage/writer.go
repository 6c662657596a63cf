package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// WriteJob represents a unit of work to execute against the database.
type WriteJob interface {
	Execute(ctx context.Context, db DB) error
}

// WriteJobFunc adapts a function into a WriteJob.
type WriteJobFunc func(ctx context.Context, db DB) error

func (f WriteJobFunc) Execute(ctx context.Context, db DB) error {
	return f(ctx, db)
}

// BatchWriter runs write jobs on one goroutine, a batch at a time. Enqueue never
// blocks the caller; when the queue is full the job is dropped.
type BatchWriter struct {
	db        DB
	jobs      chan WriteJob
	batchSize int
	interval  time.Duration
	dropped   atomic.Int64
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewBatchWriter(db DB, bufferSize, batchSize int, interval time.Duration) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	w := &BatchWriter{
		db:        db,
		jobs:      make(chan WriteJob, bufferSize),
		batchSize: batchSize,
		interval:  interval,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue reports whether the job was queued.
func (w *BatchWriter) Enqueue(job WriteJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}

	select {
	case w.jobs <- job:
		return true
	default:
		w.dropped.Add(1)
		log.Warn().Int64("dropped", w.dropped.Load()).Msg("write queue full, dropping job")
		return false
	}
}

func (w *BatchWriter) Dropped() int64 { return w.dropped.Load() }

func (w *BatchWriter) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]WriteJob, 0, w.batchSize)

	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				w.flush(batch)
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *BatchWriter) flush(batch []WriteJob) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, job := range batch {
		if err := job.Execute(ctx, w.db); err != nil {
			failed++
			log.Error().Err(err).Msg("write job failed")
		}
	}
	log.Debug().Int("jobs", len(batch)).Int("failed", failed).Msg("write batch flushed")
}

// Shutdown drains queued jobs and stops the writer. Later calls are no-ops.
func (w *BatchWriter) Shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
}
