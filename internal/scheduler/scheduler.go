// Package scheduler owns job admission and serialized execution. Jobs are
// held in a strict FIFO queue and driven one at a time through the pipeline;
// the busy flag is checked-and-set atomically with the dequeue so at most
// one job is ever in a non-queued, non-terminal state.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

// Runner executes the full fetch-to-publish pipeline for one job. It reports
// stage progress by advancing the job's state and returns the first stage
// failure, leaving terminal bookkeeping to the scheduler.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// Config tunes the scheduler.
type Config struct {
	// RetainTerminal bounds how many completed/failed jobs stay queryable.
	// Oldest terminal jobs are evicted first. Zero means the default.
	RetainTerminal int
}

const defaultRetainTerminal = 256

// Scheduler is the admission and serialization point for transcode jobs.
type Scheduler struct {
	log    *logger.Logger
	runner Runner
	ctx    context.Context
	retain int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*Job
	jobs     map[string]*Job
	terminal []string
	busy     bool
	closed   bool
	seq      uint64
}

// New creates a scheduler. ctx is the base context for job execution; it
// outlives any single HTTP request.
func New(ctx context.Context, runner Runner, log *logger.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = logger.NewDefault()
	}
	retain := cfg.RetainTerminal
	if retain <= 0 {
		retain = defaultRetainTerminal
	}
	s := &Scheduler{
		log:    log.WithComponent("scheduler"),
		runner: runner,
		ctx:    ctx,
		retain: retain,
		jobs:   make(map[string]*Job),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Submit validates and enqueues a job, dispatching the queue head if the
// scheduler is idle. It never blocks on pipeline work. The returned position
// is the job's 1-based rank among queued jobs at the instant of enqueue.
func (s *Scheduler) Submit(source ports.ObjectRef, outputPrefix string) (string, int, error) {
	if strings.TrimSpace(source.Bucket) == "" {
		return "", 0, errors.InvalidRequestField("bucket", "bucket is required")
	}
	if strings.TrimSpace(source.Key) == "" {
		return "", 0, errors.InvalidRequestField("key", "key is required")
	}
	if strings.TrimSpace(outputPrefix) == "" {
		return "", 0, errors.InvalidRequestField("outputPrefix", "outputPrefix is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", 0, errors.New(errors.CodeUnavailable, "scheduler is shutting down")
	}

	s.seq++
	job := &Job{
		ID:           fmt.Sprintf("job_%06d", s.seq),
		Source:       source,
		OutputPrefix: strings.TrimSuffix(outputPrefix, "/"),
		CreatedAt:    time.Now().UTC(),
		state:        StateQueued,
	}
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job)
	position := len(s.queue)
	s.dispatchLocked()
	s.mu.Unlock()

	s.log.Info("job submitted",
		"job_id", job.ID,
		"bucket", source.Bucket,
		"key", source.Key,
		"position", position,
	)

	return job.ID, position, nil
}

// Status returns a snapshot of the job and, while it is queued, its 1-based
// queue position. Unknown or evicted ids yield CodeNotFound.
func (s *Scheduler) Status(id string) (Snapshot, int, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	position := 0
	if ok {
		for i, queued := range s.queue {
			if queued == job {
				position = i + 1
				break
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return Snapshot{}, 0, errors.NotFound("job", id)
	}
	return job.Snapshot(), position, nil
}

// Stats reports the queue length and whether a job is executing.
func (s *Scheduler) Stats() (queueLength int, busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), s.busy
}

// dispatchLocked starts the queue head when no job is executing. Must be
// called with s.mu held; the busy flag and the dequeue stay atomic.
func (s *Scheduler) dispatchLocked() {
	if s.closed || s.busy || len(s.queue) == 0 {
		return
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.busy = true
	go s.execute(job)
}

// execute runs one job through the pipeline and then unconditionally hands
// control back to the queue, so a failed job never stalls the ones behind it.
func (s *Scheduler) execute(job *Job) {
	ctx := logger.ContextWithJobID(s.ctx, job.ID)
	log := s.log.WithJobID(job.ID)

	job.start()
	log.Info("job started", "bucket", job.Source.Bucket, "key", job.Source.Key)
	startTime := time.Now()

	err := s.runner.Run(ctx, job)
	if err != nil {
		coded := asCoded(err)
		job.fail(coded)
		s.log.LogError(ctx, "job failed", coded,
			"code", string(coded.Code),
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	} else {
		job.complete()
		log.Info("job completed",
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}

	s.mu.Lock()
	s.retireLocked(job)
	s.busy = false
	s.dispatchLocked()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// retireLocked records a terminal job in the retention ring, evicting the
// oldest terminal job once the ring is full.
func (s *Scheduler) retireLocked(job *Job) {
	s.terminal = append(s.terminal, job.ID)
	for len(s.terminal) > s.retain {
		evicted := s.terminal[0]
		s.terminal = s.terminal[1:]
		delete(s.jobs, evicted)
	}
}

// WaitIdle blocks until the queue is empty and no job is executing, or the
// context is done.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.busy || len(s.queue) > 0 {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Wake the waiter so its goroutine can exit.
		s.cond.Broadcast()
		return ctx.Err()
	}
}

// Shutdown stops accepting and dispatching jobs and waits for the in-flight
// job, if any, to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.busy {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler drained")
		return nil
	case <-ctx.Done():
		s.cond.Broadcast()
		return ctx.Err()
	}
}

// asCoded normalizes any error to the coded type recorded on failed jobs.
// A typed-nil *errors.Error still satisfies the error interface; it must not
// escape as the recorded failure, so the nil check follows the As.
func asCoded(err error) *errors.Error {
	var coded *errors.Error
	if errors.As(err, &coded) && coded != nil {
		return coded
	}
	return errors.Wrap(err, "scheduler.execute", "pipeline failed")
}
