package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/ports"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: io.Discard})
}

// fakeRunner records execution order and tracks concurrency. Jobs whose
// source key has an entry in fail return that error.
type fakeRunner struct {
	mu      sync.Mutex
	order   []string
	fail    map[string]*errors.Error
	gate    chan struct{} // when set, Run blocks until a token arrives
	running int32
	maxSeen int32
}

func (f *fakeRunner) Run(ctx context.Context, job *Job) error {
	n := atomic.AddInt32(&f.running, 1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, n) {
			break
		}
	}
	defer atomic.AddInt32(&f.running, -1)

	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.order = append(f.order, job.Source.Key)
	f.mu.Unlock()

	if err, ok := f.fail[job.Source.Key]; ok {
		return err
	}
	return nil
}

func (f *fakeRunner) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func newScheduler(t *testing.T, runner Runner, cfg Config) *Scheduler {
	t.Helper()
	return New(context.Background(), runner, newTestLogger(), cfg)
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.WaitIdle(ctx); err != nil {
		t.Fatalf("scheduler did not go idle: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		source ports.ObjectRef
		prefix string
	}{
		{"missing bucket", ports.ObjectRef{Key: "in.mp4"}, "out"},
		{"missing key", ports.ObjectRef{Bucket: "media"}, "out"},
		{"missing prefix", ports.ObjectRef{Bucket: "media", Key: "in.mp4"}, ""},
		{"blank bucket", ports.ObjectRef{Bucket: "  ", Key: "in.mp4"}, "out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			s := newScheduler(t, runner, Config{})

			_, _, err := s.Submit(tt.source, tt.prefix)
			if !errors.IsInvalidRequest(err) {
				t.Fatalf("expected INVALID_REQUEST, got %v", err)
			}

			// A rejected submission must not touch the queue.
			queueLen, busy := s.Stats()
			if queueLen != 0 || busy {
				t.Errorf("queue mutated by invalid submit: len=%d busy=%v", queueLen, busy)
			}
		})
	}
}

func TestFIFOExecutionOrder(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(t, runner, Config{})

	var keys []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("videos/%02d.mp4", i)
		keys = append(keys, key)
		if _, _, err := s.Submit(ports.ObjectRef{Bucket: "media", Key: key}, "out"); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	waitIdle(t, s)

	got := runner.executed()
	if len(got) != len(keys) {
		t.Fatalf("executed %d jobs, want %d", len(got), len(keys))
	}
	for i := range keys {
		if got[i] != keys[i] {
			t.Errorf("position %d: executed %s, want %s", i, got[i], keys[i])
		}
	}
}

func TestAtMostOneJobExecuting(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(t, runner, Config{})

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := s.Submit(ports.ObjectRef{
				Bucket: "media",
				Key:    fmt.Sprintf("videos/%d.mp4", i),
			}, "out")
			if err != nil {
				t.Errorf("concurrent submit failed: %v", err)
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate job id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != 50 {
		t.Fatalf("expected 50 unique ids, got %d", len(seen))
	}

	waitIdle(t, s)

	if max := atomic.LoadInt32(&runner.maxSeen); max != 1 {
		t.Errorf("observed %d concurrent executions, want 1", max)
	}
	if got := len(runner.executed()); got != 50 {
		t.Errorf("executed %d jobs, want 50", got)
	}
}

func TestFailureDoesNotBlockQueue(t *testing.T) {
	runner := &fakeRunner{
		fail: map[string]*errors.Error{
			"videos/broken.mp4": errors.New(errors.CodeObjectNotFound, "no such key"),
		},
	}
	s := newScheduler(t, runner, Config{})

	idA, _, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "videos/broken.mp4"}, "out")
	idB, _, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "videos/b.mp4"}, "out")
	idC, _, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "videos/c.mp4"}, "out")

	waitIdle(t, s)

	snapA, _, _ := s.Status(idA)
	if snapA.State != StateFailed {
		t.Errorf("job A state = %s, want FAILED", snapA.State)
	}
	if snapA.Failure == nil || snapA.Failure.Code != errors.CodeObjectNotFound {
		t.Errorf("job A failure = %v, want OBJECT_NOT_FOUND", snapA.Failure)
	}

	for _, id := range []string{idB, idC} {
		snap, _, _ := s.Status(id)
		if snap.State != StateCompleted {
			t.Errorf("job %s state = %s, want COMPLETED", id, snap.State)
		}
	}

	if got := runner.executed(); len(got) != 3 || got[0] != "videos/broken.mp4" {
		t.Errorf("unexpected execution order: %v", got)
	}
}

func TestQueuePositions(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newScheduler(t, runner, Config{})

	idA, posA, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "a.mp4"}, "out")
	if posA != 1 {
		t.Errorf("first submit position = %d, want 1", posA)
	}

	// A dispatches immediately; B and C queue behind it.
	waitFor(t, func() bool {
		snap, _, _ := s.Status(idA)
		return snap.State != StateQueued
	})

	idB, posB, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "b.mp4"}, "out")
	idC, posC, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "c.mp4"}, "out")
	if posB != 1 || posC != 2 {
		t.Errorf("queued positions = %d,%d, want 1,2", posB, posC)
	}

	_, pos, _ := s.Status(idC)
	if pos != 2 {
		t.Errorf("Status(C) position = %d, want 2", pos)
	}

	// Finish A: B starts, C moves up by exactly one.
	gate <- struct{}{}
	waitFor(t, func() bool {
		snap, _, _ := s.Status(idB)
		return snap.State != StateQueued
	})

	_, pos, _ = s.Status(idC)
	if pos != 1 {
		t.Errorf("Status(C) position after A finished = %d, want 1", pos)
	}

	gate <- struct{}{}
	gate <- struct{}{}
	waitIdle(t, s)
}

// nilErrRunner returns a typed-nil *errors.Error: a non-nil error interface
// value wrapping a nil pointer.
type nilErrRunner struct{}

func (nilErrRunner) Run(ctx context.Context, job *Job) error {
	var err *errors.Error
	return err
}

func TestTypedNilRunnerErrorMarksFailed(t *testing.T) {
	s := newScheduler(t, nilErrRunner{}, Config{})

	id, _, err := s.Submit(ports.ObjectRef{Bucket: "media", Key: "a.mp4"}, "out")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	waitIdle(t, s)

	snap, _, _ := s.Status(id)
	if snap.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", snap.State)
	}
	if snap.Failure == nil {
		t.Fatal("failed job has no recorded failure")
	}
	if snap.Failure.Code != errors.CodeInternal {
		t.Errorf("failure code = %s, want INTERNAL_ERROR", snap.Failure.Code)
	}
	// Formatting the recorded failure must not panic even though the
	// runner's error chain bottoms out in a nil pointer.
	if msg := snap.Failure.Error(); msg == "" {
		t.Error("failure message is empty")
	}
}

func TestDispatchedJobLeavesQueued(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newScheduler(t, runner, Config{})

	id, _, _ := s.Submit(ports.ObjectRef{Bucket: "media", Key: "a.mp4"}, "out")

	// fakeRunner never advances stage states, so leaving QUEUED is on the
	// scheduler alone.
	waitFor(t, func() bool {
		snap, _, _ := s.Status(id)
		return snap.State == StateFetching
	})

	snap, pos, _ := s.Status(id)
	if pos != 0 {
		t.Errorf("executing job reports queue position %d, want none", pos)
	}
	if snap.StartedAt.IsZero() {
		t.Error("executing job has no start timestamp")
	}

	gate <- struct{}{}
	waitIdle(t, s)
}

func TestStatusUnknownJob(t *testing.T) {
	s := newScheduler(t, &fakeRunner{}, Config{})

	_, _, err := s.Status("job_999999")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestTerminalJobRetention(t *testing.T) {
	runner := &fakeRunner{}
	s := newScheduler(t, runner, Config{RetainTerminal: 2})

	var ids []string
	for i := 0; i < 3; i++ {
		id, _, _ := s.Submit(ports.ObjectRef{
			Bucket: "media",
			Key:    fmt.Sprintf("videos/%d.mp4", i),
		}, "out")
		ids = append(ids, id)
	}

	waitIdle(t, s)

	if _, _, err := s.Status(ids[0]); !errors.IsNotFound(err) {
		t.Errorf("oldest terminal job should be evicted, got %v", err)
	}
	for _, id := range ids[1:] {
		snap, _, err := s.Status(id)
		if err != nil {
			t.Errorf("job %s should be retained: %v", id, err)
			continue
		}
		if snap.State != StateCompleted {
			t.Errorf("job %s state = %s, want COMPLETED", id, snap.State)
		}
	}
}

func TestSubmitDoesNotBlockOnRunningJob(t *testing.T) {
	gate := make(chan struct{})
	runner := &fakeRunner{gate: gate}
	s := newScheduler(t, runner, Config{})

	s.Submit(ports.ObjectRef{Bucket: "media", Key: "a.mp4"}, "out")

	done := make(chan struct{})
	go func() {
		s.Submit(ports.ObjectRef{Bucket: "media", Key: "b.mp4"}, "out")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked behind an executing job")
	}

	gate <- struct{}{}
	gate <- struct{}{}
	waitIdle(t, s)
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	s := newScheduler(t, &fakeRunner{}, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	_, _, err := s.Submit(ports.ObjectRef{Bucket: "media", Key: "a.mp4"}, "out")
	if !errors.IsCode(err, errors.CodeUnavailable) {
		t.Fatalf("expected UNAVAILABLE after shutdown, got %v", err)
	}
}
