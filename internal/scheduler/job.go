package scheduler

import (
	"sync"
	"time"

	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
)

// State is the lifecycle state of a job.
type State string

const (
	StateQueued      State = "QUEUED"
	StateFetching    State = "FETCHING"
	StateInspecting  State = "INSPECTING"
	StateTranscoding State = "TRANSCODING"
	StatePublishing  State = "PUBLISHING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one transcoding job. Identity fields are immutable after creation;
// state and failure are mutated only by the scheduler and the pipeline it
// drives, never concurrently with each other.
type Job struct {
	ID           string
	Source       ports.ObjectRef
	OutputPrefix string
	CreatedAt    time.Time

	mu         sync.RWMutex
	state      State
	failure    *errors.Error
	startedAt  time.Time
	finishedAt time.Time
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Advance moves the job to a non-terminal pipeline stage. Terminal
// transitions go through complete/fail so the finish timestamp is set.
func (j *Job) Advance(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
}

// Failure returns the recorded error, present only in StateFailed.
func (j *Job) Failure() *errors.Error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.failure
}

// start marks the moment of dequeue. The job stops reporting QUEUED as soon
// as the scheduler hands it to the runner, independent of how quickly the
// runner advances through its stages.
func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFetching
	j.startedAt = time.Now().UTC()
}

func (j *Job) complete() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateCompleted
	j.finishedAt = time.Now().UTC()
}

func (j *Job) fail(err *errors.Error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = StateFailed
	j.failure = err
	j.finishedAt = time.Now().UTC()
}

// Snapshot is a point-in-time copy of a job's mutable fields, safe to hand
// out to handlers.
type Snapshot struct {
	ID           string
	Source       ports.ObjectRef
	OutputPrefix string
	State        State
	Failure      *errors.Error
	CreatedAt    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Snapshot captures the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:           j.ID,
		Source:       j.Source,
		OutputPrefix: j.OutputPrefix,
		State:        j.state,
		Failure:      j.failure,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.startedAt,
		FinishedAt:   j.finishedAt,
	}
}
