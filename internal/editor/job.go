package editor

import (
	"context"
	"errors"
	"sync"

	"github.com/alexcabrera/easel/internal/flows"
)

var ErrCancelled = errors.New("job cancelled")

// JobStatus is the lifecycle state of a job. A job leaves Pending exactly
// once.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobID identifies a generation job.
type JobID string

// Job is one generation request. Its result, once settled, never changes.
type Job struct {
	ID     JobID
	Flow   string
	Target Target
	Input  flows.Input

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	status   JobStatus
	output   *flows.Output
	err      error
	attempts int
	layerID  string
}

func newJob(id JobID, flowName string, target Target, input flows.Input, cancel context.CancelFunc) *Job {
	return &Job{
		ID:     id,
		Flow:   flowName,
		Target: target,
		Input:  input,
		cancel: cancel,
		done:   make(chan struct{}),
		status: JobPending,
	}
}

// Status returns the current status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Attempts returns how many times the flow was executed.
func (j *Job) Attempts() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.attempts
}

// LayerID returns the layer holding the committed image, if any.
func (j *Job) LayerID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.layerID
}

// Done is closed when the job settles.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Result returns the settled output and error. It must only be called
// after Done is closed.
func (j *Job) Result() (*flows.Output, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output, j.err
}

// Wait blocks until the job settles or ctx is done.
func (j *Job) Wait(ctx context.Context) (*flows.Output, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) attempt() {
	j.mu.Lock()
	j.attempts++
	j.mu.Unlock()
}

// settle records the outcome and closes done. Callers hold the session
// lock, which serializes settle against itself.
func (j *Job) settle(status JobStatus, out *flows.Output, layerID string, err error) {
	j.mu.Lock()
	j.status = status
	j.output = out
	j.layerID = layerID
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
