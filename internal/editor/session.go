package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/alexcabrera/easel/internal/flows"
	"github.com/alexcabrera/easel/internal/log"
)

var (
	ErrTargetBusy    = errors.New("target has a pending job")
	ErrNoSelection   = errors.New("nothing selected")
	ErrJobNotFound   = errors.New("no pending job with this ID")
	ErrUnknownPolicy = errors.New("unknown conflict policy")
)

// ConflictPolicy decides what happens when a request targets something
// that already has a pending job.
type ConflictPolicy string

const (
	// PolicyReject fails the new request with ErrTargetBusy.
	PolicyReject ConflictPolicy = "reject"
	// PolicySupersede cancels the pending job and starts the new one.
	PolicySupersede ConflictPolicy = "supersede"
)

// ParsePolicy parses a configured policy name. Empty means reject.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicySupersede:
		return PolicySupersede, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Options configures a Session.
type Options struct {
	Policy ConflictPolicy

	// MaxRetries bounds automatic retries of transient model failures.
	// Zero disables retry.
	MaxRetries     uint64
	InitialBackoff time.Duration

	// Timeout limits each attempt. Zero means no limit.
	Timeout time.Duration

	Logger *slog.Logger
}

// Session owns the generation jobs of one editing session. It guarantees
// at most one pending job per target key and commits a job's result only
// while that job is still current.
type Session struct {
	runner flows.Runner
	store  Store
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	byKey   map[string]*Job
	pending map[JobID]*Job
	chat    []flows.ChatTurn

	wg sync.WaitGroup
}

// NewSession creates a session that runs flows with runner and commits
// results to store.
func NewSession(runner flows.Runner, store Store, opts Options) *Session {
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Session{
		runner:  runner,
		store:   store,
		opts:    opts,
		logger:  logger,
		byKey:   make(map[string]*Job),
		pending: make(map[JobID]*Job),
	}
}

func (s *Session) start(ctx context.Context, flowName string, target Target, input flows.Input) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var busy []*Job
	for _, key := range target.Keys() {
		if j, ok := s.byKey[key]; ok && !slices.Contains(busy, j) {
			busy = append(busy, j)
		}
	}
	if len(busy) > 0 {
		if s.opts.Policy != PolicySupersede {
			return nil, fmt.Errorf("%w: %s is held by job %s", ErrTargetBusy, target.Key(), busy[0].ID)
		}
		for _, j := range busy {
			s.cancelLocked(j, "superseded")
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := newJob(JobID(uuid.NewString()), flowName, target, input, cancel)
	for _, key := range target.Keys() {
		s.byKey[key] = job
	}
	s.pending[job.ID] = job

	s.logger.Debug("job started",
		log.JobID(job.ID), log.Flow(flowName), log.Target(target.Key()))

	s.wg.Add(1)
	go s.run(jobCtx, job)

	return job, nil
}

func (s *Session) run(ctx context.Context, job *Job) {
	defer s.wg.Done()
	defer job.cancel()

	backoff := retry.WithMaxRetries(s.opts.MaxRetries, retry.NewExponential(s.opts.InitialBackoff))

	out, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*flows.Output, error) {
		job.attempt()

		attemptCtx, cancel := s.attemptContext(ctx)
		defer cancel()

		out, err := s.runner.Execute(attemptCtx, job.Flow, job.Input)
		if err != nil && flows.KindOf(err).Transient() && ctx.Err() == nil {
			s.logger.Info("retrying job",
				log.JobID(job.ID), log.Flow(job.Flow), log.Attempt(job.Attempts()), log.Error(err))
			return nil, retry.RetryableError(err)
		}
		return out, err
	})

	s.finish(job, out, err, ctx.Err())
}

func (s *Session) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) finish(job *Job, out *flows.Output, err, ctxErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancelled or superseded jobs were settled when they lost the target.
	if s.pending[job.ID] != job {
		s.logger.Debug("discarding stale result", log.JobID(job.ID), log.Flow(job.Flow))
		return
	}
	s.release(job)

	if ctxErr != nil {
		job.settle(JobCancelled, nil, "", fmt.Errorf("%w: %w", ErrCancelled, ctxErr))
		s.logger.Info("job cancelled", log.JobID(job.ID), log.Flow(job.Flow), log.Error(ctxErr))
		return
	}

	if err == nil {
		var layerID string
		layerID, err = s.apply(job, out)
		if err == nil {
			job.settle(JobSucceeded, out, layerID, nil)
			s.logger.Info("job succeeded",
				log.JobID(job.ID), log.Flow(job.Flow), log.Target(job.Target.Key()), log.Attempt(job.Attempts()))
			return
		}
	}

	job.settle(JobFailed, nil, "", err)
	s.logger.Warn("job failed",
		log.JobID(job.ID), log.Flow(job.Flow), log.Kind(flows.KindOf(err)), log.Error(err))
}

// apply commits a successful result. It runs under s.mu so commits from
// different jobs never interleave.
func (s *Session) apply(job *Job, out *flows.Output) (string, error) {
	if job.Target.Kind == TargetChat {
		if in, ok := chatInput(job.Input); ok {
			s.chat = append(s.chat,
				flows.ChatTurn{Role: flows.RoleUser, Text: in.Message},
				flows.ChatTurn{Role: flows.RoleAssistant, Text: out.Reply},
			)
		}
		return "", nil
	}

	layerID, err := s.store.CommitLayer(out.Image, job.Target)
	if err != nil {
		return "", fmt.Errorf("commit layer: %w", err)
	}
	s.store.PushHistory(Entry{
		Label:   historyLabel(job.Flow),
		Flow:    job.Flow,
		JobID:   string(job.ID),
		Target:  job.Target,
		LayerID: layerID,
	})
	return layerID, nil
}

func chatInput(in flows.Input) (flows.ChatInput, bool) {
	switch v := in.(type) {
	case flows.ChatInput:
		return v, true
	case *flows.ChatInput:
		if v == nil {
			return flows.ChatInput{}, false
		}
		return *v, true
	default:
		return flows.ChatInput{}, false
	}
}

func historyLabel(flowName string) string {
	switch flowName {
	case flows.BackgroundFillFlow:
		return "Generate background"
	case flows.VariationFlow:
		return "Generate variation"
	case flows.SelectionEnhanceFlow:
		return "Restyle selection"
	case flows.GroupEnhanceFlow:
		return "Restyle group"
	default:
		return flowName
	}
}

// release removes job from the pending maps. Callers hold s.mu.
func (s *Session) release(job *Job) {
	delete(s.pending, job.ID)
	for _, key := range job.Target.Keys() {
		if s.byKey[key] == job {
			delete(s.byKey, key)
		}
	}
}

func (s *Session) cancelLocked(job *Job, reason string) {
	s.release(job)
	job.cancel()
	job.settle(JobCancelled, nil, "", ErrCancelled)
	s.logger.Info("job cancelled",
		log.JobID(job.ID), log.Flow(job.Flow), slog.String("reason", reason))
}

// Cancel cancels a pending job. Its result is never committed, even if the
// model call completes.
func (s *Session) Cancel(id JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.pending[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.cancelLocked(job, "cancelled")
	return nil
}

// CancelTarget cancels the pending job holding key, such as
// LayerKey(id) after a layer is deleted. It reports whether a job was
// cancelled.
func (s *Session) CancelTarget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byKey[key]
	if !ok {
		return false
	}
	s.cancelLocked(job, "target removed")
	return true
}

// Pending returns the pending jobs ordered by target key.
func (s *Session) Pending() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*Job, 0, len(s.pending))
	for _, j := range s.pending {
		jobs = append(jobs, j)
	}
	slices.SortFunc(jobs, func(a, b *Job) int {
		return strings.Compare(a.Target.Key(), b.Target.Key())
	})
	return jobs
}

// ChatHistory returns the completed conversation, oldest first.
func (s *Session) ChatHistory() []flows.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chat)
}

// Wait blocks until every started job has returned from the runner.
func (s *Session) Wait() {
	s.wg.Wait()
}
