// Package scheduler runs operator instructions on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/saturn-platform/opsclaw/internal/logging"
)

// ErrJobNotFound is returned by RunNow for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// Job is one recurring instruction, e.g. "health check all services".
type Job struct {
	ID          string
	Cron        string
	Instruction string
}

// Runner handles one instruction and returns the reply text.
type Runner func(ctx context.Context, job Job) (string, error)

// Service runs jobs on their schedules. Overlapping runs of the same job are
// skipped.
type Service struct {
	jobs   []Job
	byID   map[string]Job
	run    Runner
	cron   *cron.Cron
	runs   *prometheus.CounterVec
	notify func(job Job, reply string)

	mu      sync.Mutex
	started bool
}

type Option func(*Service)

// WithLocation sets the time zone cron specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.cron = cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		)
	}
}

// WithRegisterer exports per-job run counts.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsclaw",
			Subsystem: "watch",
			Name:      "runs_total",
			Help:      "Scheduled instruction runs by job and outcome.",
		}, []string{"job", "outcome"})
		reg.MustRegister(s.runs)
	}
}

// WithNotify is called with the reply of every successful scheduled run.
func WithNotify(fn func(job Job, reply string)) Option {
	return func(s *Service) { s.notify = fn }
}

// NewService builds a scheduler for jobs. It rejects duplicate ids, empty
// instructions and cron specs that do not parse.
func NewService(jobs []Job, run Runner, opts ...Option) (*Service, error) {
	if run == nil {
		return nil, errors.New("scheduler runner is required")
	}
	s := &Service{
		byID: make(map[string]Job, len(jobs)),
		run:  run,
	}
	WithLocation(time.Local)(s)
	for _, opt := range opts {
		opt(s)
	}

	for i, job := range jobs {
		job.ID = strings.TrimSpace(job.ID)
		job.Instruction = strings.TrimSpace(job.Instruction)
		switch {
		case job.ID == "":
			return nil, fmt.Errorf("job %d: id is required", i)
		case job.Instruction == "":
			return nil, fmt.Errorf("job %q: instruction is required", job.ID)
		}
		if _, dup := s.byID[job.ID]; dup {
			return nil, fmt.Errorf("job %q: duplicate id", job.ID)
		}
		if _, err := cron.ParseStandard(job.Cron); err != nil {
			return nil, fmt.Errorf("job %q: invalid cron %q: %w", job.ID, job.Cron, err)
		}
		s.byID[job.ID] = job
		s.jobs = append(s.jobs, job)
	}
	return s, nil
}

// Jobs returns the registered jobs in configuration order.
func (s *Service) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

// Start registers every job and starts cron. Scheduled runs use ctx, so
// cancelling it aborts in-flight instructions.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Cron, func() {
			s.execute(ctx, job, "cron")
		}); err != nil {
			return fmt.Errorf("register cron job %q: %w", job.ID, err)
		}
	}

	s.cron.Start()
	s.started = true
	logging.Logger().Info("scheduler started", "jobs_registered", len(s.jobs))
	return nil
}

// Stop stops cron and waits for in-flight runs to finish or ctx cancellation.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	doneCtx := s.cron.Stop()
	s.started = false
	s.mu.Unlock()

	select {
	case <-doneCtx.Done():
		logging.Logger().Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes one job immediately by id.
func (s *Service) RunNow(ctx context.Context, jobID string) (string, error) {
	job, ok := s.byID[strings.TrimSpace(jobID)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return s.execute(ctx, job, "manual")
}

func (s *Service) execute(ctx context.Context, job Job, source string) (string, error) {
	started := time.Now()
	reply, err := s.run(ctx, job)
	if err != nil {
		s.count(job, "error")
		logging.Logger().Warn(
			"scheduled instruction failed",
			"job_id", job.ID,
			"source", source,
			"err", err,
		)
		return "", err
	}

	s.count(job, "ok")
	logging.Logger().Info(
		"scheduled instruction complete",
		"job_id", job.ID,
		"source", source,
		"reply_len", len(reply),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	if s.notify != nil {
		s.notify(job, reply)
	}
	return reply, nil
}

func (s *Service) count(job Job, outcome string) {
	if s.runs != nil {
		s.runs.WithLabelValues(job.ID, outcome).Inc()
	}
}
