// Package jobs runs analyses asynchronously over the worker pool and
// tracks their state for polling. The async layer is strictly additive:
// a saturated queue surfaces as worker.ErrQueueFull so the caller can run
// the same analysis synchronously instead.
package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/pipeline"
	"github.com/credence-dev/credence/internal/worker"
)

// ErrUnknownJob is returned by Status for request IDs the manager does not
// know, including records already expired from the registry.
var ErrUnknownJob = errors.New("unknown job")

// ErrEmptyInput is returned by Enqueue when neither a URL nor text is given.
var ErrEmptyInput = errors.New("job input requires a url or text")

// completedRetention bounds how long finished records stay pollable.
const completedRetention = time.Hour

// State is the poll-visible lifecycle of a job.
type State string

const (
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Input is one analysis request. URL takes precedence; Text with optional
// Title is the direct-text form.
type Input struct {
	URL       string
	Text      string
	Title     string
	SessionID string
}

// Ticket is what Enqueue hands back for polling.
type Ticket struct {
	RequestID string `json:"requestId"`
	PollURL   string `json:"pollUrl"`
}

// Record is a point-in-time snapshot of one job.
type Record struct {
	RequestID   string
	State       State
	Outcome     *pipeline.Outcome
	Error       string
	Attempts    int
	EnqueuedAt  time.Time
	CompletedAt time.Time
}

// Analyzer runs one full analysis; satisfied by the pipeline orchestrator.
type Analyzer interface {
	AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*pipeline.Outcome, error)
	AnalyzeText(ctx context.Context, text, title, sessionID string) (*pipeline.Outcome, error)
}

// Manager owns the pool and the in-memory job registry. Poll state does
// not survive a restart; the audit trail in the store does.
type Manager struct {
	analyzer Analyzer
	pool     *worker.Pool
	cfg      model.JobsConfig
	logger   zerolog.Logger

	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates and starts the async job layer.
func NewManager(analyzer Analyzer, cfg model.JobsConfig, logger zerolog.Logger) *Manager {
	pool := worker.NewPool(cfg.Workers, cfg.QueueSize)
	pool.Start()

	return &Manager{
		analyzer: analyzer,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.With().Str("component", "jobs").Logger(),
		records:  make(map[string]*Record),
	}
}

// Enqueue validates the input and queues it. A full queue returns
// worker.ErrQueueFull without leaving a record behind.
func (m *Manager) Enqueue(input Input) (*Ticket, error) {
	if strings.TrimSpace(input.URL) == "" && strings.TrimSpace(input.Text) == "" {
		return nil, ErrEmptyInput
	}

	id := uuid.NewString()
	record := &Record{
		RequestID:  id,
		State:      StatePending,
		EnqueuedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.pruneLocked()
	m.records[id] = record
	m.mu.Unlock()

	err := m.pool.TrySubmit(worker.TaskFunc(func(ctx context.Context) {
		m.run(ctx, id, input)
	}))
	if err != nil {
		m.mu.Lock()
		delete(m.records, id)
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Debug().Str("request_id", id).Msg("job queued")
	return &Ticket{RequestID: id, PollURL: "/api/jobs/" + id}, nil
}

// Status returns a snapshot of the job.
func (m *Manager) Status(requestID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[requestID]
	if !ok {
		return Record{}, ErrUnknownJob
	}
	return *record, nil
}

// QueueDepth reports how many jobs are waiting for a worker.
func (m *Manager) QueueDepth() int {
	return m.pool.QueueDepth()
}

// Shutdown stops the pool. Queued jobs are abandoned and stay PENDING.
func (m *Manager) Shutdown() {
	m.pool.Shutdown()
}

// run executes one job with bounded retries. Only retryable failures are
// retried; a ParseError is the client's to correct and fails immediately.
func (m *Manager) run(ctx context.Context, id string, input Input) {
	attempts := m.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := m.cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	maxDelay := m.cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome, err := m.analyze(ctx, input)
		if err == nil {
			m.finish(id, attempt, outcome, nil)
			return
		}
		lastErr = err
		if !pipeline.Retryable(err) || attempt == attempts {
			m.finish(id, attempt, nil, lastErr)
			return
		}

		m.logger.Warn().
			Err(err).
			Str("request_id", id).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("job attempt failed, retrying")

		select {
		case <-ctx.Done():
			m.finish(id, attempt, nil, ctx.Err())
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	m.finish(id, attempts, nil, lastErr)
}

func (m *Manager) analyze(ctx context.Context, input Input) (*pipeline.Outcome, error) {
	if strings.TrimSpace(input.URL) != "" {
		return m.analyzer.AnalyzeURL(ctx, input.URL, input.SessionID)
	}
	return m.analyzer.AnalyzeText(ctx, input.Text, input.Title, input.SessionID)
}

func (m *Manager) finish(id string, attempts int, outcome *pipeline.Outcome, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return
	}
	record.Attempts = attempts
	record.CompletedAt = time.Now().UTC()
	if err != nil {
		record.State = StateFailed
		record.Error = err.Error()
		m.logger.Info().Str("request_id", id).Int("attempts", attempts).Err(err).Msg("job failed")
		return
	}
	record.State = StateCompleted
	record.Outcome = outcome
	m.logger.Info().Str("request_id", id).Int("attempts", attempts).Msg("job completed")
}

// pruneLocked drops finished records older than the retention window.
// Callers hold m.mu.
func (m *Manager) pruneLocked() {
	cutoff := time.Now().UTC().Add(-completedRetention)
	for id, record := range m.records {
		if record.State == StatePending {
			continue
		}
		if record.CompletedAt.Before(cutoff) {
			delete(m.records, id)
		}
	}
}
