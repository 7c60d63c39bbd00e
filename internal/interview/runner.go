package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/rules"
	"github.com/hyperjump/interviewd/internal/storage"
	"go.uber.org/zap"
)

const (
	recordAttempts = 3
	recordTimeout  = 10 * time.Second
)

// Extractor runs rule extraction for a session snapshot.
type Extractor interface {
	RunMode(ctx context.Context, sess *models.InterviewSession, mode string) (*rules.Result, error)
	Purge(ctx context.Context, sessionID string) (int, error)
}

// Runner executes rule extraction outside the request that completed the interview and records
// the outcome on the session.
type Runner struct {
	store     storage.Storage
	extractor Extractor
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner whose background runs are bounded by timeout.
func NewRunner(store storage.Storage, extractor Extractor, timeout time.Duration, opts ...RunnerOption) *Runner {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	r := &Runner{
		store:     store,
		extractor: extractor,
		timeout:   timeout,
		inflight:  make(map[string]struct{}),
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schedule starts extraction for sessionID in the background. It reports false once the
// runner is shutting down or while an extraction for the session is already running.
func (r *Runner) Schedule(sessionID string) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("runner rejected extraction during shutdown", zap.String("session_id", sessionID))
		return false
	}
	if _, ok := r.inflight[sessionID]; ok {
		r.mu.Unlock()
		r.logger.Debug("runner extraction already running", zap.String("session_id", sessionID))
		return false
	}
	r.inflight[sessionID] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.inflight, sessionID)
			r.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if _, err := r.Run(ctx, sessionID, ""); err != nil {
			r.logger.Error("runner extraction failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
	return true
}

// Run extracts rules for sessionID now and records the outcome. An empty mode uses the
// pipeline default.
func (r *Runner) Run(ctx context.Context, sessionID, mode string) (*rules.Result, error) {
	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, runErr := r.extractor.RunMode(ctx, sess, mode)

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.record(recordCtx, sessionID, res, runErr); err != nil {
		r.logger.Error("runner could not record extraction outcome", zap.String("session_id", sessionID), zap.Error(err))
	}
	if runErr != nil {
		return nil, runErr
	}
	r.logger.Info("runner extraction finished",
		zap.String("session_id", sessionID),
		zap.Int("rules", len(res.Rules)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// Rerun purges the session's previous rules and extracts again.
func (r *Runner) Rerun(ctx context.Context, sessionID, mode string) (*rules.Result, error) {
	if err := rules.ValidateMode(mode); err != nil {
		return nil, err
	}
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	n, err := r.extractor.Purge(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("runner purged rules", zap.String("session_id", sessionID), zap.Int("rules", n))
	return r.Run(ctx, sessionID, mode)
}

// record writes the extraction outcome with a compare-and-swap, retrying when a concurrent
// turn moved the version on.
func (r *Runner) record(ctx context.Context, sessionID string, res *rules.Result, runErr error) error {
	for attempt := 0; attempt < recordAttempts; attempt++ {
		sess, err := r.store.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		next := sess.Clone()
		if runErr != nil {
			next.Extraction.Status = models.ExtractionFailed
			next.Extraction.Error = runErr.Error()
		} else {
			at := r.now()
			next.Extraction = models.ExtractionStatus{
				Status:      models.ExtractionCompleted,
				RulesCount:  len(res.Rules),
				ExtractedAt: &at,
			}
			if next.IsComplete {
				next.State = models.StateExtracted
			}
		}
		err = r.store.UpdateSession(ctx, next, sess.Version)
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to record extraction after %d attempts: %w", recordAttempts, storage.ErrVersionConflict)
}

// Shutdown stops accepting work and waits for running extractions or ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("extraction runner did not drain: %w", ctx.Err())
	}
}
