// File: internal/usecase/job_watcher.go
package usecase

import (
	"context"
	"sync"
	"time"

	"image-enhance-client/internal/domain/model"
	"image-enhance-client/internal/domain/ports/adapter"
	"image-enhance-client/internal/infra/logging"
	"image-enhance-client/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobEvents are the lifecycle callbacks a watcher fires. All callbacks run
// on the watcher's own goroutine, strictly between two fetches, so the
// callbacks of two polls never interleave. Callbacks must not call the
// watcher's Stop.
type JobEvents struct {
	OnChange   func(job *model.Job) // status differs from the last-seen one; first sight counts
	OnComplete func(job *model.Job) // status reached succeeded
	OnFailed   func(job *model.Job) // status reached failed
}

// JobWatcher polls a single job until it reaches a terminal status. Fetch
// errors are kept as watcher-local state and never crash the loop. A
// generation counter guards every state commit, so a fetch already in
// flight when the watcher is stopped can neither mutate state nor fire
// callbacks.
type JobWatcher struct {
	jobID    string
	interval time.Duration
	api      adapter.JobServiceAdapter
	events   JobEvents
	log      *zerolog.Logger

	mu      sync.Mutex
	last    model.JobStatus
	seen    bool
	lastErr string
	gen     int
	cancel  context.CancelFunc
	done    chan struct{}
}

const defaultJobInterval = 3 * time.Second

func NewJobWatcher(jobID string, interval time.Duration, api adapter.JobServiceAdapter, events JobEvents, logger *zerolog.Logger) *JobWatcher {
	if interval <= 0 {
		interval = defaultJobInterval
	}
	wLog := logger.With().Str("component", "JobWatcher").Str("job_id", jobID).Logger()
	return &JobWatcher{
		jobID:    jobID,
		interval: interval,
		api:      api,
		events:   events,
		log:      &wLog,
	}
}

// Start issues an immediate status fetch and then polls at the configured
// interval until the job is terminal or Stop is called. Without a job id it
// is a no-op, as is calling Start while already polling.
func (w *JobWatcher) Start(ctx context.Context) {
	if w.jobID == "" {
		return
	}
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	w.gen++
	gen := w.gen
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.run(runCtx, gen, done)
}

func (w *JobWatcher) run(ctx context.Context, gen int, done chan struct{}) {
	defer close(done)
	defer w.release(gen)

	if w.poll(ctx, gen) {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.poll(ctx, gen) {
				return
			}
		}
	}
}

// release clears the run handle after self-termination so a later Start can
// begin a fresh polling session. A concurrent Stop bumps the generation
// first and owns the handle itself.
func (w *JobWatcher) release(gen int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = nil
	w.done = nil
}

// poll fetches the job once and reports whether polling should end.
func (w *JobWatcher) poll(ctx context.Context, gen int) (terminal bool) {
	defer logging.TraceDuration(w.log, "JobWatcher.poll")()
	job, err := w.api.FetchJob(ctx, w.jobID)

	w.mu.Lock()
	if w.gen != gen {
		// disposed while the fetch was in flight; discard the result
		w.mu.Unlock()
		return true
	}
	if err != nil {
		if ctx.Err() != nil {
			w.mu.Unlock()
			return true
		}
		w.lastErr = err.Error()
		w.mu.Unlock()
		w.log.Warn().Err(err).Msg("status fetch failed; keeping the poll loop alive")
		return false
	}
	changed := !w.seen || w.last != job.Status
	w.seen = true
	w.last = job.Status
	w.lastErr = ""
	w.mu.Unlock()

	if changed {
		metrics.IncJobStatusChange(string(job.Status))
		if w.events.OnChange != nil {
			w.events.OnChange(job)
		}
	}
	switch job.Status {
	case model.JobStatusSucceeded:
		metrics.IncJobFinished(string(job.Status))
		if w.events.OnComplete != nil {
			w.events.OnComplete(job)
		}
		return true
	case model.JobStatusFailed:
		metrics.IncJobFinished(string(job.Status))
		if w.events.OnFailed != nil {
			w.events.OnFailed(job)
		}
		return true
	}
	return false
}

// Retry submits a retry request for the job. When the remote returns a
// non-terminal status, polling is (re)started under ctx. The returned
// status is recorded optimistically; the remote service owns the record.
func (w *JobWatcher) Retry(ctx context.Context) (*model.Job, error) {
	job, err := w.api.RetryJob(ctx, w.jobID)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err.Error()
		w.mu.Unlock()
		return nil, err
	}
	w.mu.Lock()
	w.last = job.Status
	w.seen = true
	w.lastErr = ""
	w.mu.Unlock()

	if !job.Status.Terminal() {
		w.Stop()
		w.Start(ctx)
	}
	return job, nil
}

// Stop cancels the timer and waits for the poll loop to exit, so no state
// commit or callback can happen after it returns. Stopping twice is safe.
func (w *JobWatcher) Stop() {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return
	}
	w.gen++
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.done = nil
	w.mu.Unlock()

	cancel()
	<-done
}

// Status returns the last-seen status and whether any observation was made.
func (w *JobWatcher) Status() (model.JobStatus, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.seen
}

// LastError returns the message of the most recent failed fetch, cleared by
// the next successful one.
func (w *JobWatcher) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Running reports whether a poll loop is currently active.
func (w *JobWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}
