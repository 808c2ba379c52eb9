// File: internal/usecase/shoot_watcher.go
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

// ShootWatcher polls every job belonging to one shoot, diffing each fetch
// against a per-watcher snapshot of last-seen statuses and firing JobEvents
// per job under the same rules as JobWatcher. When no job is queued or
// processing the loop stops itself; a later Start resumes polling. The
// snapshot lives and dies with the watcher and is never shared.
type ShootWatcher struct {
	shootID  string
	interval time.Duration
	api      adapter.JobServiceAdapter
	events   JobEvents
	log      *zerolog.Logger

	mu       sync.Mutex
	snapshot map[string]model.JobStatus
	lastErr  string
	gen      int
	cancel   context.CancelFunc
	done     chan struct{}
}

const defaultShootInterval = 5 * time.Second

func NewShootWatcher(shootID string, interval time.Duration, api adapter.JobServiceAdapter, events JobEvents, logger *zerolog.Logger) *ShootWatcher {
	if interval <= 0 {
		interval = defaultShootInterval
	}
	wLog := logger.With().Str("component", "ShootWatcher").Str("shoot_id", shootID).Logger()
	return &ShootWatcher{
		shootID:  shootID,
		interval: interval,
		api:      api,
		events:   events,
		log:      &wLog,
		snapshot: make(map[string]model.JobStatus),
	}
}

// Start begins polling the shoot's jobs. Without a shoot id it is a no-op,
// as is calling Start while already polling.
func (w *ShootWatcher) Start(ctx context.Context) {
	if w.shootID == "" {
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

func (w *ShootWatcher) run(ctx context.Context, gen int, done chan struct{}) {
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

func (w *ShootWatcher) release(gen int) {
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

// firing captures per-job callback decisions made under the lock so the
// callbacks themselves can run outside it, in fetch order.
type firing struct {
	job     model.Job
	changed bool
}

// poll fetches the shoot's assets once and reports whether polling should
// end (no job left active, or the watcher was disposed mid-fetch).
func (w *ShootWatcher) poll(ctx context.Context, gen int) (stop bool) {
	defer logging.TraceDuration(w.log, "ShootWatcher.poll")()
	sa, err := w.api.FetchShootAssets(ctx, w.shootID)

	w.mu.Lock()
	if w.gen != gen {
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
		w.log.Warn().Err(err).Msg("shoot fetch failed; keeping the poll loop alive")
		return false
	}
	w.lastErr = ""

	jobs := sa.AllJobs()
	firings := make([]firing, 0, len(jobs))
	hasActive := false
	for _, job := range jobs {
		prev, known := w.snapshot[job.ID]
		firings = append(firings, firing{job: job, changed: !known || prev != job.Status})
		w.snapshot[job.ID] = job.Status
		if job.Status.Active() {
			hasActive = true
		}
	}
	w.mu.Unlock()

	for _, f := range firings {
		job := f.job
		if f.changed {
			metrics.IncJobStatusChange(string(job.Status))
			if w.events.OnChange != nil {
				w.events.OnChange(&job)
			}
			switch job.Status {
			case model.JobStatusSucceeded:
				metrics.IncJobFinished(string(job.Status))
				if w.events.OnComplete != nil {
					w.events.OnComplete(&job)
				}
			case model.JobStatusFailed:
				metrics.IncJobFinished(string(job.Status))
				if w.events.OnFailed != nil {
					w.events.OnFailed(&job)
				}
			}
		}
	}

	if !hasActive {
		w.log.Debug().Int("jobs", len(jobs)).Msg("no active job remains; pausing the watcher")
		return true
	}
	return false
}

// Stop cancels the timer, waits for the loop to exit and clears the
// snapshot. Stopping twice is safe; no callback fires after Stop returns.
func (w *ShootWatcher) Stop() {
	w.mu.Lock()
	if w.cancel == nil {
		w.snapshot = make(map[string]model.JobStatus)
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

	w.mu.Lock()
	w.snapshot = make(map[string]model.JobStatus)
	w.mu.Unlock()
}

// LastError returns the message of the most recent failed fetch.
func (w *ShootWatcher) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Running reports whether a poll loop is currently active.
func (w *ShootWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}
