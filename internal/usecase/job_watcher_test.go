//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/model"
	"image-enhance-client/internal/usecase"
)

const testInterval = 10 * time.Millisecond

// settle is long enough for several poll intervals to elapse.
const settle = 100 * time.Millisecond

// scriptedStatuses returns each status in turn, repeating the last one.
func scriptedStatuses(id string, statuses ...model.JobStatus) func(ctx context.Context, jobID string) (*model.Job, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, jobID string) (*model.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		s := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return &model.Job{ID: id, Status: s}, nil
	}
}

// eventRecorder collects callback invocations thread-safely.
type eventRecorder struct {
	mu        sync.Mutex
	changes   []model.JobStatus
	completes int
	failures  int
}

func (r *eventRecorder) events() usecase.JobEvents {
	return usecase.JobEvents{
		OnChange: func(job *model.Job) {
			r.mu.Lock()
			r.changes = append(r.changes, job.Status)
			r.mu.Unlock()
		},
		OnComplete: func(job *model.Job) {
			r.mu.Lock()
			r.completes++
			r.mu.Unlock()
		},
		OnFailed: func(job *model.Job) {
			r.mu.Lock()
			r.failures++
			r.mu.Unlock()
		},
	}
}

func (r *eventRecorder) snapshot() ([]model.JobStatus, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.JobStatus, len(r.changes))
	copy(out, r.changes)
	return out, r.completes, r.failures
}

func TestJobWatcher_PollsToSuccess(t *testing.T) {
	svc := newMockJobService()
	svc.FetchJobFunc = scriptedStatuses("job-1",
		model.JobStatusQueued, model.JobStatusProcessing, model.JobStatusSucceeded)
	rec := &eventRecorder{}

	w := usecase.NewJobWatcher("job-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	defer w.Stop()

	time.Sleep(settle)

	changes, completes, failures := rec.snapshot()
	want := []model.JobStatus{model.JobStatusQueued, model.JobStatusProcessing, model.JobStatusSucceeded}
	if len(changes) != len(want) {
		t.Fatalf("expected %d change events, got %d (%v)", len(want), len(changes), changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], changes[i])
		}
	}
	if completes != 1 {
		t.Errorf("expected exactly one complete event, got %d", completes)
	}
	if failures != 0 {
		t.Errorf("expected no failure events, got %d", failures)
	}

	// Terminal status must have cancelled the timer.
	n := svc.FetchJobCalls()
	time.Sleep(settle)
	if got := svc.FetchJobCalls(); got != n {
		t.Errorf("polling continued after terminal status: %d -> %d fetches", n, got)
	}
	if w.Running() {
		t.Error("expected the watcher to have stopped itself")
	}
}

func TestJobWatcher_FailureFiresOnFailed(t *testing.T) {
	svc := newMockJobService()
	svc.FetchJobFunc = scriptedStatuses("job-1", model.JobStatusProcessing, model.JobStatusFailed)
	rec := &eventRecorder{}

	w := usecase.NewJobWatcher("job-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	defer w.Stop()
	time.Sleep(settle)

	changes, completes, failures := rec.snapshot()
	if failures != 1 {
		t.Errorf("expected one failure event, got %d", failures)
	}
	if completes != 0 {
		t.Errorf("expected no complete events, got %d", completes)
	}
	// First observation counts as a change.
	if len(changes) != 2 || changes[0] != model.JobStatusProcessing {
		t.Errorf("expected changes [processing failed], got %v", changes)
	}
}

func TestJobWatcher_NoJobIDIsNoop(t *testing.T) {
	svc := newMockJobService()
	w := usecase.NewJobWatcher("", testInterval, svc, usecase.JobEvents{}, newTestLogger())
	w.Start(context.Background())
	time.Sleep(3 * testInterval)
	if svc.FetchJobCalls() != 0 {
		t.Error("expected no fetches without a job id")
	}
	if w.Running() {
		t.Error("expected the watcher to stay idle")
	}
}

func TestJobWatcher_FetchErrorIsStoredNotThrown(t *testing.T) {
	svc := newMockJobService()
	var mu sync.Mutex
	calls := 0
	svc.FetchJobFunc = func(ctx context.Context, id string) (*model.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, &domain.APIError{Kind: domain.ErrKindServer, Status: 503, Message: "worker overloaded"}
		}
		return &model.Job{ID: id, Status: model.JobStatusProcessing}, nil
	}

	w := usecase.NewJobWatcher("job-1", testInterval, svc, usecase.JobEvents{}, newTestLogger())
	w.Start(context.Background())
	defer w.Stop()

	time.Sleep(2 * testInterval)
	if w.LastError() == "" && svc.FetchJobCalls() < 2 {
		t.Log("first poll not observed yet; waiting longer")
	}
	time.Sleep(settle)

	// The loop survived the failed poll and the next success cleared the error.
	if svc.FetchJobCalls() < 2 {
		t.Fatalf("expected polling to continue after a fetch error, got %d fetches", svc.FetchJobCalls())
	}
	if got := w.LastError(); got != "" {
		t.Errorf("expected LastError cleared after a successful poll, got %q", got)
	}
}

func TestJobWatcher_DisposalMidPoll(t *testing.T) {
	svc := newMockJobService()
	release := make(chan struct{})
	inFlight := make(chan struct{}, 1)
	var mu sync.Mutex
	calls := 0
	svc.FetchJobFunc = func(ctx context.Context, id string) (*model.Job, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return &model.Job{ID: id, Status: model.JobStatusQueued}, nil
		}
		// Second poll hangs until the test releases it, ignoring ctx:
		// this models a response that arrives after disposal.
		inFlight <- struct{}{}
		<-release
		return &model.Job{ID: id, Status: model.JobStatusSucceeded}, nil
	}
	rec := &eventRecorder{}

	w := usecase.NewJobWatcher("job-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())

	<-inFlight // second fetch is now in flight

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	time.Sleep(2 * testInterval)
	close(release) // late response arrives after Stop began
	<-stopped

	fetches := svc.FetchJobCalls()
	time.Sleep(settle)
	if got := svc.FetchJobCalls(); got != fetches {
		t.Errorf("fetches continued after disposal: %d -> %d", fetches, got)
	}
	_, completes, _ := rec.snapshot()
	if completes != 0 {
		t.Error("a fetch resolving after disposal must not fire callbacks")
	}

	// Stopping again is safe.
	w.Stop()
}

func TestJobWatcher_RetryRestartsPolling(t *testing.T) {
	t.Run("should resume polling when the remote returns a non-terminal status", func(t *testing.T) {
		svc := newMockJobService()
		svc.FetchJobFunc = scriptedStatuses("job-1", model.JobStatusQueued, model.JobStatusSucceeded)
		svc.RetryJobFunc = func(ctx context.Context, id string) (*model.Job, error) {
			return &model.Job{ID: id, Status: model.JobStatusQueued}, nil
		}

		w := usecase.NewJobWatcher("job-1", testInterval, svc, usecase.JobEvents{}, newTestLogger())
		job, err := w.Retry(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if job.Status != model.JobStatusQueued {
			t.Fatalf("expected queued, got %s", job.Status)
		}
		defer w.Stop()
		time.Sleep(settle)
		if svc.FetchJobCalls() == 0 {
			t.Error("expected polling to have started after retry")
		}
	})

	t.Run("should not poll when the retry request fails", func(t *testing.T) {
		svc := newMockJobService()
		svc.RetryJobFunc = func(ctx context.Context, id string) (*model.Job, error) {
			return nil, &domain.APIError{Kind: domain.ErrKindClient, Status: 409, Message: "job is still running"}
		}

		w := usecase.NewJobWatcher("job-1", testInterval, svc, usecase.JobEvents{}, newTestLogger())
		if _, err := w.Retry(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
		if w.LastError() == "" {
			t.Error("expected the failure to be recorded on the watcher")
		}
		if w.Running() {
			t.Error("expected no polling after a failed retry request")
		}
		if svc.FetchJobCalls() != 0 {
			t.Error("expected no fetches")
		}
	})
}
