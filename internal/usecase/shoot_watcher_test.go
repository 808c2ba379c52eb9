//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"image-enhance-client/internal/domain/model"
	"image-enhance-client/internal/usecase"
)

// shootFixture scripts the shoot's job statuses per poll; the last frame
// repeats.
func shootFixture(frames ...map[string]model.JobStatus) func(ctx context.Context, shootID string) (*model.ShootAssets, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, shootID string) (*model.ShootAssets, error) {
		mu.Lock()
		frame := frames[i]
		if i < len(frames)-1 {
			i++
		}
		mu.Unlock()

		sa := &model.ShootAssets{Shoot: model.Shoot{ID: shootID}}
		asset := model.Asset{ID: "asset-1", ShootID: shootID}
		for id, status := range frame {
			asset.Jobs = append(asset.Jobs, model.Job{ID: id, ShootID: shootID, Status: status})
		}
		sa.Assets = []model.Asset{asset}
		return sa, nil
	}
}

func TestShootWatcher_DiffsAndStopsWhenIdle(t *testing.T) {
	svc := newMockJobService()
	svc.FetchShootAssetsFunc = shootFixture(
		map[string]model.JobStatus{"j1": model.JobStatusQueued, "j2": model.JobStatusProcessing},
		map[string]model.JobStatus{"j1": model.JobStatusProcessing, "j2": model.JobStatusSucceeded},
		map[string]model.JobStatus{"j1": model.JobStatusSucceeded, "j2": model.JobStatusSucceeded},
	)
	rec := &eventRecorder{}

	w := usecase.NewShootWatcher("shoot-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	defer w.Stop()

	time.Sleep(settle)

	changes, completes, failures := rec.snapshot()
	// j1: queued->processing->succeeded (3 changes), j2: processing->succeeded (2 changes)
	if len(changes) != 5 {
		t.Errorf("expected 5 change events, got %d (%v)", len(changes), changes)
	}
	if completes != 2 {
		t.Errorf("expected 2 complete events, got %d", completes)
	}
	if failures != 0 {
		t.Errorf("expected no failure events, got %d", failures)
	}

	// With no active job left, the watcher cancels its own timer.
	if w.Running() {
		t.Error("expected the watcher to have paused itself")
	}
	n := svc.FetchShootCalls()
	time.Sleep(settle)
	if got := svc.FetchShootCalls(); got != n {
		t.Errorf("polling continued after going idle: %d -> %d fetches", n, got)
	}
}

func TestShootWatcher_CompleteFiresOncePerJob(t *testing.T) {
	svc := newMockJobService()
	// Terminal from the first frame onward; the repeated frames must not
	// re-fire complete.
	svc.FetchShootAssetsFunc = shootFixture(
		map[string]model.JobStatus{"j1": model.JobStatusProcessing},
		map[string]model.JobStatus{"j1": model.JobStatusSucceeded},
		map[string]model.JobStatus{"j1": model.JobStatusSucceeded},
	)
	rec := &eventRecorder{}

	w := usecase.NewShootWatcher("shoot-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	defer w.Stop()
	time.Sleep(settle)

	_, completes, _ := rec.snapshot()
	if completes != 1 {
		t.Errorf("expected one complete event, got %d", completes)
	}
}

func TestShootWatcher_ResumesAfterIdle(t *testing.T) {
	svc := newMockJobService()
	var mu sync.Mutex
	phase := 0 // 0: all settled; 1: a new job appeared
	svc.FetchShootAssetsFunc = func(ctx context.Context, shootID string) (*model.ShootAssets, error) {
		mu.Lock()
		p := phase
		mu.Unlock()
		jobs := []model.Job{{ID: "j1", ShootID: shootID, Status: model.JobStatusSucceeded}}
		if p == 1 {
			jobs = append(jobs, model.Job{ID: "j2", ShootID: shootID, Status: model.JobStatusQueued})
		}
		return &model.ShootAssets{
			Shoot:  model.Shoot{ID: shootID},
			Assets: []model.Asset{{ID: "asset-1", ShootID: shootID, Jobs: jobs}},
		}, nil
	}
	rec := &eventRecorder{}

	w := usecase.NewShootWatcher("shoot-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	time.Sleep(settle)
	if w.Running() {
		t.Fatal("expected the watcher to pause with no active jobs")
	}

	mu.Lock()
	phase = 1
	mu.Unlock()
	w.Start(context.Background())
	defer w.Stop()
	time.Sleep(settle)
	if !w.Running() {
		t.Error("expected the watcher to be polling again")
	}

	changes, _, _ := rec.snapshot()
	// j1 seen once in session one (snapshot kept across the pause), j2 once.
	if len(changes) != 2 {
		t.Errorf("expected 2 change events across both sessions, got %d (%v)", len(changes), changes)
	}
}

func TestShootWatcher_StopClearsSnapshot(t *testing.T) {
	svc := newMockJobService()
	svc.FetchShootAssetsFunc = shootFixture(
		map[string]model.JobStatus{"j1": model.JobStatusProcessing},
	)
	rec := &eventRecorder{}

	w := usecase.NewShootWatcher("shoot-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	time.Sleep(3 * testInterval)
	w.Stop()

	before, _, _ := rec.snapshot()
	if len(before) != 1 {
		t.Fatalf("expected one first-seen change event, got %d", len(before))
	}

	// A fresh session must treat the same status as first-seen again.
	w.Start(context.Background())
	time.Sleep(3 * testInterval)
	w.Stop()

	after, _, _ := rec.snapshot()
	if len(after) != 2 {
		t.Errorf("expected the cleared snapshot to re-fire the first-seen change, got %d events", len(after))
	}
}

func TestShootWatcher_DisposalStopsCallbacks(t *testing.T) {
	svc := newMockJobService()
	svc.FetchShootAssetsFunc = shootFixture(
		map[string]model.JobStatus{"j1": model.JobStatusQueued},
	)
	rec := &eventRecorder{}

	w := usecase.NewShootWatcher("shoot-1", testInterval, svc, rec.events(), newTestLogger())
	w.Start(context.Background())
	time.Sleep(3 * testInterval)
	w.Stop()

	fetches := svc.FetchShootCalls()
	changes, _, _ := rec.snapshot()
	time.Sleep(settle)
	if got := svc.FetchShootCalls(); got != fetches {
		t.Errorf("fetches continued after Stop: %d -> %d", fetches, got)
	}
	if after, _, _ := rec.snapshot(); len(after) != len(changes) {
		t.Error("callbacks fired after Stop returned")
	}
}
