// File: internal/usecase/upload_uc.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/model"
	"image-enhance-client/internal/domain/ports/adapter"
	"image-enhance-client/internal/infra/metrics"
	"image-enhance-client/internal/infra/worker"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// UploadFile describes one file offered to the pipeline. Open is called at
// transmission time so a queued file holds no descriptor while waiting.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadProgress receives a snapshot of a task every time it changes.
type UploadProgress func(index int, task model.UploadTask)

// UploadPipeline validates, queues and transmits files. Admission failures
// never reach the network; a single file's transmission failure is isolated
// to that file's task and the batch continues.
type UploadPipeline struct {
	api          adapter.UploadServiceAdapter
	maxBytes     int64
	allowed      map[string]struct{}
	progressStep time.Duration
	workers      int
	log          *zerolog.Logger
}

func NewUploadPipeline(api adapter.UploadServiceAdapter, maxBytes int64, allowedTypes []string, progressStep time.Duration, workers int, logger *zerolog.Logger) *UploadPipeline {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if progressStep <= 0 {
		progressStep = 400 * time.Millisecond
	}
	if workers <= 0 {
		workers = 1
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}
	upLog := logger.With().Str("component", "UploadPipeline").Logger()
	return &UploadPipeline{
		api:          api,
		maxBytes:     maxBytes,
		allowed:      allowed,
		progressStep: progressStep,
		workers:      workers,
		log:          &upLog,
	}
}

// admit enforces the size ceiling and MIME allow-list before any network
// action.
func (p *UploadPipeline) admit(f UploadFile) *domain.ValidationError {
	if f.Size > p.maxBytes {
		return &domain.ValidationError{
			Field:   f.Name,
			Message: fmt.Sprintf("file size %d exceeds the %d byte ceiling", f.Size, p.maxBytes),
		}
	}
	if _, ok := p.allowed[f.ContentType]; !ok {
		return &domain.ValidationError{
			Field:   f.Name,
			Message: fmt.Sprintf("content type %q is not allowed", f.ContentType),
		}
	}
	return nil
}

// batchTracker serializes task mutation and progress notification.
type batchTracker struct {
	mu     sync.Mutex
	tasks  []model.UploadTask
	notify UploadProgress
}

func (b *batchTracker) update(i int, fn func(t *model.UploadTask)) {
	b.mu.Lock()
	fn(&b.tasks[i])
	snap := b.tasks[i]
	b.mu.Unlock()
	if b.notify != nil {
		b.notify(i, snap)
	}
}

func (b *batchTracker) snapshot() []model.UploadTask {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.UploadTask, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// UploadBatch transmits the admitted files, one at a time unless the
// pipeline was configured with more workers. The returned slice holds one
// task per input file in order; the call itself never fails because a file
// failed. The error is non-nil only when ctx is cancelled mid-batch.
func (p *UploadPipeline) UploadBatch(ctx context.Context, shootID string, files []UploadFile, onProgress UploadProgress) ([]model.UploadTask, error) {
	batchID := ulid.Make().String()
	log := p.log.With().Str("batch_id", batchID).Str("shoot_id", shootID).Logger()

	tr := &batchTracker{tasks: make([]model.UploadTask, len(files)), notify: onProgress}
	admitted := make([]int, 0, len(files))
	for i, f := range files {
		tr.tasks[i] = model.UploadTask{
			FileRef:     f.Name,
			ContentType: f.ContentType,
			Size:        f.Size,
			State:       model.UploadStatePending,
		}
		if verr := p.admit(f); verr != nil {
			tr.tasks[i].State = model.UploadStateError
			tr.tasks[i].Error = verr.Error()
			metrics.IncUpload("rejected")
			log.Info().Str("file", f.Name).Str("reason", verr.Message).Msg("file rejected before queueing")
			continue
		}
		admitted = append(admitted, i)
	}

	if p.workers > 1 && len(admitted) > 1 {
		p.runPooled(ctx, shootID, files, admitted, tr, &log)
	} else {
		for _, i := range admitted {
			if ctx.Err() != nil {
				return tr.snapshot(), ctx.Err()
			}
			p.uploadOne(ctx, shootID, files[i], i, tr, &log)
		}
	}
	if ctx.Err() != nil {
		return tr.snapshot(), ctx.Err()
	}
	return tr.snapshot(), nil
}

// runPooled runs the per-file flow on a fixed-size pool. Concurrency stays
// bounded by the configured worker count. Cancellation stops further
// submission and the pool drains whatever was already queued; a queued task
// whose ctx is cancelled leaves its file pending instead of transmitting, so
// Stop always observes every submitted task and the batch call returns.
func (p *UploadPipeline) runPooled(ctx context.Context, shootID string, files []UploadFile, admitted []int, tr *batchTracker, log *zerolog.Logger) {
	pool := worker.NewPool(p.workers, len(admitted), p.log)
	pool.Start(ctx)
	for _, i := range admitted {
		if ctx.Err() != nil {
			break
		}
		i := i
		err := pool.Submit(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			p.uploadOne(ctx, shootID, files[i], i, tr, log)
			return nil
		})
		if err != nil {
			tr.update(i, func(t *model.UploadTask) {
				t.State = model.UploadStateError
				t.Error = err.Error()
			})
			metrics.IncUpload("error")
		}
	}
	pool.Stop()
}

// uploadOne runs a single file through the gateway. Progress here is a
// coarse fixed-step approximation capped at 90% because this transport
// exposes no byte counts; completion snaps it to 100%.
func (p *UploadPipeline) uploadOne(ctx context.Context, shootID string, f UploadFile, i int, tr *batchTracker, log *zerolog.Logger) {
	tr.update(i, func(t *model.UploadTask) {
		t.State = model.UploadStateUploading
	})

	stopSim := make(chan struct{})
	var simWG sync.WaitGroup
	simWG.Add(1)
	go func() {
		defer simWG.Done()
		ticker := time.NewTicker(p.progressStep)
		defer ticker.Stop()
		for {
			select {
			case <-stopSim:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				tr.update(i, func(t *model.UploadTask) {
					next := t.Progress + 10
					if next > 90 {
						next = 90
					}
					t.AdvanceProgress(next)
				})
			}
		}
	}()
	finishSim := func() {
		close(stopSim)
		simWG.Wait()
	}

	rc, err := f.Open()
	if err != nil {
		finishSim()
		p.fail(i, tr, log, f.Name, fmt.Errorf("open file: %w", err))
		return
	}
	asset, err := p.api.UploadAsset(ctx, shootID, f.Name, f.ContentType, rc, f.Size)
	rc.Close()
	finishSim()
	if err != nil {
		p.fail(i, tr, log, f.Name, err)
		return
	}

	tr.update(i, func(t *model.UploadTask) {
		t.AdvanceProgress(100)
		t.State = model.UploadStateCompleted
		t.ResultID = asset.ID
	})
	metrics.IncUpload("completed")
	metrics.AddUploadBytes(f.Size)
	log.Debug().Str("file", f.Name).Str("asset_id", asset.ID).Msg("file uploaded")
}

func (p *UploadPipeline) fail(i int, tr *batchTracker, log *zerolog.Logger, name string, err error) {
	tr.update(i, func(t *model.UploadTask) {
		t.State = model.UploadStateError
		t.Error = err.Error()
	})
	metrics.IncUpload("error")
	log.Warn().Str("file", name).Err(err).Msg("file upload failed; batch continues")
}

// DirectTransfer uploads one file straight to a presigned target with true
// byte-level progress. Unlike the batch path this rejects on failure, since
// the caller owns exactly one transfer. Progress arrives on the transport's
// write goroutine, so every task mutation goes through the tracker's mutex.
func (p *UploadPipeline) DirectTransfer(ctx context.Context, shootID string, f UploadFile, onProgress UploadProgress) (*model.UploadTask, error) {
	tr := &batchTracker{
		tasks: []model.UploadTask{{
			FileRef:     f.Name,
			ContentType: f.ContentType,
			Size:        f.Size,
			State:       model.UploadStatePending,
		}},
		notify: onProgress,
	}
	fail := func(err error, outcome string) (*model.UploadTask, error) {
		tr.update(0, func(t *model.UploadTask) {
			t.State = model.UploadStateError
			t.Error = err.Error()
		})
		metrics.IncUpload(outcome)
		task := tr.snapshot()[0]
		return &task, err
	}

	if verr := p.admit(f); verr != nil {
		return fail(verr, "rejected")
	}

	target, err := p.api.Presign(ctx, f.Name, f.ContentType, shootID)
	if err != nil {
		return fail(err, "error")
	}

	rc, err := f.Open()
	if err != nil {
		return fail(err, "error")
	}
	defer rc.Close()

	tr.update(0, func(t *model.UploadTask) {
		t.State = model.UploadStateUploading
	})
	err = p.api.DirectUpload(ctx, target, f.Name, rc, f.Size, func(sent, total int64) {
		if total > 0 {
			tr.update(0, func(t *model.UploadTask) {
				t.AdvanceProgress(int(sent * 100 / total))
			})
		}
	})
	if err != nil {
		return fail(err, "error")
	}

	tr.update(0, func(t *model.UploadTask) {
		t.AdvanceProgress(100)
		t.State = model.UploadStateCompleted
		t.ResultID = target.AssetID
	})
	metrics.IncUpload("completed")
	metrics.AddUploadBytes(f.Size)
	task := tr.snapshot()[0]
	return &task, nil
}
