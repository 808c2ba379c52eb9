//go:build !integration

package usecase_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/model"
	"image-enhance-client/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// mockJobService is a hand-written fake of the job-facing remote API.
// Tests override the Func fields to script behavior; call counts are
// tracked under the mutex.
type mockJobService struct {
	mu                   sync.Mutex
	fetchJobCalls        int
	retryJobCalls        int
	fetchShootCalls      int
	FetchJobFunc         func(ctx context.Context, id string) (*model.Job, error)
	SubmitJobFunc        func(ctx context.Context, assetID, prompt, tier string) (*model.Job, error)
	RetryJobFunc         func(ctx context.Context, id string) (*model.Job, error)
	CancelJobFunc        func(ctx context.Context, id string) (*model.Job, error)
	FetchShootAssetsFunc func(ctx context.Context, shootID string) (*model.ShootAssets, error)
}

func newMockJobService() *mockJobService { return &mockJobService{} }

func (m *mockJobService) FetchJob(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	m.fetchJobCalls++
	fn := m.FetchJobFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrNotFound
	}
	return fn(ctx, id)
}

func (m *mockJobService) SubmitJob(ctx context.Context, assetID, prompt, tier string) (*model.Job, error) {
	if m.SubmitJobFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.SubmitJobFunc(ctx, assetID, prompt, tier)
}

func (m *mockJobService) RetryJob(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	m.retryJobCalls++
	fn := m.RetryJobFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrNotFound
	}
	return fn(ctx, id)
}

func (m *mockJobService) CancelJob(ctx context.Context, id string) (*model.Job, error) {
	if m.CancelJobFunc == nil {
		return nil, domain.ErrNotFound
	}
	return m.CancelJobFunc(ctx, id)
}

func (m *mockJobService) FetchShootAssets(ctx context.Context, shootID string) (*model.ShootAssets, error) {
	m.mu.Lock()
	m.fetchShootCalls++
	fn := m.FetchShootAssetsFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, domain.ErrNotFound
	}
	return fn(ctx, shootID)
}

func (m *mockJobService) FetchJobCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchJobCalls
}

func (m *mockJobService) FetchShootCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchShootCalls
}

// mockUploadService fakes the upload-facing remote API.
type mockUploadService struct {
	mu               sync.Mutex
	uploadCalls      []string // filenames in call order
	UploadAssetFunc  func(ctx context.Context, shootID, filename, contentType string, r io.Reader, size int64) (*model.Asset, error)
	PresignFunc      func(ctx context.Context, filename, contentType, shootID string) (*model.PresignTarget, error)
	DirectUploadFunc func(ctx context.Context, target *model.PresignTarget, filename string, r io.Reader, size int64, progress func(sent, total int64)) error
}

func newMockUploadService() *mockUploadService { return &mockUploadService{} }

func (m *mockUploadService) UploadAsset(ctx context.Context, shootID, filename, contentType string, r io.Reader, size int64) (*model.Asset, error) {
	m.mu.Lock()
	m.uploadCalls = append(m.uploadCalls, filename)
	fn := m.UploadAssetFunc
	m.mu.Unlock()
	if fn == nil {
		return &model.Asset{ID: "asset-" + filename, ShootID: shootID, Filename: filename}, nil
	}
	return fn(ctx, shootID, filename, contentType, r, size)
}

func (m *mockUploadService) Presign(ctx context.Context, filename, contentType, shootID string) (*model.PresignTarget, error) {
	if m.PresignFunc == nil {
		return &model.PresignTarget{
			UploadURL: "http://example.invalid/direct",
			Fields:    map[string]string{"key": "uploads/" + filename},
			AssetID:   "asset-" + filename,
		}, nil
	}
	return m.PresignFunc(ctx, filename, contentType, shootID)
}

func (m *mockUploadService) DirectUpload(ctx context.Context, target *model.PresignTarget, filename string, r io.Reader, size int64, progress func(sent, total int64)) error {
	if m.DirectUploadFunc == nil {
		if progress != nil {
			progress(size/2, size)
			progress(size, size)
		}
		return nil
	}
	return m.DirectUploadFunc(ctx, target, filename, r, size, progress)
}

func (m *mockUploadService) UploadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.uploadCalls))
	copy(out, m.uploadCalls)
	return out
}

// memUploadFile builds an UploadFile over a small in-memory payload. The
// declared size is what admission checks see; the payload itself stays tiny.
func memUploadFile(name, contentType string, size int64) usecase.UploadFile {
	payload := bytes.Repeat([]byte{0xAB}, 16)
	return usecase.UploadFile{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		},
	}
}
