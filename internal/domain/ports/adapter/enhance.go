package adapter

import (
	"context"
	"io"

	"image-enhance-client/internal/domain/model"
)

// JobServiceAdapter is the job-facing surface of the remote enhancement
// service. Implementations return *domain.APIError for remote failures.
type JobServiceAdapter interface {
	FetchJob(ctx context.Context, id string) (*model.Job, error)
	SubmitJob(ctx context.Context, assetID, prompt, tier string) (*model.Job, error)
	RetryJob(ctx context.Context, id string) (*model.Job, error)
	CancelJob(ctx context.Context, id string) (*model.Job, error)
	FetchShootAssets(ctx context.Context, shootID string) (*model.ShootAssets, error)
}

// UploadServiceAdapter moves file bytes to the remote service, either through
// the application server or directly to a presigned target.
type UploadServiceAdapter interface {
	UploadAsset(ctx context.Context, shootID, filename, contentType string, r io.Reader, size int64) (*model.Asset, error)
	Presign(ctx context.Context, filename, contentType, shootID string) (*model.PresignTarget, error)
	// DirectUpload streams r to a presigned target with byte-accurate
	// progress. No bearer token is attached.
	DirectUpload(ctx context.Context, target *model.PresignTarget, filename string, r io.Reader, size int64, progress func(sent, total int64)) error
}

// TokenSource yields the persisted bearer token, when one exists.
type TokenSource interface {
	Token() (string, bool)
}
