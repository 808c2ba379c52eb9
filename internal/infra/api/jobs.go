// File: internal/infra/api/jobs.go
package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/model"
)

// FetchJob returns the current remote state of one job.
func (g *Gateway) FetchJob(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, domain.ErrNoJobID
	}
	req, err := g.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := g.do(req, "fetch_job", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SubmitJob creates a new enhancement job for an uploaded asset. tier is
// optional and omitted from the form when empty.
func (g *Gateway) SubmitJob(ctx context.Context, assetID, prompt, tier string) (*model.Job, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("asset_id", assetID); err != nil {
		return nil, err
	}
	if err := mw.WriteField("prompt", prompt); err != nil {
		return nil, err
	}
	if tier != "" {
		if err := mw.WriteField("tier", tier); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := g.newRequest(ctx, http.MethodPost, "/jobs", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := g.do(req, "submit_job", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// RetryJob asks the remote service to re-run a failed job.
func (g *Gateway) RetryJob(ctx context.Context, id string) (*model.Job, error) {
	return g.postJobAction(ctx, id, "retry", "retry_job")
}

// CancelJob asks the remote service to abandon a job.
func (g *Gateway) CancelJob(ctx context.Context, id string) (*model.Job, error) {
	return g.postJobAction(ctx, id, "cancel", "cancel_job")
}

func (g *Gateway) postJobAction(ctx context.Context, id, action, endpoint string) (*model.Job, error) {
	if id == "" {
		return nil, domain.ErrNoJobID
	}
	req, err := g.newRequest(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/"+action, nil, "")
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := g.do(req, endpoint, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// FetchShootAssets lists a shoot's assets with their embedded jobs.
func (g *Gateway) FetchShootAssets(ctx context.Context, shootID string) (*model.ShootAssets, error) {
	if shootID == "" {
		return nil, domain.ErrInvalidArgument
	}
	req, err := g.newRequest(ctx, http.MethodGet, "/shoots/"+url.PathEscape(shootID)+"/assets", nil, "")
	if err != nil {
		return nil, err
	}
	var sa model.ShootAssets
	if err := g.do(req, "fetch_shoot_assets", &sa); err != nil {
		return nil, err
	}
	return &sa, nil
}
