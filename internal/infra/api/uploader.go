// File: internal/infra/api/uploader.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"image-enhance-client/internal/domain"
	"image-enhance-client/internal/domain/model"
)

// UploadAsset sends a file through the application server
// (POST /uploads, multipart: shoot_id, file).
func (g *Gateway) UploadAsset(ctx context.Context, shootID, filename, contentType string, r io.Reader, size int64) (*model.Asset, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("shoot_id", shootID); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("buffer upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := g.newRequest(ctx, http.MethodPost, "/uploads", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var asset model.Asset
	if err := g.do(req, "upload_asset", &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

type presignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	ShootID     string `json:"shoot_id"`
}

// Presign obtains a one-time direct upload target from the remote service.
func (g *Gateway) Presign(ctx context.Context, filename, contentType, shootID string) (*model.PresignTarget, error) {
	body, err := json.Marshal(presignRequest{Filename: filename, ContentType: contentType, ShootID: shootID})
	if err != nil {
		return nil, fmt.Errorf("marshal presign request: %w", err)
	}
	req, err := g.newRequest(ctx, http.MethodPost, "/uploads/presign", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	var target model.PresignTarget
	if err := g.do(req, "presign", &target); err != nil {
		return nil, err
	}
	return &target, nil
}

// progressReader counts bytes as they are consumed by the transport,
// giving byte-accurate upload progress.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	fn    func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}

// DirectUpload streams a file to a presigned target. The multipart body
// carries every presign field first and the file part last. The bearer token
// is never attached; the target is already authorized. Any status outside
// the 2xx range rejects, as does a transport-level abort.
func (g *Gateway) DirectUpload(ctx context.Context, target *model.PresignTarget, filename string, r io.Reader, size int64, progress func(sent, total int64)) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()
		for k, v := range target.Fields {
			if err = mw.WriteField(k, v); err != nil {
				return
			}
		}
		var fw io.Writer
		if fw, err = mw.CreateFormFile("file", filename); err != nil {
			return
		}
		src := r
		if progress != nil {
			src = &progressReader{r: r, total: size, fn: progress}
		}
		if _, err = io.Copy(fw, src); err != nil {
			return
		}
		err = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.UploadURL, pr)
	if err != nil {
		return fmt.Errorf("create direct upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn().Str("endpoint", "direct_upload").Err(err).Msg("direct upload aborted")
		return &domain.APIError{Kind: domain.ErrKindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classify(resp.StatusCode, body)
	}
	return nil
}
