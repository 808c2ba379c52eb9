package model

import "time"

// Asset is an uploaded source image; the remote service embeds the
// enhancement jobs spawned from it.
type Asset struct {
	ID          string    `json:"id"`
	ShootID     string    `json:"shoot_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Jobs        []Job     `json:"jobs"`
}

type Shoot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ShootAssets is the response of GET /shoots/{id}/assets.
type ShootAssets struct {
	Shoot  Shoot   `json:"shoot"`
	Assets []Asset `json:"assets"`
}

// Jobs flattens every job embedded in the asset list.
func (sa *ShootAssets) AllJobs() []Job {
	var jobs []Job
	for _, a := range sa.Assets {
		jobs = append(jobs, a.Jobs...)
	}
	return jobs
}

// PresignTarget is a one-time pre-authorized upload destination issued by
// POST /uploads/presign. Fields must be sent before the file part.
type PresignTarget struct {
	UploadURL string            `json:"upload_url"`
	Fields    map[string]string `json:"fields"`
	AssetID   string            `json:"asset_id"`
}
