package model

type UploadState string

const (
	UploadStatePending   UploadState = "pending"
	UploadStateUploading UploadState = "uploading"
	UploadStateCompleted UploadState = "completed"
	UploadStateError     UploadState = "error"
)

// UploadTask tracks one file through the upload pipeline. Progress is
// monotonically non-decreasing while uploading and frozen once the state is
// completed or error.
type UploadTask struct {
	FileRef     string      `json:"file_ref"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	Progress    int         `json:"progress"` // 0..100
	State       UploadState `json:"state"`
	Error       string      `json:"error,omitempty"`
	ResultID    string      `json:"result_id,omitempty"` // asset id on success
}

// AdvanceProgress raises Progress to p, clamped to [current, 100]. Terminal
// tasks are left untouched.
func (t *UploadTask) AdvanceProgress(p int) {
	if t.State == UploadStateCompleted || t.State == UploadStateError {
		return
	}
	if p > 100 {
		p = 100
	}
	if p > t.Progress {
		t.Progress = p
	}
}
